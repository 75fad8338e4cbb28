package itip

import (
	"github.com/emersion/go-ical"
	"github.com/samber/mo"
)

// Message is an inbound scheduling message. The processor never modifies a
// Message it is given; it works on a Clone.
type Message struct {
	ReceivedMethod Method
	// ResponseMethod is filled in by the processor.
	ResponseMethod Method
	// AutoResponse records whether the caller wants replies sent without
	// user interaction. The processor does not read it.
	AutoResponse   bool
	TargetCalendar mo.Option[Store]
	// Identity is the local user's address without scheme, used when the
	// target calendar cannot name the invited attendee.
	Identity string
	Items    []*Item
	// Timezones holds the VTIMEZONE components the items refer to. They are
	// passed through to the response unchanged.
	Timezones []*ical.Component
}

// Clone returns a copy of m whose item list can be replaced without touching m.
func (m *Message) Clone() *Message {
	c := *m
	c.Items = make([]*Item, len(m.Items))
	for i, item := range m.Items {
		if item != nil {
			c.Items[i] = NewItemBuilder(item).Build()
		}
	}
	return &c
}

// DeliverTo makes target the message's calendar and binds the items that have
// no calendar yet to it, so target's scheduling support can name the invited
// attendee.
func (m *Message) DeliverTo(target Store) {
	m.TargetCalendar = mo.Some(target)
	for i, item := range m.Items {
		if item != nil && item.Calendar().IsAbsent() {
			m.Items[i] = NewItemBuilder(item).Calendar(mo.Some(target)).Build()
		}
	}
}
