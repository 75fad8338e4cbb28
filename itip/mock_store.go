package itip

import (
	"context"
	"time"

	"github.com/emersion/go-ical"
	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"
)

// MockStore implements the Store interface for testing. GetItems, AddItem and
// ModifyItem go through mock.Mock; writes report success to their listener.
type MockStore struct {
	mock.Mock

	StoreName  string
	Properties map[string]any
	Scheduling SchedulingSupport
}

func (m *MockStore) Name() string {
	if m.StoreName == "" {
		return "mock"
	}
	return m.StoreName
}

// GetItems implements the Store interface. The expectation returns
// ([]*Item, error).
func (m *MockStore) GetItems(_ context.Context, id string) <-chan mo.Result[[]*Item] {
	args := m.Called(id)
	ch := make(chan mo.Result[[]*Item], 1)
	if err := args.Error(1); err != nil {
		ch <- mo.Err[[]*Item](err)
	} else {
		items, _ := args.Get(0).([]*Item)
		ch <- mo.Ok(items)
	}
	close(ch)
	return ch
}

// AddItem implements the Store interface
func (m *MockStore) AddItem(_ context.Context, item *Item, l Listener) {
	m.Called(item)
	Notify(l, Completion{Kind: CompletionAdd, ItemID: item.ID(), Item: item})
}

// ModifyItem implements the Store interface
func (m *MockStore) ModifyItem(_ context.Context, newItem, oldItem *Item, l Listener) {
	m.Called(newItem, oldItem)
	Notify(l, Completion{Kind: CompletionModify, ItemID: newItem.ID(), Item: newItem})
}

func (m *MockStore) Property(name string) mo.Option[any] {
	v, ok := m.Properties[name]
	if !ok {
		return mo.None[any]()
	}
	return mo.Some(v)
}

func (m *MockStore) SchedulingSupport() mo.Option[SchedulingSupport] {
	if m.Scheduling == nil {
		return mo.None[SchedulingSupport]()
	}
	return mo.Some(m.Scheduling)
}

// --- Helper methods for creating test data ---

// NewMockEvent creates a VEVENT item with an organizer and attendees
func NewMockEvent(uid, summary, organizer string, attendees ...Attendee) *Item {
	return newMockItem(ical.CompEvent, uid, summary, organizer, attendees)
}

// NewMockTodo creates a VTODO item with an organizer and attendees
func NewMockTodo(uid, summary, organizer string, attendees ...Attendee) *Item {
	return newMockItem(ical.CompToDo, uid, summary, organizer, attendees)
}

func newMockItem(name, uid, summary, organizer string, attendees []Attendee) *Item {
	comp := ical.NewComponent(name)
	comp.Props.SetText(ical.PropUID, uid)
	comp.Props.SetText(ical.PropSummary, summary)
	comp.Props.SetDateTime(ical.PropDateTimeStamp, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	if organizer != "" {
		p := Attendee{ID: organizer}.toProp(ical.PropOrganizer)
		comp.Props.Set(&p)
	}
	for _, a := range attendees {
		p := a.toProp(ical.PropAttendee)
		comp.Props.Add(&p)
	}
	return NewItem(comp)
}
