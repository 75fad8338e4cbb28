package itip

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/samber/mo"
)

// ProductID is written to the PRODID of encoded messages.
const ProductID = "-//github.com/cyp0633/caldora-itip//NONSGML v1.0//EN"

// ParseMessage decodes an iCalendar object carrying a METHOD property into a
// Message. Every component except VTIMEZONE becomes an item; the processor
// rejects the types it does not handle.
func ParseMessage(r io.Reader) (*Message, error) {
	cal, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode calendar: %w", err)
	}

	rawMethod, err := cal.Props.Text(ical.PropMethod)
	if err != nil {
		return nil, fmt.Errorf("failed to read METHOD: %w", err)
	}
	if rawMethod == "" {
		return nil, fmt.Errorf("%w: calendar has no METHOD", ErrInvalidArgument)
	}
	method, err := ParseMethod(rawMethod)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ReceivedMethod: method,
		TargetCalendar: mo.None[Store](),
	}
	for _, child := range cal.Children {
		if child.Name == ical.CompTimezone {
			msg.Timezones = append(msg.Timezones, cloneComponent(child))
			continue
		}
		msg.Items = append(msg.Items, NewItem(child))
	}
	return msg, nil
}

// EncodeMessage writes msg as an iCalendar object. METHOD is the response
// method if one has been set, the received method otherwise.
func EncodeMessage(w io.Writer, msg *Message) error {
	method := msg.ResponseMethod
	if method == "" {
		method = msg.ReceivedMethod
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropMethod, string(method))
	for _, tz := range msg.Timezones {
		cal.Children = append(cal.Children, cloneComponent(tz))
	}
	for _, item := range msg.Items {
		cal.Children = append(cal.Children, stampedComponent(item))
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// MarshalMessage is EncodeMessage into a byte slice.
func MarshalMessage(msg *Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeMessage(&buf, msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ItemCalendar wraps item in a VCALENDAR without METHOD, the form a calendar
// store keeps it in.
func ItemCalendar(item *Item) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Children = append(cal.Children, stampedComponent(item))
	return cal
}

// MarshalItem encodes ItemCalendar(item).
func MarshalItem(item *Item) ([]byte, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(ItemCalendar(item)); err != nil {
		return nil, fmt.Errorf("encode %s: %w", item.ID(), err)
	}
	return buf.Bytes(), nil
}

// stampedComponent copies the item's component, adding the DTSTAMP go-ical
// requires on VEVENT and VTODO when the sender left it out.
func stampedComponent(item *Item) *ical.Component {
	comp := item.Component()
	if comp.Props.Get(ical.PropDateTimeStamp) == nil {
		comp.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	}
	return comp
}
