package itip

import (
	"fmt"
	"strings"

	"github.com/emersion/go-ical"
)

// Method is an iTIP scheduling method (RFC 5546 section 1.4).
type Method string

const (
	MethodPublish        Method = "PUBLISH"
	MethodRequest        Method = "REQUEST"
	MethodReply          Method = "REPLY"
	MethodAdd            Method = "ADD"
	MethodCancel         Method = "CANCEL"
	MethodRefresh        Method = "REFRESH"
	MethodCounter        Method = "COUNTER"
	MethodDeclineCounter Method = "DECLINECOUNTER"
)

// Methods lists every method the processor knows about.
var Methods = []Method{
	MethodPublish,
	MethodRequest,
	MethodReply,
	MethodAdd,
	MethodCancel,
	MethodRefresh,
	MethodCounter,
	MethodDeclineCounter,
}

// ParseMethod normalizes s and returns the matching Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

func (m Method) String() string {
	return string(m)
}

// ItemType discriminates the calendar components the processor handles.
type ItemType int

const (
	ItemUnknown ItemType = iota
	ItemEvent
	ItemTodo
)

func (t ItemType) String() string {
	switch t {
	case ItemEvent:
		return ical.CompEvent
	case ItemTodo:
		return ical.CompToDo
	default:
		return "UNKNOWN"
	}
}

// ParseItemType maps a component name such as "VEVENT" to an ItemType.
func ParseItemType(name string) (ItemType, error) {
	switch strings.ToUpper(name) {
	case ical.CompEvent:
		return ItemEvent, nil
	case ical.CompToDo:
		return ItemTodo, nil
	}
	return ItemUnknown, fmt.Errorf("%w: %q", ErrUnknownItemType, name)
}

// SuggestResponse returns the recommended response to a received method.
func SuggestResponse(received Method) (Method, error) {
	switch received {
	case MethodRequest:
		return MethodReply, nil
	case MethodRefresh, MethodCounter:
		return MethodRequest, nil
	case MethodPublish, MethodReply, MethodAdd, MethodCancel, MethodDeclineCounter:
		return received, nil
	}
	return "", fmt.Errorf("%w: received %q", ErrUnknownMethod, received)
}

// IsValidPair reports whether response is a legal answer to received for an
// item of type t.
func IsValidPair(received, response Method, t ItemType) (bool, error) {
	switch received {
	case MethodAdd:
		// REFRESH answering ADD is reserved to component types other than
		// VEVENT and VTODO.
		if response == MethodAdd {
			return true, nil
		}
		return response == MethodRefresh && t != ItemEvent && t != ItemTodo, nil
	case MethodCounter:
		return response == MethodRequest || response == MethodDeclineCounter, nil
	case MethodRequest:
		// REPLY accepts or declines, REQUEST delegates, COUNTER proposes a change.
		return response == MethodReply || response == MethodRequest || response == MethodCounter, nil
	case MethodRefresh:
		return response != MethodRequest, nil
	case MethodPublish, MethodCancel, MethodReply, MethodDeclineCounter:
		return response == received, nil
	}
	return false, fmt.Errorf("%w: received %q", ErrUnknownMethod, received)
}
