package itip

import (
	"fmt"

	"github.com/samber/mo"
)

// NarrowForReply returns a copy of item whose attendee list holds only self.
// A REPLY must not disclose the other attendees; the organizer is kept.
func NarrowForReply(item *Item, self mo.Option[Attendee]) (*Item, error) {
	a, ok := self.Get()
	if !ok {
		return nil, fmt.Errorf("%w: no attendee to reply as for %s", ErrAssertionFailed, item.ID())
	}
	return NewItemBuilder(item).Attendees(a).Build(), nil
}
