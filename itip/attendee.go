package itip

import (
	"fmt"

	"github.com/samber/mo"
)

// Resolver finds the attendee representing the local user.
type Resolver struct {
	transports *Dispatcher
}

func NewResolver(transports *Dispatcher) *Resolver {
	return &Resolver{transports: transports}
}

// Resolve asks the item's calendar for the invited attendee first. Failing
// that, and if identity is set, it looks for "<scheme>:<identity>" among the
// item's attendees, where scheme comes from the transport of target. An
// absent result means the local user is not invited.
func (r *Resolver) Resolve(item *Item, identity string, target mo.Option[Store]) (mo.Option[Attendee], error) {
	if store, ok := item.Calendar().Get(); ok && store != nil {
		if support, ok := store.SchedulingSupport().Get(); ok {
			if a, ok := support.InvitedAttendee(item).Get(); ok {
				return mo.Some(a), nil
			}
		}
	}
	if identity == "" {
		return mo.None[Attendee](), nil
	}

	t, err := r.transports.Resolve(target)
	if err != nil {
		return mo.None[Attendee](), fmt.Errorf("resolve attendee for %s: %w", item.ID(), err)
	}
	return item.AttendeeByID(t.Scheme() + ":" + identity), nil
}
