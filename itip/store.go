package itip

import (
	"context"

	"github.com/samber/mo"
)

// PropTransport is the store property holding a calendar's iTIP transport.
const PropTransport = "itip.transport"

// Store is a calendar the processor reconciles items against. Implementations
// own their concurrency control; Item.Generation is the optimistic token
// exchanged with them.
type Store interface {
	// Name identifies the store in logs.
	Name() string
	// GetItems looks up items by UID. The channel delivers exactly one result
	// and is then closed.
	GetItems(ctx context.Context, id string) <-chan mo.Result[[]*Item]
	// AddItem stores a new item and reports the outcome to l.
	AddItem(ctx context.Context, item *Item, l Listener)
	// ModifyItem replaces oldItem with newItem and reports the outcome to l.
	ModifyItem(ctx context.Context, newItem, oldItem *Item, l Listener)
	// Property returns a store property such as PropTransport.
	Property(name string) mo.Option[any]
	// SchedulingSupport returns the scheduling capability of the store, if it has one.
	SchedulingSupport() mo.Option[SchedulingSupport]
}

// SchedulingSupport is implemented by stores that know which attendee of an
// item represents their owner.
type SchedulingSupport interface {
	InvitedAttendee(item *Item) mo.Option[Attendee]
}

// CompletionKind tells which operation a Completion refers to.
type CompletionKind string

const (
	CompletionLookup  CompletionKind = "lookup"
	CompletionAdd     CompletionKind = "add"
	CompletionModify  CompletionKind = "modify"
	CompletionProcess CompletionKind = "process"
)

// Completion is the single outcome of an asynchronous operation. Err is nil
// on success.
type Completion struct {
	Kind   CompletionKind
	ItemID string
	// Item is the stored item after a successful add or modify.
	Item *Item
	Err  error
}

// Listener receives completions.
type Listener interface {
	OnComplete(c Completion)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(c Completion)

func (f ListenerFunc) OnComplete(c Completion) {
	f(c)
}

// Notify calls l if it is not nil.
func Notify(l Listener, c Completion) {
	if l != nil {
		l.OnComplete(c)
	}
}
