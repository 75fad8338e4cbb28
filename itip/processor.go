package itip

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/samber/mo"
)

// Processor runs inbound iTIP messages against their target calendar and
// submits the response.
//
// Items of a message are handled one after another. If an item fails, the
// items before it stay committed: there is no rollback across a message.
type Processor struct {
	dispatcher *Dispatcher
	resolver   *Resolver
	reconciler *Reconciler
	mutator    *Mutator
	logger     *slog.Logger
}

// NewProcessor creates a processor sending responses through dispatcher.
func NewProcessor(dispatcher *Dispatcher, logger *slog.Logger) (*Processor, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Processor{
		dispatcher: dispatcher,
		resolver:   NewResolver(dispatcher),
		reconciler: NewReconciler(logger),
		mutator:    NewMutator(logger),
		logger:     logger,
	}, nil
}

// Process handles msg. Validation errors are returned before the target
// calendar is touched. Store writes complete asynchronously and are reported
// to l, as is the final outcome of the message. l may be nil.
func (p *Processor) Process(ctx context.Context, msg *Message, l Listener) (err error) {
	if msg == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidArgument)
	}
	defer func() {
		messagesProcessed.WithLabelValues(string(msg.ReceivedMethod), resultLabel(err)).Inc()
		Notify(l, Completion{Kind: CompletionProcess, Err: err})
	}()

	resp := msg.Clone()
	if resp.ResponseMethod, err = SuggestResponse(resp.ReceivedMethod); err != nil {
		return err
	}

	if len(resp.Items) == 0 {
		return ErrEmptyItemList
	}
	first := resp.Items[0]
	if first == nil {
		return fmt.Errorf("%w: nil item", ErrInvalidArgument)
	}
	itemType := first.Type()
	if itemType == ItemUnknown {
		return fmt.Errorf("%w: %q", ErrUnknownItemType, first.comp.Name)
	}
	valid, err := IsValidPair(resp.ReceivedMethod, resp.ResponseMethod, itemType)
	if err != nil {
		return err
	}
	if !valid {
		return fmt.Errorf("%w: %s in response to %s", ErrInvalidResponseMethod, resp.ResponseMethod, resp.ReceivedMethod)
	}

	p.logger.Info("processing itip message",
		"received_method", resp.ReceivedMethod,
		"response_method", resp.ResponseMethod,
		"item_type", itemType,
		"items", len(resp.Items))

	outgoing := make([]*Item, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil {
			return fmt.Errorf("%w: nil item", ErrInvalidArgument)
		}
		out, err := p.processItem(ctx, resp, item, l)
		if err != nil {
			return fmt.Errorf("process %s: %w", item.ID(), err)
		}
		if out != nil {
			outgoing = append(outgoing, out)
		}
	}
	resp.Items = outgoing

	if resp.ResponseMethod == resp.ReceivedMethod {
		return nil
	}
	// Every item was left out as not invited or not found. A response
	// without items tells the organizer nothing, so none is sent.
	if len(resp.Items) == 0 {
		p.logger.Info("nothing to respond to", "response_method", resp.ResponseMethod)
		return nil
	}
	organizer, ok := first.Organizer().Get()
	if !ok {
		p.logger.Warn("item has no organizer, response not sent", "uid", first.ID())
		return nil
	}
	t, err := p.dispatcher.Resolve(resp.TargetCalendar)
	if err != nil {
		return err
	}
	p.dispatcher.Send(ctx, t, []Attendee{organizer}, resp)
	return nil
}

// processItem reconciles and stores one item, then returns the item to carry
// in the response, or nil if it must be left out.
func (p *Processor) processItem(ctx context.Context, resp *Message, item *Item, l Listener) (*Item, error) {
	lookup := p.reconciler.Find(ctx, item, resp.TargetCalendar)
	if !lookup.OK {
		itemsSkipped.WithLabelValues("lookup_failed").Inc()
		Notify(l, Completion{Kind: CompletionLookup, ItemID: item.ID(), Err: lookup.Err})
		return nil, nil
	}

	var (
		self     mo.Option[Attendee]
		resolved bool
	)
	resolveSelf := func() (mo.Option[Attendee], error) {
		if !resolved {
			var err error
			if self, err = p.resolver.Resolve(item, resp.Identity, resp.TargetCalendar); err != nil {
				return self, err
			}
			resolved = true
		}
		return self, nil
	}

	mutate := true
	switch resp.ReceivedMethod {
	case MethodRequest:
		a, err := resolveSelf()
		if err != nil {
			return nil, err
		}
		invited, ok := a.Get()
		if !ok {
			p.logger.Info("no attendee found, not invited", "uid", item.ID())
			itemsSkipped.WithLabelValues("not_invited").Inc()
			return nil, nil
		}
		if invited.Status == PartStatDeclined {
			p.logger.Info("invitation declined, not storing item", "uid", item.ID(), "attendee", invited.ID)
			itemsSkipped.WithLabelValues("declined").Inc()
			mutate = false
		}
	case MethodPublish:
	case MethodReply, MethodRefresh, MethodAdd, MethodCancel, MethodCounter, MethodDeclineCounter:
		return nil, fmt.Errorf("received %s: %w", resp.ReceivedMethod, ErrNotImplemented)
	default:
		return nil, fmt.Errorf("%w: received %q", ErrUnknownMethod, resp.ReceivedMethod)
	}

	if mutate {
		if _, err := p.mutator.Apply(ctx, item, lookup.Existing, lookup.Op, resp.TargetCalendar, l); err != nil {
			return nil, err
		}
	}

	if resp.ResponseMethod != MethodReply {
		return item, nil
	}
	a, err := resolveSelf()
	if err != nil {
		return nil, err
	}
	return NarrowForReply(item, a)
}
