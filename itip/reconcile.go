package itip

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/samber/mo"
)

var errLookupClosed = errors.New("lookup closed without a result")

// Operation is the calendar mutation decided for an item.
type Operation int

const (
	// OpUndetermined is used when there is no store to reconcile against.
	OpUndetermined Operation = iota
	OpAdd
	OpUpdate
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "undetermined"
	}
}

// Lookup is the outcome of reconciling one item.
type Lookup struct {
	Existing mo.Option[*Item]
	Op       Operation
	// OK is false when the store lookup failed; the item must not be processed further.
	OK  bool
	Err error
}

// Reconciler checks whether an item already exists in a store.
type Reconciler struct {
	logger *slog.Logger
}

func NewReconciler(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reconciler{logger: logger}
}

// Find looks item up by UID in store and waits for the result. Only the first
// match is used. Without a store the lookup is skipped and the operation is
// left undetermined.
func (r *Reconciler) Find(ctx context.Context, item *Item, store mo.Option[Store]) Lookup {
	s, ok := store.Get()
	if !ok || s == nil {
		r.logger.Debug("no target calendar, skipping lookup", "uid", item.ID())
		return Lookup{Existing: mo.None[*Item](), Op: OpUndetermined, OK: true}
	}

	r.logger.Debug("looking up existing item", "uid", item.ID(), "calendar", s.Name())
	select {
	case res, open := <-s.GetItems(ctx, item.ID()):
		if !open {
			return Lookup{Existing: mo.None[*Item](), Err: errLookupClosed}
		}
		items, err := res.Get()
		if err != nil {
			r.logger.Warn("item lookup failed", "uid", item.ID(), "calendar", s.Name(), "error", err)
			return Lookup{Existing: mo.None[*Item](), Err: err}
		}
		if len(items) > 0 && items[0] != nil {
			r.logger.Debug("existing item found",
				"uid", item.ID(),
				"generation", items[0].Generation(),
				"matches", len(items))
			return Lookup{Existing: mo.Some(items[0]), Op: OpUpdate, OK: true}
		}
		return Lookup{Existing: mo.None[*Item](), Op: OpAdd, OK: true}
	case <-ctx.Done():
		r.logger.Warn("item lookup abandoned", "uid", item.ID(), "error", ctx.Err())
		return Lookup{Existing: mo.None[*Item](), Err: ctx.Err()}
	}
}
