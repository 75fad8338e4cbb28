package itip

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/samber/mo"
)

// Mutator applies the decided operation to the target store.
type Mutator struct {
	logger *slog.Logger
}

func NewMutator(logger *slog.Logger) *Mutator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Mutator{logger: logger}
}

// Apply submits item to store according to op and returns the item as
// submitted. The store reports the outcome of the write to l; Apply does not
// wait for it.
//
// An update carries the generation and calendar of existing over to the new
// item so the store can detect concurrent changes and the item keeps a valid
// owner.
func (m *Mutator) Apply(ctx context.Context, item *Item, existing mo.Option[*Item], op Operation, store mo.Option[Store], l Listener) (*Item, error) {
	switch op {
	case OpAdd, OpUpdate:
	case OpDelete:
		return nil, fmt.Errorf("delete %s: %w", item.ID(), ErrNotImplemented)
	default:
		return nil, fmt.Errorf("%w: %d for %s", ErrUndefinedOperation, op, item.ID())
	}

	s, ok := store.Get()
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: %s without a target calendar", ErrUndefinedOperation, op)
	}

	if op == OpAdd {
		m.logger.Info("adding item", "uid", item.ID(), "calendar", s.Name())
		s.AddItem(ctx, item, l)
		itemsMutated.WithLabelValues(op.String()).Inc()
		return item, nil
	}

	old, ok := existing.Get()
	if !ok || old == nil {
		return nil, fmt.Errorf("update %s: %w", item.ID(), ErrMissingExistingItem)
	}
	updated := NewItemBuilder(item).
		Generation(old.Generation()).
		Calendar(old.Calendar()).
		Build()
	m.logger.Info("updating item",
		"uid", item.ID(),
		"calendar", s.Name(),
		"generation", old.Generation())
	s.ModifyItem(ctx, updated, old, l)
	itemsMutated.WithLabelValues(op.String()).Inc()
	return updated, nil
}
