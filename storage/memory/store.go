// memory based implementation for testing purposes and the command line tool
package memory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/cyp0633/caldora-itip/itip"
	"github.com/cyp0633/caldora-itip/storage"
	"github.com/samber/mo"
)

// Store implements itip.Store using an in-memory map keyed by UID
type Store struct {
	storage.Settings

	name   string
	logger *slog.Logger

	mu    sync.RWMutex
	items map[string]*itip.Item
}

// New creates a new in-memory store
func New(name string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		name:   name,
		logger: logger,
		items:  make(map[string]*itip.Item),
	}
}

func (s *Store) Name() string {
	return s.name
}

// GetItems resolves the lookup on its own goroutine.
func (s *Store) GetItems(ctx context.Context, id string) <-chan mo.Result[[]*itip.Item] {
	ch := make(chan mo.Result[[]*itip.Item], 1)
	go func() {
		defer close(ch)
		if err := ctx.Err(); err != nil {
			ch <- mo.Err[[]*itip.Item](err)
			return
		}
		s.mu.RLock()
		item, ok := s.items[id]
		s.mu.RUnlock()
		if !ok {
			ch <- mo.Ok[[]*itip.Item](nil)
			return
		}
		ch <- mo.Ok([]*itip.Item{item})
	}()
	return ch
}

func (s *Store) AddItem(_ context.Context, item *itip.Item, l itip.Listener) {
	stored, err := s.add(item)
	if err != nil {
		s.logger.Warn("add failed", "uid", item.ID(), "error", err)
	} else {
		s.logger.Debug("item added", "uid", stored.ID(), "generation", stored.Generation())
	}
	itip.Notify(l, itip.Completion{Kind: itip.CompletionAdd, ItemID: item.ID(), Item: stored, Err: err})
}

func (s *Store) add(item *itip.Item) (*itip.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID()]; exists {
		return nil, fmt.Errorf("%w: %s", storage.ErrAlreadyExists, item.ID())
	}
	stored := itip.NewItemBuilder(item).
		Generation(1).
		Calendar(mo.Some[itip.Store](s)).
		Build()
	s.items[item.ID()] = stored
	return stored, nil
}

// ModifyItem replaces the stored item if newItem carries its current generation.
func (s *Store) ModifyItem(_ context.Context, newItem, oldItem *itip.Item, l itip.Listener) {
	stored, err := s.modify(newItem)
	if err != nil {
		s.logger.Warn("modify failed", "uid", newItem.ID(), "generation", newItem.Generation(), "error", err)
	} else {
		s.logger.Debug("item modified", "uid", stored.ID(), "generation", stored.Generation())
	}
	itip.Notify(l, itip.Completion{Kind: itip.CompletionModify, ItemID: newItem.ID(), Item: stored, Err: err})
}

func (s *Store) modify(item *itip.Item) (*itip.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[item.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, item.ID())
	}
	if current.Generation() != item.Generation() {
		return nil, fmt.Errorf("%w: %s has generation %d, update carries %d",
			storage.ErrConflict, item.ID(), current.Generation(), item.Generation())
	}
	stored := itip.NewItemBuilder(item).
		Generation(current.Generation() + 1).
		Calendar(mo.Some[itip.Store](s)).
		Build()
	s.items[item.ID()] = stored
	return stored, nil
}

// Items returns the stored items ordered by UID.
func (s *Store) Items() []*itip.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*itip.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID() < items[j].ID() })
	return items
}
