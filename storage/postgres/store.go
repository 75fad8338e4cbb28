// Package postgres stores calendar items in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cyp0633/caldora-itip/itip"
	"github.com/cyp0633/caldora-itip/storage"
	"github.com/emersion/go-ical"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/mo"
)

// Querier is the subset of pgxpool.Pool the store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `CREATE TABLE IF NOT EXISTS itip_items (
	calendar_id TEXT NOT NULL,
	uid TEXT NOT NULL,
	component TEXT NOT NULL,
	generation INTEGER NOT NULL DEFAULT 1,
	data TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (calendar_id, uid)
)`

const (
	selectItem = `SELECT generation, data FROM itip_items WHERE calendar_id=$1 AND uid=$2`
	insertItem = `INSERT INTO itip_items (calendar_id, uid, component, generation, data)
VALUES ($1, $2, $3, 1, $4) ON CONFLICT (calendar_id, uid) DO NOTHING`
	updateItem = `UPDATE itip_items SET data=$1, generation=generation+1, updated_at=now()
WHERE calendar_id=$2 AND uid=$3 AND generation=$4`
)

// Store implements itip.Store for one calendar held in the itip_items table.
type Store struct {
	storage.Settings

	db         Querier
	calendarID string
	logger     *slog.Logger
}

// New creates a store for calendarID.
func New(db Querier, calendarID string, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if strings.TrimSpace(calendarID) == "" {
		return nil, fmt.Errorf("calendar id is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		db:         db,
		calendarID: calendarID,
		logger:     logger,
	}, nil
}

// EnsureSchema creates the itip_items table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create itip_items: %w", err)
	}
	return nil
}

func (s *Store) Name() string {
	return s.calendarID
}

func (s *Store) GetItems(ctx context.Context, id string) <-chan mo.Result[[]*itip.Item] {
	ch := make(chan mo.Result[[]*itip.Item], 1)
	go func() {
		defer close(ch)
		items, err := s.get(ctx, id)
		if err != nil {
			s.logger.Error("item lookup failed", "calendar", s.calendarID, "uid", id, "error", err)
			ch <- mo.Err[[]*itip.Item](err)
			return
		}
		ch <- mo.Ok(items)
	}()
	return ch
}

func (s *Store) get(ctx context.Context, id string) ([]*itip.Item, error) {
	var (
		generation int
		data       string
	)
	err := s.db.QueryRow(ctx, selectItem, s.calendarID, id).Scan(&generation, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	item, err := decodeItem(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return []*itip.Item{s.bind(item, generation)}, nil
}

func (s *Store) AddItem(ctx context.Context, item *itip.Item, l itip.Listener) {
	stored, err := s.insert(ctx, item)
	if err != nil {
		s.logger.Warn("add failed", "calendar", s.calendarID, "uid", item.ID(), "error", err)
	}
	itip.Notify(l, itip.Completion{Kind: itip.CompletionAdd, ItemID: item.ID(), Item: stored, Err: err})
}

func (s *Store) insert(ctx context.Context, item *itip.Item) (*itip.Item, error) {
	data, err := encodeItem(item)
	if err != nil {
		return nil, err
	}
	tag, err := s.db.Exec(ctx, insertItem, s.calendarID, item.ID(), item.Type().String(), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: %s", storage.ErrAlreadyExists, item.ID())
	}
	return s.bind(item, 1), nil
}

// ModifyItem writes newItem if the row still has newItem's generation.
func (s *Store) ModifyItem(ctx context.Context, newItem, oldItem *itip.Item, l itip.Listener) {
	stored, err := s.update(ctx, newItem)
	if err != nil {
		s.logger.Warn("modify failed", "calendar", s.calendarID, "uid", newItem.ID(), "error", err)
	}
	itip.Notify(l, itip.Completion{Kind: itip.CompletionModify, ItemID: newItem.ID(), Item: stored, Err: err})
}

func (s *Store) update(ctx context.Context, item *itip.Item) (*itip.Item, error) {
	data, err := encodeItem(item)
	if err != nil {
		return nil, err
	}
	tag, err := s.db.Exec(ctx, updateItem, data, s.calendarID, item.ID(), item.Generation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: %s at generation %d", storage.ErrConflict, item.ID(), item.Generation())
	}
	return s.bind(item, item.Generation()+1), nil
}

func (s *Store) bind(item *itip.Item, generation int) *itip.Item {
	return itip.NewItemBuilder(item).
		Generation(generation).
		Calendar(mo.Some[itip.Store](s)).
		Build()
}

func encodeItem(item *itip.Item) (string, error) {
	data, err := itip.MarshalItem(item)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeItem(data string) (*itip.Item, error) {
	cal, err := ical.NewDecoder(strings.NewReader(data)).Decode()
	if err != nil {
		return nil, err
	}
	for _, child := range cal.Children {
		if child.Name != ical.CompTimezone {
			return itip.NewItem(child), nil
		}
	}
	return nil, fmt.Errorf("calendar object has no item")
}
