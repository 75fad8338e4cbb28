// Package caldav keeps calendar items on a remote CalDAV collection through
// go-webdav.
package caldav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/cyp0633/caldora-itip/internal/httpclient"
	"github.com/cyp0633/caldora-itip/itip"
	"github.com/cyp0633/caldora-itip/storage"
	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Client is what the store needs from the server: go-webdav's calendar
// query and a conditional PUT.
type Client interface {
	QueryCalendar(ctx context.Context, calendar string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error)
	// DoPUT writes data if the object still has etag, or if it does not exist
	// when etag is empty. It fails with httpclient.ErrPreconditionFailed
	// otherwise.
	DoPUT(ctx context.Context, urlStr string, etag string, data []byte) (string, error)
}

type remote struct {
	dav  *caldav.Client
	http httpclient.Client
}

func (r *remote) QueryCalendar(ctx context.Context, calendar string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error) {
	return r.dav.QueryCalendar(ctx, calendar, query)
}

func (r *remote) DoPUT(ctx context.Context, urlStr string, etag string, data []byte) (string, error) {
	return r.http.DoPUT(ctx, urlStr, etag, data)
}

// NewClient creates a client for the CalDAV server at endpoint, using basic
// auth when username is set.
func NewClient(endpoint, username, password string, logger *slog.Logger) (Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint %q: %w", endpoint, err)
	}
	hc := &http.Client{}
	if username != "" {
		hc.Transport = httpclient.NewBasicAuthTransport(username, password, nil, logger)
	}
	dav, err := caldav.NewClient(hc, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	wrapper, err := httpclient.NewHttpClientWrapper(hc, *u, logger)
	if err != nil {
		return nil, err
	}
	return &remote{dav: dav, http: wrapper}, nil
}

// object tracks where an item lives and which generation was handed out last.
type object struct {
	path       string
	etag       string
	generation int
}

// Store implements itip.Store on one calendar collection.
type Store struct {
	storage.Settings

	client   Client
	calendar string
	logger   *slog.Logger

	mu      sync.Mutex
	objects map[string]*object
}

// New creates a store on the collection at calendar, e.g.
// "/dav/calendars/alice/work/".
func New(client Client, calendar string, logger *slog.Logger) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("caldav client is required")
	}
	if calendar == "" {
		return nil, fmt.Errorf("calendar path is required")
	}
	if !strings.HasSuffix(calendar, "/") {
		calendar += "/"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		client:   client,
		calendar: calendar,
		logger:   logger,
		objects:  make(map[string]*object),
	}, nil
}

func (s *Store) Name() string {
	return s.calendar
}

// GetItems runs a calendar-query REPORT per item type, matching on UID.
func (s *Store) GetItems(ctx context.Context, id string) <-chan mo.Result[[]*itip.Item] {
	if id == "" {
		return storage.Result(nil, fmt.Errorf("%w: empty uid", itip.ErrInvalidArgument))
	}
	ch := make(chan mo.Result[[]*itip.Item], 1)
	go func() {
		defer close(ch)
		items, err := s.query(ctx, id)
		if err != nil {
			s.logger.Error("calendar query failed", "calendar", s.calendar, "uid", id, "error", err)
			ch <- mo.Err[[]*itip.Item](err)
			return
		}
		ch <- mo.Ok(items)
	}()
	return ch
}

func (s *Store) query(ctx context.Context, id string) ([]*itip.Item, error) {
	var items []*itip.Item
	for _, comp := range []string{ical.CompEvent, ical.CompToDo} {
		q := &caldav.CalendarQuery{
			CompRequest: caldav.CalendarCompRequest{
				Name:     ical.CompCalendar,
				AllProps: true,
				AllComps: true,
			},
			CompFilter: caldav.CompFilter{
				Name: ical.CompCalendar,
				Comps: []caldav.CompFilter{{
					Name: comp,
					Props: []caldav.PropFilter{{
						Name:      ical.PropUID,
						TextMatch: &caldav.TextMatch{Text: id},
					}},
				}},
			},
		}
		objs, err := s.client.QueryCalendar(ctx, s.calendar, q)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
		}
		for _, obj := range objs {
			if obj.Data == nil {
				continue
			}
			for _, child := range obj.Data.Children {
				if child.Name != comp {
					continue
				}
				uid, _ := child.Props.Text(ical.PropUID)
				if uid != id {
					continue
				}
				items = append(items, s.track(itip.NewItem(child), obj.Path, obj.ETag))
			}
		}
	}
	return items, nil
}

// track binds item to the store, keeping the generation of an object seen
// before unless its ETag changed.
func (s *Store) track(item *itip.Item, objPath, etag string) *itip.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[item.ID()]
	switch {
	case !ok:
		o = &object{path: objPath, etag: etag, generation: 1}
		s.objects[item.ID()] = o
	case o.etag != etag:
		o.path, o.etag = objPath, etag
		o.generation++
	}
	return s.bind(item, o.generation)
}

func (s *Store) AddItem(ctx context.Context, item *itip.Item, l itip.Listener) {
	stored, err := s.add(ctx, item)
	if err != nil {
		s.logger.Warn("add failed", "calendar", s.calendar, "uid", item.ID(), "error", err)
	}
	itip.Notify(l, itip.Completion{Kind: itip.CompletionAdd, ItemID: item.ID(), Item: stored, Err: err})
}

func (s *Store) add(ctx context.Context, item *itip.Item) (*itip.Item, error) {
	s.mu.Lock()
	_, exists := s.objects[item.ID()]
	s.mu.Unlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", storage.ErrAlreadyExists, item.ID())
	}

	data, err := itip.MarshalItem(item)
	if err != nil {
		return nil, err
	}
	objPath := path.Join(s.calendar, uuid.NewString()+".ics")
	etag, err := s.put(ctx, objPath, "", data)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[item.ID()] = &object{path: objPath, etag: etag, generation: 1}
	return s.bind(item, 1), nil
}

// ModifyItem overwrites the object newItem was read from, provided nobody
// changed it on the server since.
func (s *Store) ModifyItem(ctx context.Context, newItem, oldItem *itip.Item, l itip.Listener) {
	stored, err := s.modify(ctx, newItem)
	if err != nil {
		s.logger.Warn("modify failed", "calendar", s.calendar, "uid", newItem.ID(), "error", err)
	}
	itip.Notify(l, itip.Completion{Kind: itip.CompletionModify, ItemID: newItem.ID(), Item: stored, Err: err})
}

func (s *Store) modify(ctx context.Context, item *itip.Item) (*itip.Item, error) {
	s.mu.Lock()
	o, ok := s.objects[item.ID()]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, item.ID())
	}
	if o.generation != item.Generation() {
		gen := o.generation
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s has generation %d, update carries %d",
			storage.ErrConflict, item.ID(), gen, item.Generation())
	}
	if o.etag == "" {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s has no known ETag, look it up again", storage.ErrConflict, item.ID())
	}
	objPath, etag := o.path, o.etag
	s.mu.Unlock()

	data, err := itip.MarshalItem(item)
	if err != nil {
		return nil, err
	}
	newEtag, err := s.put(ctx, objPath, etag, data)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o.etag = newEtag
	o.generation++
	return s.bind(item, o.generation), nil
}

func (s *Store) put(ctx context.Context, objPath, etag string, data []byte) (string, error) {
	newEtag, err := s.client.DoPUT(ctx, objPath, etag, data)
	switch {
	case errors.Is(err, httpclient.ErrPreconditionFailed):
		if etag == "" {
			return "", fmt.Errorf("%w: %s", storage.ErrAlreadyExists, objPath)
		}
		return "", fmt.Errorf("%w: %s changed on the server", storage.ErrConflict, objPath)
	case err != nil:
		return "", fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	return newEtag, nil
}

func (s *Store) bind(item *itip.Item, generation int) *itip.Item {
	return itip.NewItemBuilder(item).
		Generation(generation).
		Calendar(mo.Some[itip.Store](s)).
		Build()
}
