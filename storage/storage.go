// Package storage holds what the calendar store backends share. The backends
// themselves live in subpackages and implement itip.Store.
package storage

import (
	"errors"
	"strings"
	"sync"

	"github.com/cyp0633/caldora-itip/itip"
	"github.com/samber/mo"
)

var (
	// ErrNotFound is returned when a requested item doesn't exist
	ErrNotFound = errors.New("item not found")
	// ErrAlreadyExists is returned when adding an item whose UID is taken
	ErrAlreadyExists = errors.New("item already exists")
	// ErrConflict is returned when an update carries a stale generation
	ErrConflict = errors.New("generation conflict")
	// ErrStorageUnavailable is returned when the storage backend is unavailable
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Owner implements itip.SchedulingSupport for a calendar owned by a single
// calendar user.
type Owner struct {
	// Address is the owner's calendar address, e.g. "mailto:alice@example.com"
	Address string
}

// InvitedAttendee returns the attendee of item matching the owner's address.
func (o Owner) InvitedAttendee(item *itip.Item) mo.Option[itip.Attendee] {
	if strings.TrimSpace(o.Address) == "" {
		return mo.None[itip.Attendee]()
	}
	return item.AttendeeByID(o.Address)
}

// Settings holds the calendar owner and store properties. Backends embed it
// to provide Property and SchedulingSupport. The zero value has no owner and
// no properties.
type Settings struct {
	mu    sync.RWMutex
	props Properties
	owner mo.Option[itip.SchedulingSupport]
}

// SetOwner enables scheduling support: the attendee matching address is
// reported as the invited attendee.
func (s *Settings) SetOwner(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = mo.Some[itip.SchedulingSupport](Owner{Address: address})
}

// SetProperty sets a store property such as itip.PropTransport.
func (s *Settings) SetProperty(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.props == nil {
		s.props = make(Properties)
	}
	s.props[name] = value
}

func (s *Settings) Property(name string) mo.Option[any] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.props.Get(name)
}

func (s *Settings) SchedulingSupport() mo.Option[itip.SchedulingSupport] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// Properties is a store property map.
type Properties map[string]any

// Get implements itip.Store.Property for a property map.
func (p Properties) Get(name string) mo.Option[any] {
	v, ok := p[name]
	if !ok || v == nil {
		return mo.None[any]()
	}
	return mo.Some(v)
}

// Result delivers a single lookup result on a closed, buffered channel.
func Result(items []*itip.Item, err error) <-chan mo.Result[[]*itip.Item] {
	ch := make(chan mo.Result[[]*itip.Item], 1)
	if err != nil {
		ch <- mo.Err[[]*itip.Item](err)
	} else {
		ch <- mo.Ok(items)
	}
	close(ch)
	return ch
}
