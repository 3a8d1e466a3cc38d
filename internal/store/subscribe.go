package store

import (
	"sync"

	"github.com/roach88/toolbox/internal/ir"
)

// EventKind identifies what changed.
type EventKind string

const (
	EventSaved     EventKind = "saved"
	EventCleared   EventKind = "cleared"
	EventExpired   EventKind = "expired"
	EventRestored  EventKind = "restored"
	EventImported  EventKind = "imported"
	EventRefreshed EventKind = "refreshed"
)

// Event is delivered to subscribers after a successful mutation.
// State is a copy of the active cart, nil after clear or expiry.
type Event struct {
	Kind  EventKind
	State *ir.CartState
}

type subscriber struct {
	id int
	fn func(Event)
}

// subscribers is an ordered observer list.
type subscribers struct {
	mu     sync.Mutex
	nextID int
	list   []subscriber
}

func (s *subscribers) add(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.list = append(s.list, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *subscribers) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.list {
		if sub.id == id {
			s.list = append(s.list[:i:i], s.list[i+1:]...)
			return
		}
	}
}

// notify calls every subscriber in registration order. Each subscriber gets
// its own copy of the state.
func (s *subscribers) notify(ev Event) {
	s.mu.Lock()
	list := make([]subscriber, len(s.list))
	copy(list, s.list)
	s.mu.Unlock()

	for _, sub := range list {
		sub.fn(Event{Kind: ev.Kind, State: ev.State.Clone()})
	}
}

// Subscribe registers fn to be called after every successful save, clear,
// expiry, restore, import and refresh. The returned function unsubscribes; calling it
// more than once is safe.
func (s *Store) Subscribe(fn func(Event)) (cancel func()) {
	return s.subs.add(fn)
}
