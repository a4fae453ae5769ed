// Package watcher reports card file additions, changes and removals per
// watched column directory.
package watcher

import (
	"sort"
	"sync"
)

// Op is the kind of change observed.
type Op int

const (
	// OpAdd indicates a new card file appeared.
	OpAdd Op = iota
	// OpChange indicates an existing card file was written.
	OpChange
	// OpUnlink indicates a card file was removed or renamed away.
	OpUnlink
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpChange:
		return "change"
	case OpUnlink:
		return "unlink"
	default:
		return "unknown"
	}
}

// Event is a single change notification.
type Event struct {
	// Path is the logical path of the file that changed.
	Path string
	Op   Op
}

// Watcher delivers change events for a watched directory to a callback
// until the returned unsubscribe function is called. Callbacks may run on
// the watcher's own goroutine and must not block for long.
type Watcher interface {
	Watch(path string, fn func(Event)) (unsubscribe func(), err error)
	Close() error
}

// subscriptions tracks callbacks per watched key. It is shared by the
// fsnotify and manual implementations.
type subscriptions struct {
	mu     sync.Mutex
	nextID int
	byKey  map[string]map[int]subscriber
}

type subscriber struct {
	logical string
	fn      func(Event)
}

func newSubscriptions() *subscriptions {
	return &subscriptions{byKey: make(map[string]map[int]subscriber)}
}

// add registers fn and reports whether it is the first subscriber for key.
func (s *subscriptions) add(key string, sub subscriber) (id int, first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, ok := s.byKey[key]
	if !ok {
		subs = make(map[int]subscriber)
		s.byKey[key] = subs
	}
	s.nextID++
	subs[s.nextID] = sub
	return s.nextID, !ok
}

// remove drops one subscriber and reports whether key has none left.
func (s *subscriptions) remove(key string, id int) (last bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, ok := s.byKey[key]
	if !ok {
		return false
	}
	if _, ok := subs[id]; !ok {
		return false
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(s.byKey, key)
		return true
	}
	return false
}

// snapshot copies the subscribers of key in registration order so callbacks
// run without the lock held.
func (s *subscriptions) snapshot(key string) []subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.byKey[key]
	ids := make([]int, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]subscriber, 0, len(ids))
	for _, id := range ids {
		out = append(out, subs[id])
	}
	return out
}

func (s *subscriptions) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.byKey))
	for k := range s.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
