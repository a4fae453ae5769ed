package watcher

import (
	"path"
	"sync"
)

// Manual is a Watcher that only reports what Emit tells it to. It backs the
// in-memory storage backend and tests.
type Manual struct {
	subs *subscriptions

	mu     sync.Mutex
	closed bool
}

// NewManual returns an empty Manual watcher.
func NewManual() *Manual {
	return &Manual{subs: newSubscriptions()}
}

func (m *Manual) Watch(dir string, fn func(Event)) (func(), error) {
	key := path.Clean(dir)
	id, _ := m.subs.add(key, subscriber{logical: dir, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { m.subs.remove(key, id) })
	}, nil
}

// Emit delivers an event for filePath to the callbacks watching its
// directory. It is a no-op after Close.
func (m *Manual) Emit(filePath string, op Op) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	for _, sub := range m.subs.snapshot(path.Dir(path.Clean(filePath))) {
		sub.fn(Event{Path: filePath, Op: op})
	}
}

// Watched returns the directories with at least one subscriber.
func (m *Manual) Watched() []string {
	return m.subs.keys()
}

func (m *Manual) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
