// Package debounce coalesces bursts of events per key.
//
// Every call to Trigger for a key restarts that key's window; when the window
// elapses without another trigger the callback runs once with the last value.
// Keys never share a window.
package debounce

import (
	"sync"
	"time"
)

// DefaultWindow matches how long an editor save burst (delete + create +
// write) usually takes to settle.
const DefaultWindow = 300 * time.Millisecond

// Option configures a Keyed debouncer.
type Option func(*config)

type config struct {
	clock Clock
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// Keyed debounces values of type V per key K.
type Keyed[K comparable, V any] struct {
	window time.Duration
	clock  Clock
	fn     func(key K, last V)

	mu      sync.Mutex
	pending map[K]*entry[V]
	gen     uint64
	stopped bool
}

type entry[V any] struct {
	value V
	timer Timer
	gen   uint64
}

// New returns a debouncer that calls fn once per key after window of quiet.
// A window <= 0 uses DefaultWindow.
func New[K comparable, V any](window time.Duration, fn func(key K, last V), opts ...Option) *Keyed[K, V] {
	cfg := config{clock: RealClock{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Keyed[K, V]{
		window:  window,
		clock:   cfg.clock,
		fn:      fn,
		pending: make(map[K]*entry[V]),
	}
}

// Window returns the configured quiet period.
func (d *Keyed[K, V]) Window() time.Duration { return d.window }

// Trigger records v for key and restarts the key's window.
func (d *Keyed[K, V]) Trigger(key K, v V) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}

	d.gen++
	gen := d.gen
	d.pending[key] = &entry[V]{
		value: v,
		gen:   gen,
		timer: d.clock.AfterFunc(d.window, func() { d.fire(key, gen) }),
	}
}

func (d *Keyed[K, V]) fire(key K, gen uint64) {
	d.mu.Lock()
	p, ok := d.pending[key]
	// A newer trigger may have replaced this entry after the timer started
	// firing but before it took the lock.
	if !ok || p.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	d.fn(key, p.value)
}

// Flush runs every pending callback now.
func (d *Keyed[K, V]) Flush() {
	d.mu.Lock()
	ready := d.pending
	d.pending = make(map[K]*entry[V])
	d.mu.Unlock()

	for key, p := range ready {
		p.timer.Stop()
		d.fn(key, p.value)
	}
}

// Stop cancels pending callbacks and ignores later triggers.
func (d *Keyed[K, V]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

// Pending returns the number of keys waiting for their window to elapse.
func (d *Keyed[K, V]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
