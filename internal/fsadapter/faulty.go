package fsadapter

import (
	"context"
	"sync"
)

// Call is one operation observed by Faulty.
type Call struct {
	Op   Op
	Path string
}

// Faulty wraps an Adapter and injects failures or pauses per operation. It
// records every call it sees. It is the test double for rollback paths.
type Faulty struct {
	inner Adapter

	mu       sync.Mutex
	failures map[Op]error
	gates    map[Op]*Gate
	calls    []Call
}

// NewFaulty wraps inner.
func NewFaulty(inner Adapter) *Faulty {
	return &Faulty{
		inner:    inner,
		failures: make(map[Op]error),
		gates:    make(map[Op]*Gate),
	}
}

// FailOn makes every subsequent op fail with err (wrapped in *Error).
func (f *Faulty) FailOn(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

// Heal removes all injected failures.
func (f *Faulty) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = make(map[Op]error)
}

// Pause blocks the next call of op until the returned gate is released.
func (f *Faulty) Pause(op Op) *Gate {
	g := &Gate{reached: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.gates[op] = g
	f.mu.Unlock()
	return g
}

// Calls returns a copy of the recorded calls.
func (f *Faulty) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// ResetCalls forgets recorded calls.
func (f *Faulty) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *Faulty) before(ctx context.Context, op Op, p string) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: op, Path: p})
	gate := f.gates[op]
	delete(f.gates, op)
	f.mu.Unlock()

	if gate != nil {
		gate.reachedOnce.Do(func() { close(gate.reached) })
		select {
		case <-gate.release:
		case <-ctx.Done():
			return &Error{Op: op, Path: p, Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	err := f.failures[op]
	f.mu.Unlock()
	if err != nil {
		return &Error{Op: op, Path: p, Err: err}
	}
	return nil
}

func (f *Faulty) ReadDir(ctx context.Context, p string) ([]string, error) {
	if err := f.before(ctx, OpReadDir, p); err != nil {
		return nil, err
	}
	return f.inner.ReadDir(ctx, p)
}

func (f *Faulty) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if err := f.before(ctx, OpReadFile, p); err != nil {
		return nil, err
	}
	return f.inner.ReadFile(ctx, p)
}

func (f *Faulty) WriteFile(ctx context.Context, p string, data []byte) error {
	if err := f.before(ctx, OpWriteFile, p); err != nil {
		return err
	}
	return f.inner.WriteFile(ctx, p, data)
}

func (f *Faulty) Unlink(ctx context.Context, p string) error {
	if err := f.before(ctx, OpUnlink, p); err != nil {
		return err
	}
	return f.inner.Unlink(ctx, p)
}

func (f *Faulty) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := f.before(ctx, OpRename, oldPath); err != nil {
		return err
	}
	return f.inner.Rename(ctx, oldPath, newPath)
}

func (f *Faulty) Mkdir(ctx context.Context, p string, opts MkdirOptions) error {
	if err := f.before(ctx, OpMkdir, p); err != nil {
		return err
	}
	return f.inner.Mkdir(ctx, p, opts)
}

// Gate holds a paused operation.
type Gate struct {
	reached     chan struct{}
	release     chan struct{}
	reachedOnce sync.Once
	releaseOnce sync.Once
}

// Reached is closed once the paused operation has started waiting.
func (g *Gate) Reached() <-chan struct{} { return g.reached }

// Release lets the paused operation continue. Safe to call more than once.
func (g *Gate) Release() {
	g.releaseOnce.Do(func() { close(g.release) })
}
