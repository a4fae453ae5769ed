// Package store owns the in-memory board and keeps it consistent with the
// card files behind an fsadapter.Adapter.
//
// Mutations persist through the adapter first and commit to memory after,
// except MoveCard, which moves the card in memory immediately and rolls back
// if the rename fails. External edits reach the store through a
// watcher.Watcher: see WatchColumns.
//
// Operations are not cancellable. Once started, file operations run to
// completion and update the board even if the caller's context is done.
//
// Loading and Error are advisory. A board stays readable while an error is
// set, and failed loads never wipe it.
package store

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/mdkanban/mdkanban/internal/card"
	"github.com/mdkanban/mdkanban/internal/debounce"
	"github.com/mdkanban/mdkanban/internal/fsadapter"
	"github.com/mdkanban/mdkanban/internal/watcher"
)

// DefaultColumns are used when WithColumns is not given.
var DefaultColumns = []string{"backlog", "in-progress", "done"}

// Option configures a Store.
type Option func(*Store)

// WithColumns sets the column ids, in display order.
func WithColumns(ids ...string) Option {
	return func(s *Store) { s.columns = append([]string(nil), ids...) }
}

// WithRoot sets the logical root card paths are built under.
func WithRoot(root string) Option {
	return func(s *Store) { s.root = root }
}

// WithLogger sets the logger. Defaults to stderr with a [store] prefix.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the time source used to stamp cards and name files.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithDebounce sets the quiet window for watcher-triggered reloads and the
// clock that measures it.
func WithDebounce(window time.Duration, clock debounce.Clock) Option {
	return func(s *Store) {
		s.window = window
		if clock != nil {
			s.debounceClock = clock
		}
	}
}

// WithLeniency sets the parse policy for card files.
func WithLeniency(l card.Leniency) Option {
	return func(s *Store) { s.leniency = l }
}

// WithStrictNotFound makes UpdateCard, MoveCard and DeleteCard return
// ErrCardNotFound for unknown ids in addition to setting the error state.
func WithStrictNotFound() Option {
	return func(s *Store) { s.strictNotFound = true }
}

// Snapshot is the observable state of a store.
type Snapshot struct {
	Board   Board  `json:"board"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// Status names the advisory state: "loading", "error" or "idle".
func (s Snapshot) Status() string {
	switch {
	case s.Loading:
		return "loading"
	case s.Error != "":
		return "error"
	default:
		return "idle"
	}
}

// ColumnStats counts the cards in one column.
type ColumnStats struct {
	ID    string `json:"id"`
	Cards int    `json:"cards"`
}

// Store is the board state machine.
type Store struct {
	// capMu guards the adapter. Operations hold the read lock while they
	// use it, so SetAdapter waits for them to finish.
	capMu   sync.RWMutex
	adapter fsadapter.Adapter
	watcher watcher.Watcher

	columns        []string
	root           string
	logger         *log.Logger
	now            func() time.Time
	window         time.Duration
	debounceClock  debounce.Clock
	leniency       card.Leniency
	strictNotFound bool

	mu      sync.Mutex
	board   Board
	loads   int
	errMsg  string
	subs    map[int]chan Snapshot
	nextSub int

	// files queues file operations per card id.
	files map[string]*fileState
}

// New creates a store over the given capabilities. Both are required.
func New(adapter fsadapter.Adapter, w watcher.Watcher, opts ...Option) (*Store, error) {
	if adapter == nil {
		return nil, fmt.Errorf("adapter cannot be nil")
	}
	if w == nil {
		return nil, fmt.Errorf("watcher cannot be nil")
	}

	s := &Store{
		adapter:       adapter,
		watcher:       w,
		columns:       append([]string(nil), DefaultColumns...),
		root:          fsadapter.DefaultMount,
		now:           time.Now,
		window:        debounce.DefaultWindow,
		debounceClock: debounce.RealClock{},
		leniency:      card.Lenient,
		subs:          make(map[int]chan Snapshot),
		files:         make(map[string]*fileState),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	if len(s.columns) == 0 {
		return nil, fmt.Errorf("at least one column is required")
	}
	seen := make(map[string]bool, len(s.columns))
	for _, id := range s.columns {
		if id == "" {
			return nil, fmt.Errorf("column id cannot be empty")
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate column %q", id)
		}
		seen[id] = true
	}

	s.board = newBoard(s.columns)
	return s, nil
}

// Root returns the logical root.
func (s *Store) Root() string { return s.root }

// Columns returns the configured column ids in order.
func (s *Store) Columns() []string {
	return append([]string(nil), s.columns...)
}

func (s *Store) hasColumn(id string) bool {
	for _, c := range s.columns {
		if c == id {
			return true
		}
	}
	return false
}

// SetAdapter swaps the file-system capability. It blocks until operations
// using the previous adapter have finished.
func (s *Store) SetAdapter(a fsadapter.Adapter) error {
	if a == nil {
		return fmt.Errorf("adapter cannot be nil")
	}
	s.capMu.Lock()
	defer s.capMu.Unlock()
	s.adapter = a
	return nil
}

// capability returns the current adapter and the function that releases it.
func (s *Store) capability() (fsadapter.Adapter, func()) {
	s.capMu.RLock()
	return s.adapter, s.capMu.RUnlock
}

// State returns a deep copy of the current state.
func (s *Store) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Board returns a deep copy of the board.
func (s *Store) Board() Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.clone()
}

// Card returns a copy of the card with the given id.
func (s *Store) Card(id string) (card.Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.board.Find(id)
	if !ok {
		return card.Card{}, false
	}
	return c.Clone(), true
}

// Stats returns per-column card counts in column order.
func (s *Store) Stats() []ColumnStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ColumnStats, len(s.board.Columns))
	for i, col := range s.board.Columns {
		out[i] = ColumnStats{ID: col.ID, Cards: len(col.Cards)}
	}
	return out
}

// SetError sets the advisory error. An empty message clears it. Board data
// is not touched.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errMsg == msg {
		return
	}
	s.errMsg = msg
	s.notifyLocked()
}

// ClearError clears the advisory error.
func (s *Store) ClearError() { s.SetError("") }

// Subscribe returns a channel that receives the state after every change,
// starting with the current one. Slow readers only see the latest state.
// The returned function unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	s.nextSub++
	id := s.nextSub
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Board:   s.board.clone(),
		Loading: s.loads > 0,
		Error:   s.errMsg,
	}
}

// notifyLocked publishes the current state. Callers hold s.mu.
func (s *Store) notifyLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// update replaces the board with fn's result and publishes it.
func (s *Store) update(fn func(Board) Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.board = fn(s.board)
	s.notifyLocked()
}

// fail logs err, records it as the advisory error and returns it.
func (s *Store) fail(err error) error {
	s.logger.Printf("ERROR: %v", err)
	s.SetError(err.Error())
	return err
}

// fileState is the per-card queue of file operations.
type fileState struct {
	tail chan struct{}
	// path is where the card's file lives once every queued operation
	// that has finished so far is taken into account.
	path string
	n    int
}

// fileTurn is one operation's place in a card's queue. File operations on
// the same card run one at a time, in the order they were queued; in-memory
// changes do not wait for them.
type fileTurn struct {
	s    *Store
	id   string
	prev chan struct{}
	mine chan struct{}
}

// enqueueLocked queues a file operation on id. current is the card's file
// path when nothing is queued yet. Callers hold s.mu.
func (s *Store) enqueueLocked(id, current string) *fileTurn {
	st := s.files[id]
	if st == nil {
		st = &fileState{path: current}
		s.files[id] = st
	}
	t := &fileTurn{s: s, id: id, prev: st.tail, mine: make(chan struct{})}
	st.tail = t.mine
	st.n++
	return t
}

// wait blocks until every operation queued before t has finished.
func (t *fileTurn) wait() {
	if t.prev != nil {
		<-t.prev
	}
}

// path returns where the card's file is now.
func (t *fileTurn) path() string {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.files[t.id].path
}

func (t *fileTurn) setPath(p string) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.files[t.id].path = p
}

// done lets the next queued operation run.
func (t *fileTurn) done() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	close(t.mine)
	if st := t.s.files[t.id]; st != nil {
		st.n--
		if st.n == 0 {
			delete(t.s.files, t.id)
		}
	}
}
