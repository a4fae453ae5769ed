package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mdkanban/mdkanban/internal/card"
	"github.com/mdkanban/mdkanban/internal/debounce"
	"github.com/mdkanban/mdkanban/internal/fsadapter"
	"github.com/mdkanban/mdkanban/internal/watcher"
)

// LoadCards reads every configured column and replaces the board with what
// the files say.
//
// Unreadable or corrupt card files are skipped and logged. If a column
// cannot be listed the error state is set, the board is left as it was and
// the error is returned. Loading is cleared either way.
//
// The first column must exist: a missing first column means the board root
// itself is gone (unmounted or deleted), which is reported as a failure
// instead of emptying the board. Other missing columns read as empty.
func (s *Store) LoadCards(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	s.setLoading(true)
	defer s.setLoading(false)

	a, release := s.capability()
	defer release()

	s.logger.Printf("Loading cards from %s", s.root)

	var all []card.Card
	for _, col := range s.columns {
		cards, err := s.readColumn(ctx, a, col)
		if err != nil {
			return s.fail(fmt.Errorf("load cards: %w", err))
		}
		all = append(all, cards...)
	}

	s.SyncFromFileSystem(all)
	s.ClearError()
	s.logger.Printf("Loaded %d cards", len(all))
	return nil
}

// ReloadColumn re-reads one column and replaces only that column's cards.
// A card that now lives in this column is dropped from any other column.
func (s *Store) ReloadColumn(ctx context.Context, columnID string) error {
	ctx = context.WithoutCancel(ctx)

	if !s.hasColumn(columnID) {
		return s.fail(fmt.Errorf("reload column: %w: %s", ErrUnknownColumn, columnID))
	}

	a, release := s.capability()
	defer release()

	cards, err := s.readColumn(ctx, a, columnID)
	if err != nil {
		return s.fail(fmt.Errorf("reload column %s: %w", columnID, err))
	}

	ids := make(map[string]bool, len(cards))
	for _, c := range cards {
		ids[c.ID] = true
	}

	s.update(func(b Board) Board {
		for ci, col := range b.Columns {
			if col.ID == columnID {
				b = b.withCards(ci, cards)
				continue
			}
			kept := make([]card.Card, 0, len(col.Cards))
			for _, c := range col.Cards {
				if !ids[c.ID] {
					kept = append(kept, c)
				}
			}
			if len(kept) != len(col.Cards) {
				b = b.withCards(ci, kept)
			}
		}
		return b
	})
	return nil
}

// SyncFromFileSystem replaces every column's cards with the cards whose
// Column matches it. Cards naming unknown columns, and repeated ids, are
// dropped and logged.
func (s *Store) SyncFromFileSystem(cards []card.Card) {
	byColumn := make(map[string][]card.Card, len(s.columns))
	seen := make(map[string]string, len(cards))

	for _, c := range cards {
		if !s.hasColumn(c.Column) {
			s.logger.Printf("WARNING: Skipping card %s in unknown column %q", c.ID, c.Column)
			continue
		}
		if prev, dup := seen[c.ID]; dup {
			s.logger.Printf("WARNING: Duplicate card id %s in %s and %s, keeping the first", c.ID, prev, c.Column)
			continue
		}
		seen[c.ID] = c.Column
		byColumn[c.Column] = append(byColumn[c.Column], c)
	}

	board := newBoard(s.columns)
	for i, col := range board.Columns {
		if cards := byColumn[col.ID]; cards != nil {
			board.Columns[i].Cards = cards
		}
	}

	s.update(func(Board) Board { return board })
}

// readColumn lists and parses one column. A missing directory reads as
// empty unless it is the first column; per-file failures are skipped.
func (s *Store) readColumn(ctx context.Context, a fsadapter.Adapter, columnID string) ([]card.Card, error) {
	dir := card.ColumnPath(s.root, columnID)

	names, err := a.ReadDir(ctx, dir)
	if err != nil {
		if fsadapter.IsNotExist(err) && columnID != s.columns[0] {
			s.logger.Printf("Column directory doesn't exist: %s (skipping)", dir)
			return []card.Card{}, nil
		}
		return nil, err
	}

	cards := make([]card.Card, 0, len(names))
	var failed int
	for _, name := range names {
		if !strings.HasSuffix(name, card.Extension) {
			continue
		}
		p := card.PathFor(s.root, columnID, name)

		data, err := a.ReadFile(ctx, p)
		if err != nil {
			s.logger.Printf("WARNING: Failed to read card %s: %v", p, err)
			failed++
			continue
		}

		c, err := card.Parse(data, p, columnID, card.WithLeniency(s.leniency), card.WithNow(s.now))
		if err != nil {
			s.logger.Printf("WARNING: Skipping corrupt card %s: %v", p, err)
			failed++
			continue
		}
		cards = append(cards, c)
	}

	if failed > 0 {
		s.logger.Printf("Column %s: %d cards read, %d skipped", columnID, len(cards), failed)
	}
	return cards, nil
}

func (s *Store) setLoading(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.loads++
	} else {
		s.loads--
	}
	s.notifyLocked()
}

// WatchColumns subscribes to every column directory. Bursts of events for a
// column are debounced, then the column is reloaded. The returned function
// unsubscribes everything; it also runs when ctx is done.
func (s *Store) WatchColumns(ctx context.Context) (stop func(), err error) {
	reloads := debounce.New[string, watcher.Event](s.window, func(columnID string, last watcher.Event) {
		s.logger.Printf("%s %s, reloading column %s", last.Op, last.Path, columnID)
		// Failures are already recorded in the error state.
		_ = s.ReloadColumn(ctx, columnID)
	}, debounce.WithClock(s.debounceClock))

	var unsubscribes []func()
	var once sync.Once
	stopped := make(chan struct{})
	stop = func() {
		once.Do(func() {
			close(stopped)
			for _, unsubscribe := range unsubscribes {
				unsubscribe()
			}
			reloads.Stop()
		})
	}

	for _, col := range s.columns {
		columnID := col
		unsubscribe, err := s.watcher.Watch(card.ColumnPath(s.root, columnID), func(e watcher.Event) {
			reloads.Trigger(columnID, e)
		})
		if err != nil {
			stop()
			return nil, fmt.Errorf("watch column %s: %w", columnID, err)
		}
		unsubscribes = append(unsubscribes, unsubscribe)
	}

	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-stopped:
		}
	}()

	s.logger.Printf("Watching %d columns under %s", len(s.columns), s.root)
	return stop, nil
}
