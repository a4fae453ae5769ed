package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/mdkanban/mdkanban/internal/card"
	"github.com/mdkanban/mdkanban/internal/fsadapter"
)

// AddCard writes a new card file into columnID and appends the card to that
// column. Nothing is added to memory if the write fails.
//
// overrides may carry tags, assignee, due date or a creation time; its
// Updated field is ignored.
func (s *Store) AddCard(ctx context.Context, title, columnID, content string, overrides *card.Metadata) (card.Card, error) {
	ctx = context.WithoutCancel(ctx)

	if !s.hasColumn(columnID) {
		return card.Card{}, s.fail(fmt.Errorf("add card: %w: %s", ErrUnknownColumn, columnID))
	}

	a, release := s.capability()
	defer release()

	now := s.now()
	filename := card.GenerateFilename(title, now)
	c := card.Card{
		ID:       card.IDFromPath(filename),
		Title:    title,
		Content:  strings.TrimSpace(content),
		Column:   columnID,
		FilePath: card.PathFor(s.root, columnID, filename),
	}
	if overrides != nil {
		c.Metadata = card.Card{Metadata: *overrides}.Clone().Metadata
	}
	if c.Metadata.Created.IsZero() {
		c.Metadata.Created = now
	}

	data, written := card.Serialize(c, now)
	if err := written.Validate(); err != nil {
		return card.Card{}, s.fail(fmt.Errorf("add card: %w", err))
	}

	if err := a.Mkdir(ctx, card.ColumnPath(s.root, columnID), fsadapter.MkdirOptions{Recursive: true}); err != nil {
		return card.Card{}, s.fail(fmt.Errorf("add card: %w", err))
	}
	if err := a.WriteFile(ctx, written.FilePath, data); err != nil {
		return card.Card{}, s.fail(fmt.Errorf("add card: %w", err))
	}

	s.update(func(b Board) Board {
		return b.insert(b.columnIndex(columnID), -1, written)
	})
	s.logger.Printf("Added card %s to %s", written.ID, columnID)
	return written.Clone(), nil
}

// UpdateCard merges patch into the card, rewrites its file and then
// replaces the in-memory card. Memory is untouched if the write fails.
//
// An unknown id sets the error state to NotFoundMessage and, unless the
// store is strict, returns a zero card and a nil error.
func (s *Store) UpdateCard(ctx context.Context, id string, patch card.Patch) (card.Card, error) {
	ctx = context.WithoutCancel(ctx)

	turn, ok := s.enqueue(id)
	if !ok {
		return card.Card{}, s.notFound("update card", id)
	}
	defer turn.done()
	turn.wait()

	// Earlier operations may have changed or removed the card.
	current, ok := s.Card(id)
	if !ok {
		return card.Card{}, s.notFound("update card", id)
	}

	a, release := s.capability()
	defer release()

	data, written := card.Serialize(patch.Apply(current), s.now())
	if err := a.WriteFile(ctx, turn.path(), data); err != nil {
		return card.Card{}, s.fail(fmt.Errorf("update card %s: %w", id, err))
	}

	s.update(func(b Board) Board {
		// A move queued behind this update may already have relocated the
		// card in memory.
		cur, ok := b.Find(id)
		if !ok {
			s.logger.Printf("WARNING: Card %s left the board while it was being updated", id)
			return b
		}
		written.Column = cur.Column
		written.FilePath = cur.FilePath
		next, _ := b.replace(written)
		return next
	})
	s.logger.Printf("Updated card %s", id)
	return written.Clone(), nil
}

// DeleteCard unlinks the card's file and then drops it from memory. The card
// stays on the board if the unlink fails. Unknown ids behave as in
// UpdateCard.
func (s *Store) DeleteCard(ctx context.Context, id string) error {
	ctx = context.WithoutCancel(ctx)

	turn, ok := s.enqueue(id)
	if !ok {
		return s.notFound("delete card", id)
	}
	defer turn.done()
	turn.wait()

	if _, ok := s.Card(id); !ok {
		return s.notFound("delete card", id)
	}

	a, release := s.capability()
	defer release()

	if err := a.Unlink(ctx, turn.path()); err != nil {
		return s.fail(fmt.Errorf("delete card %s: %w", id, err))
	}

	s.update(func(b Board) Board {
		next, _, _, _, _ := b.remove(id)
		return next
	})
	s.logger.Printf("Deleted card %s", id)
	return nil
}

// MoveCard moves a card to another column.
//
// Moving to the card's current column does nothing and touches no files.
// Otherwise the card leaves its column and is appended to the target in
// memory right away; the file is then renamed into the target directory and
// rewritten with a fresh updated time. If any of that fails the move is
// rolled back and the error is returned.
//
// Racing moves of one card are last-write-wins in memory. Their file
// operations run in the order the moves were made, and a failing move only
// undoes its own change: if the card has since left the target column,
// memory is left alone.
func (s *Store) MoveCard(ctx context.Context, id, targetColumnID string) (card.Card, error) {
	ctx = context.WithoutCancel(ctx)

	if !s.hasColumn(targetColumnID) {
		return card.Card{}, s.fail(fmt.Errorf("move card %s: %w: %s", id, ErrUnknownColumn, targetColumnID))
	}

	var (
		missing    bool
		original   card.Card
		moved      card.Card
		persisted  card.Card
		turn       *fileTurn
		from       string
		renamed    bool
		rolledBack bool
	)
	defer func() {
		if turn != nil {
			turn.done()
		}
	}()

	apply := func() func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		c, ok := s.board.Find(id)
		if !ok {
			missing = true
			return nil
		}
		original = c
		if c.Column == targetColumnID {
			return nil
		}

		moved = c.Clone()
		moved.Column = targetColumnID
		moved.FilePath = card.PathFor(s.root, targetColumnID, c.Filename())
		turn = s.enqueueLocked(id, c.FilePath)

		b, _, srcCol, srcIdx, _ := s.board.remove(id)
		s.board = b.insert(b.columnIndex(targetColumnID), -1, moved)
		s.notifyLocked()

		sourceID := s.board.Columns[srcCol].ID
		return func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			ci, idx, ok := s.board.locate(id)
			if !ok || s.board.Columns[ci].ID != targetColumnID {
				s.logger.Printf("Not rolling back move of %s: card has moved on", id)
				return
			}
			// Keep edits made while the move was pending.
			restored := s.board.Columns[ci].Cards[idx].Clone()
			restored.Column = original.Column
			restored.FilePath = original.FilePath

			b, _, _, _, _ := s.board.remove(id)
			s.board = b.insert(b.columnIndex(sourceID), srcIdx, restored)
			s.notifyLocked()
			rolledBack = true
		}
	}

	commit := func() error {
		turn.wait()

		a, release := s.capability()
		defer release()

		from = turn.path()
		if err := a.Mkdir(ctx, card.ColumnPath(s.root, targetColumnID), fsadapter.MkdirOptions{Recursive: true}); err != nil {
			return err
		}
		if err := a.Rename(ctx, from, moved.FilePath); err != nil {
			return err
		}
		renamed = true
		turn.setPath(moved.FilePath)

		data, written := card.Serialize(s.latest(id, moved), s.now())
		if err := a.WriteFile(ctx, moved.FilePath, data); err != nil {
			return err
		}
		persisted = written
		return nil
	}

	if err := WithOptimisticUpdate(apply, commit); err != nil {
		// Put the file back so disk agrees with the rolled-back board. When
		// the card has moved on, a later move expects the file here.
		if renamed && rolledBack {
			s.restoreFile(ctx, turn, moved.FilePath, from)
		}
		return card.Card{}, s.fail(fmt.Errorf("move card %s to %s: %w", id, targetColumnID, err))
	}
	if missing {
		return card.Card{}, s.notFound("move card", id)
	}
	if turn == nil {
		// Already in the target column.
		return original.Clone(), nil
	}

	s.update(func(b Board) Board {
		ci, _, ok := b.locate(id)
		if !ok || b.Columns[ci].ID != targetColumnID {
			return b
		}
		next, _ := b.replace(persisted)
		return next
	})
	s.logger.Printf("Moved card %s to %s", id, targetColumnID)
	return persisted.Clone(), nil
}

// enqueue queues a file operation on a card that is on the board.
func (s *Store) enqueue(id string) (*fileTurn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.board.Find(id)
	if !ok {
		return nil, false
	}
	return s.enqueueLocked(id, c.FilePath), true
}

// latest returns the in-memory version of the card placed where fallback
// says, or fallback itself when the card is gone.
func (s *Store) latest(id string, fallback card.Card) card.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.board.Find(id)
	if !ok {
		return fallback.Clone()
	}
	out := c.Clone()
	out.Column = fallback.Column
	out.FilePath = fallback.FilePath
	return out
}

func (s *Store) restoreFile(ctx context.Context, turn *fileTurn, from, to string) {
	a, release := s.capability()
	defer release()
	if err := a.Rename(ctx, from, to); err != nil {
		s.logger.Printf("WARNING: Failed to restore %s after failed move: %v", to, err)
		return
	}
	turn.setPath(to)
}
