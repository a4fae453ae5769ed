package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mdkanban/mdkanban/internal/card"
	"github.com/mdkanban/mdkanban/internal/fsadapter"
	"github.com/mdkanban/mdkanban/internal/session"
	"github.com/mdkanban/mdkanban/internal/store"
	"github.com/mdkanban/mdkanban/internal/watcher"
)

// board bundles what a command needs to work on the selected board.
type board struct {
	session *session.Session
	store   *store.Store
	watcher watcher.Watcher
}

func (b *board) Close() error {
	return b.watcher.Close()
}

func statePath() (string, error) {
	if cfg.StateDB != "" {
		return cfg.StateDB, nil
	}
	return session.DefaultStatePath()
}

func openState() (*session.StateDB, error) {
	path, err := statePath()
	if err != nil {
		return nil, err
	}
	return session.OpenState(path)
}

// openBoard bootstraps the session, builds the store over it and loads
// every column.
func openBoard(ctx context.Context) (*board, error) {
	state, err := openState()
	if err != nil {
		return nil, err
	}
	defer state.Close()

	sess, err := session.Bootstrap(ctx, session.Options{
		Root:    cfg.Root,
		Columns: cfg.Columns,
		Backend: cfg.Backend,
		Mount:   cfg.Mount,
		State:   state,
		Logger:  logOut.Logger("session"),
	})
	if errors.Is(err, session.ErrNoRoot) {
		return nil, fmt.Errorf("%w (run 'mdk open <dir>' or 'mdk init <dir>' first)", err)
	}
	if err != nil {
		return nil, err
	}

	w, err := newWatcher(sess.Adapter)
	if err != nil {
		return nil, err
	}

	leniency := card.Lenient
	if cfg.StrictParse {
		leniency = card.Strict
	}
	st, err := store.New(sess.Adapter, w,
		store.WithColumns(cfg.Columns...),
		store.WithRoot(sess.Mount),
		store.WithLogger(logOut.Logger("store")),
		store.WithDebounce(cfg.Debounce, nil),
		store.WithLeniency(leniency),
	)
	if err != nil {
		_ = w.Close()
		return nil, err
	}

	if err := st.LoadCards(ctx); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &board{session: sess, store: st, watcher: w}, nil
}

// newWatcher picks a watcher that matches the adapter: fsnotify for host
// directories, a manual one for in-memory boards.
func newWatcher(a fsadapter.Adapter) (watcher.Watcher, error) {
	local, ok := a.(*fsadapter.Local)
	if !ok {
		return watcher.NewManual(), nil
	}
	wcfg := watcher.DefaultConfig()
	wcfg.Logger = logOut.Logger("watcher")
	return watcher.NewFSNotify(local.Resolve, wcfg)
}

// findCard resolves an id or a unique id prefix.
func findCard(st *store.Store, ref string) (card.Card, error) {
	if c, ok := st.Card(ref); ok {
		return c, nil
	}
	var matches []card.Card
	for _, col := range st.Board().Columns {
		for _, c := range col.Cards {
			if ref != "" && strings.HasPrefix(c.ID, ref) {
				matches = append(matches, c)
			}
		}
	}
	switch len(matches) {
	case 0:
		return card.Card{}, fmt.Errorf("%s: %w", ref, store.ErrCardNotFound)
	case 1:
		return matches[0], nil
	default:
		return card.Card{}, fmt.Errorf("%s matches %d cards, be more specific", ref, len(matches))
	}
}
