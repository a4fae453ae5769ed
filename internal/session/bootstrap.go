package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mdkanban/mdkanban/internal/card"
	"github.com/mdkanban/mdkanban/internal/fsadapter"
)

// Options configure Bootstrap.
type Options struct {
	// Root is an explicitly requested board root. When empty the persisted
	// root is used.
	Root string

	Columns []string

	// Backend is an fsadapter backend name. Defaults to local.
	Backend string

	// Mount is the logical prefix of card paths.
	Mount string

	// State persists the selected root. May be nil.
	State *StateDB

	// GOOS overrides the platform check, for tests.
	GOOS string

	Logger *log.Logger
}

// Session is a validated board root and the adapter serving it.
type Session struct {
	Root    string
	Mount   string
	Backend string
	Adapter fsadapter.Adapter
}

// Bootstrap resolves the board root and builds its adapter.
//
// A persisted root that is no longer usable (deleted, permission revoked,
// missing its first column) is forgotten and ErrNoRoot is returned, so the
// caller falls back to asking for a folder. Problems with an explicitly
// requested root are returned as they are.
func Bootstrap(ctx context.Context, opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}
	if opts.Backend == "" {
		opts.Backend = fsadapter.BackendLocal
	}
	if opts.Mount == "" {
		opts.Mount = fsadapter.DefaultMount
	}

	if err := CheckPlatform(opts.GOOS); err != nil {
		return nil, err
	}

	if opts.Backend == fsadapter.BackendMemory {
		a, err := fsadapter.Open(opts.Backend, fsadapter.Options{Mount: opts.Mount})
		if err != nil {
			return nil, err
		}
		if err := InitBoard(ctx, a, opts.Mount, opts.Columns); err != nil {
			return nil, err
		}
		return &Session{Mount: opts.Mount, Backend: opts.Backend, Adapter: a}, nil
	}

	root := opts.Root
	persisted := false
	if root == "" && opts.State != nil {
		value, ok, err := opts.State.Get(ctx, KeyRoot)
		if err != nil {
			return nil, err
		}
		root, persisted = value, ok
	}
	if root == "" {
		return nil, ErrNoRoot
	}

	if err := Validate(root, opts.Columns); err != nil {
		if !persisted {
			return nil, err
		}
		opts.Logger.Printf("Previously selected root %s is no longer usable: %v", root, err)
		if derr := opts.State.Delete(ctx, KeyRoot); derr != nil {
			opts.Logger.Printf("WARNING: %v", derr)
		}
		return nil, fmt.Errorf("%w: %v", ErrNoRoot, err)
	}

	a, err := fsadapter.Open(opts.Backend, fsadapter.Options{Dir: root, Mount: opts.Mount})
	if err != nil {
		return nil, err
	}

	if opts.State != nil {
		if err := opts.State.TouchRecent(ctx, root); err != nil {
			opts.Logger.Printf("WARNING: %v", err)
		}
	}

	opts.Logger.Printf("Using board root %s (%s backend)", root, opts.Backend)
	return &Session{Root: root, Mount: opts.Mount, Backend: opts.Backend, Adapter: a}, nil
}

// Select validates dir and persists it as the board root. It returns the
// absolute path that was stored.
func Select(ctx context.Context, state *StateDB, dir string, columns []string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if err := Validate(abs, columns); err != nil {
		return "", err
	}
	if err := state.Set(ctx, KeyRoot, abs); err != nil {
		return "", err
	}
	if err := state.TouchRecent(ctx, abs); err != nil {
		return "", err
	}
	return abs, nil
}

// InitBoard creates any missing column directories under mount.
func InitBoard(ctx context.Context, a fsadapter.Adapter, mount string, columns []string) error {
	for _, col := range columns {
		if err := a.Mkdir(ctx, card.ColumnPath(mount, col), fsadapter.MkdirOptions{Recursive: true}); err != nil {
			return fmt.Errorf("failed to create column %s: %w", col, err)
		}
	}
	return nil
}
