package fsadapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

const (
	filePerms = 0o644
	dirPerms  = 0o755
)

func init() {
	Register(BackendLocal, func(opts Options) (Adapter, error) {
		return NewLocal(opts.Dir, opts.Mount)
	})
}

// Local stores cards in a host directory. Logical paths under the mount
// prefix resolve to the same relative path under Dir.
type Local struct {
	dir   string
	mount mount
}

// NewLocal returns a Local adapter rooted at dir. The directory itself is
// not created; session validation decides whether it is usable.
func NewLocal(dir, mountPrefix string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("local backend requires a directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	return &Local{dir: abs, mount: newMount(mountPrefix)}, nil
}

// Dir returns the absolute host directory.
func (l *Local) Dir() string { return l.dir }

// Resolve maps a logical path to its host path.
func (l *Local) Resolve(p string) (string, error) {
	rel, err := l.mount.relative(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.dir, filepath.FromSlash(rel)), nil
}

func (l *Local) resolve(ctx context.Context, op Op, p string) (string, error) {
	if err := checkContext(ctx, op, p); err != nil {
		return "", err
	}
	host, err := l.Resolve(p)
	if err != nil {
		return "", &Error{Op: op, Path: p, Err: err}
	}
	return host, nil
}

func (l *Local) ReadDir(ctx context.Context, p string) ([]string, error) {
	host, err := l.resolve(ctx, OpReadDir, p)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(host)
	if err != nil {
		return nil, wrap(OpReadDir, p, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (l *Local) ReadFile(ctx context.Context, p string) ([]byte, error) {
	host, err := l.resolve(ctx, OpReadFile, p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(host)
	if err != nil {
		return nil, wrap(OpReadFile, p, err)
	}
	return data, nil
}

// WriteFile replaces the file atomically: readers see either the old or the
// new contents, never a partial write.
func (l *Local) WriteFile(ctx context.Context, p string, data []byte) error {
	host, err := l.resolve(ctx, OpWriteFile, p)
	if err != nil {
		return err
	}

	// atomic.WriteFile would report a temp-file error for a missing column;
	// surface ErrNotExist instead.
	if _, err := os.Stat(filepath.Dir(host)); err != nil {
		return wrap(OpWriteFile, p, err)
	}

	_, statErr := os.Stat(host)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	if err := atomic.WriteFile(host, bytes.NewReader(data)); err != nil {
		return wrap(OpWriteFile, p, err)
	}

	// atomic.WriteFile leaves new files with temp-file permissions.
	if isNew {
		if err := os.Chmod(host, filePerms); err != nil {
			return wrap(OpWriteFile, p, err)
		}
	}
	return nil
}

func (l *Local) Unlink(ctx context.Context, p string) error {
	host, err := l.resolve(ctx, OpUnlink, p)
	if err != nil {
		return err
	}
	return wrap(OpUnlink, p, os.Remove(host))
}

func (l *Local) Rename(ctx context.Context, oldPath, newPath string) error {
	from, err := l.resolve(ctx, OpRename, oldPath)
	if err != nil {
		return err
	}
	to, err := l.resolve(ctx, OpRename, newPath)
	if err != nil {
		return err
	}
	return wrap(OpRename, oldPath, os.Rename(from, to))
}

func (l *Local) Mkdir(ctx context.Context, p string, opts MkdirOptions) error {
	host, err := l.resolve(ctx, OpMkdir, p)
	if err != nil {
		return err
	}
	if opts.Recursive {
		return wrap(OpMkdir, p, os.MkdirAll(host, dirPerms))
	}
	return wrap(OpMkdir, p, os.Mkdir(host, dirPerms))
}
