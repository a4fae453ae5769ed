// Package fsadapter is the only layer that touches persistent storage.
//
// Callers work with logical, slash-separated paths such as
// "./kanban-data/backlog/1709285400000-write-docs.md". Each backend maps the
// logical paths under its mount prefix onto real storage and refuses
// anything outside it.
//
// Adapters never retry. Every failure is returned as an *Error so callers can
// tell which operation failed and match sentinels with errors.Is.
package fsadapter

import (
	"context"
	"path"
	"path/filepath"
	"strings"
)

// DefaultMount is the logical root card paths are written under.
const DefaultMount = "./kanban-data"

// Op names an adapter operation.
type Op string

const (
	OpReadDir   Op = "readdir"
	OpReadFile  Op = "readfile"
	OpWriteFile Op = "writefile"
	OpUnlink    Op = "unlink"
	OpRename    Op = "rename"
	OpMkdir     Op = "mkdir"
)

// MkdirOptions configures Adapter.Mkdir.
type MkdirOptions struct {
	// Recursive creates missing parents and succeeds if the directory
	// already exists.
	Recursive bool
}

// Adapter is the abstract file-system capability the store depends on.
type Adapter interface {
	// ReadDir lists the regular files directly inside path, sorted by name.
	ReadDir(ctx context.Context, path string) ([]string, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// WriteFile replaces the file's contents. The parent directory must exist.
	WriteFile(ctx context.Context, path string, data []byte) error
	Unlink(ctx context.Context, path string) error
	Rename(ctx context.Context, oldPath, newPath string) error
	Mkdir(ctx context.Context, path string, opts MkdirOptions) error
}

// mount maps logical paths onto a backend-relative, slash-separated path.
type mount struct {
	prefix string
}

func newMount(prefix string) mount {
	if prefix == "" {
		prefix = DefaultMount
	}
	return mount{prefix: path.Clean(filepath.ToSlash(prefix))}
}

// relative returns p relative to the mount prefix ("." for the prefix
// itself). Paths that leave the prefix fail with ErrPathEscape.
func (m mount) relative(p string) (string, error) {
	c := path.Clean(filepath.ToSlash(p))

	switch {
	case c == m.prefix:
		return ".", nil
	case m.prefix == ".":
		if c == ".." || strings.HasPrefix(c, "../") || path.IsAbs(c) {
			return "", ErrPathEscape
		}
		return c, nil
	case m.prefix == "/":
		if !path.IsAbs(c) {
			return "", ErrPathEscape
		}
		return strings.TrimPrefix(c, "/"), nil
	case strings.HasPrefix(c, m.prefix+"/"):
		return strings.TrimPrefix(c, m.prefix+"/"), nil
	}
	return "", ErrPathEscape
}

func checkContext(ctx context.Context, op Op, p string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: op, Path: p, Err: err}
	}
	return nil
}
