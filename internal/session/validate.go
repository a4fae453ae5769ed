package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Validate checks that dir can serve as a board root: it exists, is a
// readable and writable directory, and contains the first column's
// subdirectory.
func Validate(dir string, columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("no columns configured")
	}

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return &PermissionError{Path: dir, Err: err}
	case err != nil:
		return fmt.Errorf("board root %s: %w", dir, err)
	case !info.IsDir():
		return fmt.Errorf("board root %s is not a directory", dir)
	}

	if err := checkAccess(dir); err != nil {
		return &PermissionError{Path: dir, Err: err}
	}

	required := filepath.Join(dir, columns[0])
	info, err = os.Stat(required)
	if err != nil || !info.IsDir() {
		return &MissingColumnError{Root: dir, Column: columns[0]}
	}
	return nil
}
