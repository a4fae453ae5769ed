package fsadapter

import (
	"errors"
	"fmt"
	"io/fs"
)

// Sentinel errors carried by *Error. Match them with errors.Is:
//
//	if errors.Is(err, fsadapter.ErrNotExist) {
//	    // the card file is already gone
//	}
var (
	// ErrNotExist is returned when the path (or its parent) does not exist.
	ErrNotExist = errors.New("file does not exist")

	// ErrPermission is returned when the host refuses access, for example
	// after a directory grant has been revoked.
	ErrPermission = errors.New("permission denied")

	// ErrExist is returned when creating something that already exists.
	ErrExist = errors.New("file already exists")

	// ErrPathEscape is returned for logical paths outside the adapter's
	// mount prefix.
	ErrPathEscape = errors.New("path escapes the board root")

	// ErrUnknownBackend is returned by Open for unregistered backend names.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// Error records a failed adapter operation.
type Error struct {
	Op   Op
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is maps host errors onto the package sentinels so backends can return
// whatever their storage produced.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotExist:
		return errors.Is(e.Err, fs.ErrNotExist)
	case ErrPermission:
		return errors.Is(e.Err, fs.ErrPermission)
	case ErrExist:
		return errors.Is(e.Err, fs.ErrExist)
	}
	return false
}

func wrap(op Op, p string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Op: op, Path: p, Err: err}
}

// IsAdapterError reports whether err came from an adapter.
func IsAdapterError(err error) bool {
	var ae *Error
	return errors.As(err, &ae)
}

// IsNotExist reports whether err means the path is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsPermission reports whether err is a host permission failure. These need
// the user to re-grant access; retrying does not help.
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermission)
}
