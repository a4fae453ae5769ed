package session

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoRoot means no usable board root is selected. The caller should ask
// the user to pick one (mdk open / mdk init).
var ErrNoRoot = errors.New("no root selected")

// ExpectedRootName is the folder name a board root is usually called.
const ExpectedRootName = "kanban-data"

// UnsupportedPlatformError is returned on hosts that cannot watch the file
// system.
type UnsupportedPlatformError struct {
	Platform string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("platform %s is not supported: mdkanban requires file system watching, available on %s",
		e.Platform, strings.Join(SupportedHosts, ", "))
}

// PermissionError is returned when the board root cannot be accessed.
type PermissionError struct {
	Path string
	Err  error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("cannot read and write %s: %v (grant access to the folder and try again)", e.Path, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// MissingColumnError is returned when the root lacks the first configured
// column's subdirectory.
type MissingColumnError struct {
	Root   string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s is not a board root: the %q subdirectory is missing (select your %s folder, which must contain %s/, or run mdk init)",
		e.Root, e.Column, ExpectedRootName, e.Column)
}

// IsUserActionRequired reports whether err can only be fixed by the user
// choosing or repairing a folder.
func IsUserActionRequired(err error) bool {
	if err == nil {
		return false
	}
	var (
		pe *PermissionError
		me *MissingColumnError
		ue *UnsupportedPlatformError
	)
	return errors.Is(err, ErrNoRoot) || errors.As(err, &pe) || errors.As(err, &me) || errors.As(err, &ue)
}
