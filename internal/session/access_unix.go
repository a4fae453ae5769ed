//go:build unix

package session

import (
	"golang.org/x/sys/unix"
)

// checkAccess asks the kernel whether dir can be listed and written.
func checkAccess(dir string) error {
	return unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK)
}
