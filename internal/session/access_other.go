//go:build !unix

package session

import (
	"errors"
	"io"
	"os"
)

// checkAccess checks dir by listing it and creating a scratch file.
func checkAccess(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	_, err = f.Readdirnames(1)
	f.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	scratch, err := os.CreateTemp(dir, ".mdk-access-*")
	if err != nil {
		return err
	}
	name := scratch.Name()
	scratch.Close()
	return os.Remove(name)
}
