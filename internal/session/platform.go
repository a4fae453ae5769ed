package session

import (
	"runtime"
)

// SupportedHosts names the hosts with file system watching.
var SupportedHosts = []string{"Linux", "macOS", "Windows"}

// unwatchable lists GOOS values fsnotify has no backend for.
var unwatchable = map[string]bool{
	"js":     true,
	"wasip1": true,
	"plan9":  true,
}

// CheckPlatform returns an *UnsupportedPlatformError when goos cannot watch
// the file system. An empty goos means the running platform.
func CheckPlatform(goos string) error {
	if goos == "" {
		goos = runtime.GOOS
	}
	if unwatchable[goos] {
		return &UnsupportedPlatformError{Platform: goos}
	}
	return nil
}
