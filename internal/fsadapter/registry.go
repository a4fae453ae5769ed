package fsadapter

import (
	"fmt"
	"sort"
	"sync"
)

// Backend names understood by Open.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
)

// Options are passed to a backend constructor.
type Options struct {
	// Dir is the host directory backing the mount (local backend).
	Dir string

	// Mount is the logical prefix of card paths. Defaults to DefaultMount.
	Mount string
}

// Constructor builds an Adapter from Options. Backends register themselves
// with Register from an init function.
type Constructor func(opts Options) (Adapter, error)

var (
	registry      = make(map[string]Constructor)
	registryMutex sync.RWMutex
)

// Register makes a backend available to Open. It panics if the constructor
// is nil or the name is already taken.
func Register(name string, constructor Constructor) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if constructor == nil {
		panic(fmt.Sprintf("fsadapter: Register constructor is nil for backend %s", name))
	}
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("fsadapter: Register called twice for backend %s", name))
	}

	registry[name] = constructor
}

func getConstructor(name string) Constructor {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	return registry[name]
}

// IsRegistered returns true if a backend is registered under name.
func IsRegistered(name string) bool {
	return getConstructor(name) != nil
}

// RegisteredBackends returns the registered backend names, sorted.
func RegisteredBackends() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds the named backend.
func Open(name string, opts Options) (Adapter, error) {
	constructor := getConstructor(name)
	if constructor == nil {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownBackend, name, RegisteredBackends())
	}
	return constructor(opts)
}
