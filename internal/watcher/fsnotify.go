package watcher

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Resolver maps a logical directory path to a host directory.
type Resolver func(logical string) (string, error)

// Config holds FSNotify settings.
type Config struct {
	// Extension limits events to files with this suffix. Empty means all.
	Extension string

	// Logger receives watch errors. Defaults to stderr with a [watcher] prefix.
	Logger *log.Logger
}

// DefaultConfig watches Markdown files.
func DefaultConfig() Config {
	return Config{
		Extension: ".md",
		Logger:    log.New(os.Stderr, "[watcher] ", log.LstdFlags),
	}
}

// FSNotify watches host directories with fsnotify. One OS watch is held per
// directory no matter how many callbacks subscribe to it.
type FSNotify struct {
	watcher *fsnotify.Watcher
	resolve Resolver
	config  Config
	subs    *subscriptions

	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewFSNotify starts an fsnotify-backed watcher. A nil resolver treats
// logical paths as host paths.
func NewFSNotify(resolve Resolver, config Config) (*FSNotify, error) {
	if resolve == nil {
		resolve = func(p string) (string, error) { return p, nil }
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FSNotify{
		watcher: w,
		resolve: resolve,
		config:  config,
		subs:    newSubscriptions(),
		done:    make(chan struct{}),
		running: true,
	}
	fw.wg.Add(1)
	go fw.processEvents()
	return fw, nil
}

// Watch subscribes fn to changes inside the logical directory dir.
func (fw *FSNotify) Watch(dir string, fn func(Event)) (func(), error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.running {
		return nil, fmt.Errorf("watcher is closed")
	}

	host, err := fw.resolve(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	host, err = filepath.Abs(host)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	id, first := fw.subs.add(host, subscriber{logical: dir, fn: fn})
	if first {
		if err := fw.watcher.Add(host); err != nil {
			fw.subs.remove(host, id)
			return nil, fmt.Errorf("failed to watch directory %s: %w", host, err)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { fw.unsubscribe(host, id) })
	}, nil
}

func (fw *FSNotify) unsubscribe(host string, id int) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.subs.remove(host, id) && fw.running {
		// The directory may already be gone; nothing to do then.
		_ = fw.watcher.Remove(host)
	}
}

// Close stops watching. It blocks until the event goroutine has exited.
func (fw *FSNotify) Close() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = false
	fw.mu.Unlock()

	close(fw.done)

	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	fw.wg.Wait()
	return nil
}

// processEvents converts fsnotify events and hands them to subscribers.
func (fw *FSNotify) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.dispatch(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.config.Logger.Printf("watch error: %v", err)
		}
	}
}

func (fw *FSNotify) dispatch(event fsnotify.Event) {
	op, ok := fw.convertOp(event)
	if !ok {
		return
	}

	dir := filepath.Dir(event.Name)
	base := filepath.Base(event.Name)
	for _, sub := range fw.subs.snapshot(dir) {
		sub.fn(Event{
			Path: strings.TrimSuffix(sub.logical, "/") + "/" + base,
			Op:   op,
		})
	}
}

// convertOp maps an fsnotify event onto an Op, or reports false for events
// that should be ignored.
func (fw *FSNotify) convertOp(event fsnotify.Event) (Op, bool) {
	if fw.config.Extension != "" && filepath.Ext(event.Name) != fw.config.Extension {
		return 0, false
	}

	switch {
	case event.Has(fsnotify.Create):
		return OpAdd, true
	case event.Has(fsnotify.Write):
		return OpChange, true
	case event.Has(fsnotify.Remove):
		return OpUnlink, true
	case event.Has(fsnotify.Rename):
		// The new name, if it is watched, arrives as a separate Create.
		return OpUnlink, true
	default:
		return 0, false
	}
}

// Watched returns the host directories currently under watch.
func (fw *FSNotify) Watched() []string {
	return fw.subs.keys()
}
