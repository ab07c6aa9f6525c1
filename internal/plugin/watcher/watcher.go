// Package watcher reports changes to plugins in the plugin search paths.
//
// Events under a search path are keyed by the plugin they belong to: the
// top-level directory or .lua file below the search path. Bursts of events
// for one plugin are coalesced into a single callback once the debounce
// delay has passed without further events.
package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

// DefaultDebounce is the delay used when none is configured.
const DefaultDebounce = 250 * time.Millisecond

// ErrWatcherClosed is returned when operating on a closed watcher.
var ErrWatcherClosed = errors.New("watcher is closed")

// ChangeFunc is called with the plugin path (directory or script file)
// whose contents changed. It runs on a timer goroutine.
type ChangeFunc func(pluginPath string)

// Watcher watches plugin search paths.
type Watcher struct {
	mu sync.Mutex

	fs       *fsnotify.Watcher
	roots    []string
	watched  map[string]bool
	delay    time.Duration
	onChange ChangeFunc
	logger   hclog.Logger

	// Pending debounce timers by plugin path
	pending map[string]*time.Timer

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup

	// Callbacks currently running
	running sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger.Named("watcher")
		}
	}
}

// New creates a watcher over the given search paths and starts watching
// the ones that exist.
func New(roots []string, onChange ChangeFunc, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:       fsw,
		watched:  make(map[string]bool),
		delay:    DefaultDebounce,
		onChange: onChange,
		logger:   hclog.NewNullLogger(),
		pending:  make(map[string]*time.Timer),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.roots = append(w.roots, abs)
		if _, err := os.Stat(abs); err != nil {
			w.logger.Debug("plugin path not watched", "path", abs, "error", err)
			continue
		}
		w.watchTree(abs)
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// watchTree watches dir and every non-hidden directory below it.
func (w *Watcher) watchTree(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		w.watch(p)
		return nil
	})
}

func (w *Watcher) watch(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.watched[dir] {
		return
	}
	if err := w.fs.Add(dir); err != nil {
		w.logger.Warn("cannot watch directory", "path", dir, "error", err)
		return
	}
	w.watched[dir] = true
}

// WatchedPaths returns the watched directories, sorted.
func (w *Watcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.watched))
	for p := range w.watched {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// processLoop handles incoming fsnotify events.
func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	// Auto-watch new directories
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isHidden(info.Name()) {
			w.watchTree(event.Name)
		}
	}

	pluginPath, ok := w.pluginPathFor(event.Name)
	if !ok {
		return
	}
	w.logger.Trace("plugin file changed", "plugin_path", pluginPath, "file", event.Name, "op", event.Op.String())
	w.schedule(pluginPath)
}

// pluginPathFor maps a file path to the plugin it belongs to.
func (w *Watcher) pluginPathFor(path string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}

		first := strings.SplitN(rel, string(filepath.Separator), 2)
		if isHidden(first[0]) {
			return "", false
		}
		pluginPath := filepath.Join(root, first[0])

		if len(first) == 1 && filepath.Ext(first[0]) != ".lua" {
			// A file directly in the search path that is not a script,
			// or a directory that was created or removed.
			if info, err := os.Stat(pluginPath); err == nil && !info.IsDir() {
				return "", false
			}
		}
		return pluginPath, true
	}
	return "", false
}

// schedule (re)starts the debounce timer for a plugin path.
func (w *Watcher) schedule(pluginPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if timer, exists := w.pending[pluginPath]; exists {
		timer.Reset(w.delay)
		return
	}
	w.pending[pluginPath] = time.AfterFunc(w.delay, func() {
		w.fire(pluginPath)
	})
}

// fire removes the pending entry and invokes the callback.
func (w *Watcher) fire(pluginPath string) {
	w.mu.Lock()
	if _, exists := w.pending[pluginPath]; !exists || w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.pending, pluginPath)
	w.running.Add(1)
	w.mu.Unlock()
	defer w.running.Done()

	if w.onChange != nil {
		w.onChange(pluginPath)
	}
}

// Flush immediately fires all pending changes.
func (w *Watcher) Flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path, timer := range w.pending {
		timer.Stop()
		paths = append(paths, path)
	}
	w.mu.Unlock()

	sort.Strings(paths)
	for _, path := range paths {
		w.fire(path)
	}
}

// PendingCount returns the number of plugins with a pending change.
func (w *Watcher) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Close stops the watcher. Pending changes are discarded; a callback that
// is already running is waited for. Close must not be called from the
// callback.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)

	// Cancel all pending timers
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	// Wait for processLoop and running callbacks to finish
	w.closedWg.Wait()
	w.running.Wait()

	return w.fs.Close()
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
