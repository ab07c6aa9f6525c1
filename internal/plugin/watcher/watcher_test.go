package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// changeRecorder collects plugin paths passed to the change callback.
type changeRecorder struct {
	mu      sync.Mutex
	changes []string
}

func (r *changeRecorder) record(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, path)
}

func (r *changeRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changes...)
}

func resolved(t *testing.T, path string) string {
	t.Helper()
	p, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return p
}

func TestWatcherWatchesExistingTree(t *testing.T) {
	root := resolved(t, t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "lib"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".hidden"), 0755))

	w, err := New([]string{root, filepath.Join(root, "missing")}, nil)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, []string{
		root,
		filepath.Join(root, "a"),
		filepath.Join(root, "a", "lib"),
	}, w.WatchedPaths())
}

func TestWatcherCoalescesChanges(t *testing.T) {
	root := resolved(t, t.TempDir())
	pluginDir := filepath.Join(root, "hello")
	require.NoError(t, os.MkdirAll(pluginDir, 0755))

	rec := &changeRecorder{}
	w, err := New([]string{root}, rec.record, WithDebounce(100*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "init.lua"), []byte("-- v"), 0644))
	}

	assert.Eventually(t, func() bool {
		return len(rec.get()) == 1
	}, 3*time.Second, 20*time.Millisecond)

	// No further callbacks for the same burst.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, []string{pluginDir}, rec.get())
}

func TestWatcherSingleFilePlugin(t *testing.T) {
	root := resolved(t, t.TempDir())

	rec := &changeRecorder{}
	w, err := New([]string{root}, rec.record, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "single.lua"), []byte("x"), 0644))

	assert.Eventually(t, func() bool {
		return len(rec.get()) > 0
	}, 3*time.Second, 20*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{filepath.Join(root, "single.lua")}, rec.get())
}

func TestWatcherNewPluginDirectory(t *testing.T) {
	root := resolved(t, t.TempDir())

	rec := &changeRecorder{}
	w, err := New([]string{root}, rec.record, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	pluginDir := filepath.Join(root, "fresh")
	require.NoError(t, os.Mkdir(pluginDir, 0755))

	assert.Eventually(t, func() bool {
		for _, p := range w.WatchedPaths() {
			if p == pluginDir {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		changes := rec.get()
		return len(changes) > 0 && changes[len(changes)-1] == pluginDir
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcherPluginPathFor(t *testing.T) {
	root := resolved(t, t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0644))

	w := &Watcher{roots: []string{root}}

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{filepath.Join(root, "p", "init.lua"), filepath.Join(root, "p"), true},
		{filepath.Join(root, "p", "lib", "x.lua"), filepath.Join(root, "p"), true},
		{filepath.Join(root, "one.lua"), filepath.Join(root, "one.lua"), true},
		{filepath.Join(root, "gone"), filepath.Join(root, "gone"), true},
		{filepath.Join(root, "notes.txt"), "", false},
		{filepath.Join(root, ".git", "HEAD"), "", false},
		{root, "", false},
		{"/elsewhere/p/init.lua", "", false},
	}
	for _, tt := range tests {
		got, ok := w.pluginPathFor(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestWatcherFlushAndClose(t *testing.T) {
	root := resolved(t, t.TempDir())

	rec := &changeRecorder{}
	w, err := New([]string{root}, rec.record, WithDebounce(time.Hour))
	require.NoError(t, err)

	w.schedule(filepath.Join(root, "b"))
	w.schedule(filepath.Join(root, "a"))
	w.schedule(filepath.Join(root, "a"))
	assert.Equal(t, 2, w.PendingCount())

	w.Flush()
	assert.Equal(t, 0, w.PendingCount())
	assert.Equal(t, []string{filepath.Join(root, "a"), filepath.Join(root, "b")}, rec.get())

	w.schedule(filepath.Join(root, "c"))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, 0, w.PendingCount())

	w.schedule(filepath.Join(root, "d"))
	assert.Equal(t, 0, w.PendingCount())
}

func TestWatcherCloseWaitsForRunningCallback(t *testing.T) {
	root := resolved(t, t.TempDir())
	pluginDir := filepath.Join(root, "slow")
	require.NoError(t, os.MkdirAll(pluginDir, 0755))

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var finished atomic.Bool
	w, err := New([]string{root}, func(string) {
		once.Do(func() { close(started) })
		<-release
		finished.Store(true)
	}, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "init.lua"), []byte("-- v1"), 0644))
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("callback did not run")
	}

	closed := make(chan struct{})
	go func() {
		_ = w.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while the callback was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.True(t, finished.Load())
}
