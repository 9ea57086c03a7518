package watch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/sidenote/internal/anchor"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recorder) add(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, paths)
}

func (r *recorder) all() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func startWatcher(t *testing.T, root string, onChange ChangeFunc) *Watcher {
	t.Helper()
	w, err := New(Options{
		Root:          root,
		Debounce:      50 * time.Millisecond,
		RetryInterval: 50 * time.Millisecond,
		Logger:        quietLogger(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, func(path string) bool { return filepath.Ext(path) == ".txt" }, onChange)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
	return w
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(target, []byte("a\n"), 0644))

	rec := &recorder{}
	startWatcher(t, root, func(ctx context.Context, paths []string) error {
		rec.add(paths)
		return nil
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte("edit\n"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip.bin"), []byte("x"), 0644))

	require.Eventually(t, func() bool { return len(rec.all()) > 0 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{target}, rec.all()[0])
}

func TestWatcher_SkipsIgnoredDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("build\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))

	w := startWatcher(t, root, func(ctx context.Context, paths []string) error { return nil })
	// root and src only
	assert.Equal(t, 2, w.Dirs())
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, func(ctx context.Context, paths []string) error {
		rec.add(paths)
		return nil
	})

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.MkdirAll(sub, 0755))
	// give the watcher a moment to register the new directory
	time.Sleep(100 * time.Millisecond)
	target := filepath.Join(sub, "late.txt")
	require.NoError(t, os.WriteFile(target, []byte("x\n"), 0644))

	require.Eventually(t, func() bool {
		for _, batch := range rec.all() {
			for _, p := range batch {
				if p == target {
					return true
				}
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_RetriesWhenNotReady(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.txt")

	var mu sync.Mutex
	calls := 0
	startWatcher(t, root, func(ctx context.Context, paths []string) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return &anchor.NotReadyError{Reason: "indexing"}
		}
		return nil
	})

	require.NoError(t, os.WriteFile(target, []byte("x\n"), 0644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, 5*time.Second, 20*time.Millisecond)
}
