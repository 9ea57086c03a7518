// Package watch turns filesystem events under a root into debounced batches
// of changed paths.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/sidenote/internal/anchor"
	"github.com/rohankatakam/sidenote/internal/source"
)

// Options configures a Watcher.
type Options struct {
	Root          string
	Ignorer       *source.Ignorer
	Debounce      time.Duration
	RetryInterval time.Duration
	Logger        logrus.FieldLogger
}

// ChangeFunc handles one batch of changed paths. Returning an
// *anchor.NotReadyError re-queues the batch after the retry interval.
type ChangeFunc func(ctx context.Context, paths []string) error

// Watcher watches every non-ignored directory under a root.
type Watcher struct {
	opts Options
	fsw  *fsnotify.Watcher
	dirs int
}

// New creates a watcher and registers the directory tree under opts.Root.
func New(opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Ignorer == nil {
		opts.Ignorer = source.NewIgnorer(opts.Root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{opts: opts, fsw: fsw}
	if err := w.addTree(opts.Root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Dirs returns the number of directories being watched.
func (w *Watcher) Dirs() int { return w.dirs }

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && w.opts.Ignorer.Ignored(path, true) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.dirs++
		return nil
	})
}

// Run delivers debounced batches of changed paths for which interested
// returns true, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, interested func(path string) bool, onChange ChangeFunc) error {
	pending := make(map[string]struct{})
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleCreate(event)
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			path := filepath.Clean(event.Name)
			if !interested(path) {
				continue
			}
			pending[path] = struct{}{}
			timer.Reset(w.opts.Debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.WithError(err).Warn("Watcher error")

		case <-timer.C:
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)

			err := onChange(ctx, batch)
			var notReady *anchor.NotReadyError
			if errors.As(err, &notReady) {
				w.opts.Logger.WithField("retry_in", w.opts.RetryInterval).Info("Source not ready, will retry")
				timer.Reset(w.opts.RetryInterval)
				continue
			}
			if err != nil {
				w.opts.Logger.WithError(err).Error("Change handler failed")
			}
			pending = make(map[string]struct{})
		}
	}
}

// handleCreate starts watching directories created after startup.
func (w *Watcher) handleCreate(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() {
		return
	}
	if w.opts.Ignorer.Ignored(event.Name, true) {
		return
	}
	if err := w.addTree(event.Name); err != nil {
		w.opts.Logger.WithError(err).Warn("Failed to watch new directory")
	}
}
