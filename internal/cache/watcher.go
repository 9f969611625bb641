package cache

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Invalidator drops every cached variant of a path.
type Invalidator interface {
	InvalidatePath(name string) int
}

// Watcher evicts cached entities when their files change on disk. Directories
// are watched lazily, once an entity below them has been cached.
type Watcher struct {
	root    string
	inv     Invalidator
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	watched map[string]struct{}
}

func NewWatcher(root string, inv Invalidator, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:    abs,
		inv:     inv,
		logger:  logger.With("component", "watcher"),
		watcher: fw,
		watched: make(map[string]struct{}),
	}, nil
}

// Track starts watching the directory holding name, relative to the root.
func (w *Watcher) Track(name string) {
	dir := filepath.Dir(filepath.Join(w.root, filepath.FromSlash(name)))

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[dir]; ok {
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn("cannot watch directory", "dir", dir, "error", err)
		return
	}
	w.watched[dir] = struct{}{}
}

// Run dispatches change events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			rel, err := filepath.Rel(w.root, ev.Name)
			if err != nil {
				continue
			}
			if n := w.inv.InvalidatePath(filepath.ToSlash(rel)); n > 0 {
				w.logger.Debug("invalidated", "path", rel, "op", ev.Op.String(), "evicted", n)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
