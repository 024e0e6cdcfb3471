package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Enqueuer accepts files for ingestion.
type Enqueuer interface {
	Enqueue(path string) error
}

// Watcher enqueues supported files that appear or change in a directory.
// Rapid successive writes to one file (an upload in progress) collapse into a
// single enqueue once the file has been quiet for the debounce period.
type Watcher struct {
	dir      string
	target   Enqueuer
	logger   *slog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time
}

func NewWatcher(dir string, target Enqueuer, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:      dir,
		target:   target,
		logger:   logger,
		debounce: debounce,
		watcher:  fw,
		pending:  make(map[string]time.Time),
	}, nil
}

// Run processes file events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	tick := time.NewTicker(w.debounce / 4)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !Supported(event.Name) {
				continue
			}
			w.mu.Lock()
			w.pending[event.Name] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "dir", w.dir, "error", err)

		case now := <-tick.C:
			w.flush(now)
		}
	}
}

func (w *Watcher) flush(now time.Time) {
	w.mu.Lock()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if err := w.target.Enqueue(path); err != nil {
			w.logger.Warn("enqueue failed", "file", filepath.Base(path), "error", err)
			continue
		}
		w.logger.Info("file queued for ingestion", "file", filepath.Base(path))
	}
}
