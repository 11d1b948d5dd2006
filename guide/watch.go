package guide

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchOptions tunes Watch.
type WatchOptions struct {
	// Debounce is the quiet period after a write before the guide is
	// reloaded. Editors write in bursts. Default: 250ms.
	Debounce time.Duration
	Logger   *slog.Logger
}

func (o *WatchOptions) defaults() {
	if o.Debounce <= 0 {
		o.Debounce = 250 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// WatchStats are point-in-time counters of a Watch loop.
type WatchStats struct {
	Events  int64 `json:"events"`
	Reloads int64 `json:"reloads"`
	Errors  int64 `json:"errors"`
}

// Watcher reloads a guide file when it changes on disk.
type Watcher struct {
	path string
	opts WatchOptions

	events  atomic.Int64
	reloads atomic.Int64
	errors  atomic.Int64
}

// NewWatcher creates a Watcher for path. Call Run to start it.
func NewWatcher(path string, opts WatchOptions) *Watcher {
	opts.defaults()
	return &Watcher{path: filepath.Clean(path), opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() WatchStats {
	return WatchStats{
		Events:  w.events.Load(),
		Reloads: w.reloads.Load(),
		Errors:  w.errors.Load(),
	}
}

// Run blocks until ctx is cancelled. After each debounced change the file
// is reloaded; a guide that fails to parse or validate is logged and
// skipped, so fn only ever sees valid guides.
//
// The parent directory is watched rather than the file so that editors
// replacing the file by rename are still seen.
func (w *Watcher) Run(ctx context.Context, fn func(*Guide)) error {
	log := w.opts.Logger

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("guide: watch: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("guide: watch %s: %w", w.path, err)
	}

	var debounce *time.Timer
	var debounceCh <-chan time.Time

	log.Info("guide: watching", "path", w.path, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			log.Info("guide: watch stopped", "path", w.path)
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.events.Add(1)
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(w.opts.Debounce)
			debounceCh = debounce.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.errors.Add(1)
			log.Warn("guide: watch error", "path", w.path, "error", err)

		case <-debounceCh:
			debounceCh = nil
			debounce = nil
			g, err := Load(w.path)
			if err != nil {
				w.errors.Add(1)
				log.Warn("guide: reload failed, keeping previous guide", "path", w.path, "error", err)
				continue
			}
			w.reloads.Add(1)
			log.Info("guide: reloaded", "path", w.path, "title", g.Title, "steps", g.Len())
			fn(g)
		}
	}
}

// Watch runs a Watcher for path until ctx is cancelled.
func Watch(ctx context.Context, path string, opts WatchOptions, fn func(*Guide)) error {
	return NewWatcher(path, opts).Run(ctx, fn)
}
