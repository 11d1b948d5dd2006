package persist

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// WatchOptions tunes a Watcher.
type WatchOptions struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change before the action fires.
	// Further changes inside the window restart it. Default: 0.
	Debounce time.Duration
	Logger   *slog.Logger
}

func (o *WatchOptions) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// WatchStats are point-in-time counters.
type WatchStats struct {
	Checks  int64 `json:"checks"`
	Changes int64 `json:"changes"`
	Errors  int64 `json:"errors"`
	Reloads int64 `json:"reloads"`
}

// Watcher polls the version of one record in an SQLite store so that a
// session sharing the database with another process notices writes it did
// not make.
type Watcher struct {
	store *SQLite
	key   string
	opts  WatchOptions

	version atomic.Int64
	mu      sync.Mutex
	cond    *sync.Cond

	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
	reloads atomic.Int64
}

// Watch returns a Watcher on key. Call OnChange to start it.
func (s *SQLite) Watch(key string, opts WatchOptions) *Watcher {
	opts.defaults()
	if key == "" {
		key = DefaultKey
	}
	w := &Watcher{store: s, key: key, opts: opts}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Stats returns the current counters.
func (w *Watcher) Stats() WatchStats {
	return WatchStats{
		Checks:  w.checks.Load(),
		Changes: w.changes.Load(),
		Errors:  w.errors.Load(),
		Reloads: w.reloads.Load(),
	}
}

// Version returns the last version handled.
func (w *Watcher) Version() int64 { return w.version.Load() }

// OnChange polls until ctx is cancelled and calls action after every change
// of the record, once the debounce window has passed. A failing action
// leaves the version unhandled, so it is retried on the next poll.
func (w *Watcher) OnChange(ctx context.Context, action func() error) {
	log := w.opts.Logger

	if v, err := w.store.Version(ctx, w.key); err != nil {
		log.Warn("persist: initial version check failed", "key", w.key, "error", err)
	} else {
		w.setVersion(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var timer *time.Timer
	var debounce <-chan time.Time
	pending := int64(-1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.store.Version(ctx, w.key)
			if err != nil {
				w.errors.Add(1)
				log.Warn("persist: version check failed", "key", w.key, "error", err)
				continue
			}
			if cur == w.version.Load() || cur == pending {
				continue
			}
			w.changes.Add(1)
			pending = cur
			if w.opts.Debounce <= 0 {
				w.fire(action, pending)
				pending = -1
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.opts.Debounce)
			debounce = timer.C

		case <-debounce:
			debounce = nil
			if pending >= 0 {
				w.fire(action, pending)
				pending = -1
			}
		}
	}
}

// WaitForVersion blocks until a version >= target has been handled or ctx
// expires.
func (w *Watcher) WaitForVersion(ctx context.Context, target int64) error {
	if w.version.Load() >= target {
		return nil
	}
	done := ctx.Done()
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.version.Load() < target {
		stop := make(chan struct{})
		go func() {
			select {
			case <-done:
				w.mu.Lock()
				w.cond.Broadcast()
				w.mu.Unlock()
			case <-stop:
			}
		}()
		w.cond.Wait()
		close(stop)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (w *Watcher) fire(action func() error, v int64) {
	if err := action(); err != nil {
		w.errors.Add(1)
		w.opts.Logger.Error("persist: record change handler failed", "key", w.key, "error", err)
		return
	}
	w.reloads.Add(1)
	w.setVersion(v)
	w.opts.Logger.Debug("persist: record change handled", "key", w.key, "version", v)
}

func (w *Watcher) setVersion(v int64) {
	w.mu.Lock()
	w.version.Store(v)
	w.mu.Unlock()
	w.cond.Broadcast()
}
