package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config configures a Persister.
type Config struct {
	// Storage is the durable backend. Nil means in-memory only.
	Storage Storage
	// Key is the storage key. Default: DefaultKey.
	Key string
	// Now stamps saved records. Default: time.Now.
	Now func() time.Time
	// OnFailure, if set, is called for every storage failure.
	OnFailure func(op string, err error)

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Key == "" {
		c.Key = DefaultKey
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Persister reads and writes the tour record. Once a write to the durable
// storage fails it switches to an in-memory copy for the rest of its life.
type Persister struct {
	cfg      Config
	mu       sync.Mutex
	store    Storage
	degraded bool
}

// New creates a Persister.
func New(cfg Config) *Persister {
	cfg.defaults()
	p := &Persister{cfg: cfg, store: cfg.Storage}
	if p.store == nil {
		p.store = NewMemory()
	}
	return p
}

// Key returns the storage key in use.
func (p *Persister) Key() string { return p.cfg.Key }

// Degraded reports whether the persister fell back to memory.
func (p *Persister) Degraded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degraded
}

// Load returns the stored record. ok is false when nothing is stored or
// the storage could not be read. A payload that does not decode yields the
// zero record with ok=false.
func (p *Persister) Load(ctx context.Context) (rec Record, ok bool) {
	p.mu.Lock()
	store := p.store
	p.mu.Unlock()

	data, found, err := safeGet(ctx, store, p.cfg.Key)
	if err != nil {
		p.fail("load", err)
		return Record{}, false
	}
	if !found {
		return Record{}, false
	}
	rec, err = Decode(data)
	if err != nil {
		p.cfg.Logger.Warn("persist: discarding unreadable record", "key", p.cfg.Key, "error", err)
		return Record{}, false
	}
	return rec, true
}

// Save writes the record for index/active and returns it. Storage errors
// are logged and the persister degrades to memory; Save itself never fails.
func (p *Persister) Save(ctx context.Context, index int, active bool) Record {
	rec := Record{
		CurrentStepIndex: index,
		IsActive:         active,
		Timestamp:        p.cfg.Now().UnixMilli(),
	}
	data, err := Encode(rec)
	if err != nil {
		p.fail("encode", err)
		return rec
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := safeSet(ctx, p.store, p.cfg.Key, data); err != nil {
		p.failLocked("save", err)
		// The memory copy keeps the session consistent for this lifetime.
		_ = p.store.Set(ctx, p.cfg.Key, data)
	}
	return rec
}

// Reset removes the stored record.
func (p *Persister) Reset(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := safeDelete(ctx, p.store, p.cfg.Key); err != nil {
		p.failLocked("reset", err)
		_ = p.store.Delete(ctx, p.cfg.Key)
	}
}

func (p *Persister) fail(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failLocked(op, err)
}

func (p *Persister) failLocked(op string, err error) {
	p.cfg.Logger.Error("persist: storage failure, continuing in memory",
		"op", op, "key", p.cfg.Key, "error", err)
	if p.cfg.OnFailure != nil {
		p.cfg.OnFailure(op, err)
	}
	if !p.degraded {
		p.degraded = true
		p.store = NewMemory()
	}
}

// The storage backends talk to a browser or a database; a panic there must
// not reach the tour.

func safeGet(ctx context.Context, s Storage, key string) (v []byte, ok bool, err error) {
	defer recoverInto(&err)
	return s.Get(ctx, key)
}

func safeSet(ctx context.Context, s Storage, key string, v []byte) (err error) {
	defer recoverInto(&err)
	return s.Set(ctx, key, v)
}

func safeDelete(ctx context.Context, s Storage, key string) (err error) {
	defer recoverInto(&err)
	return s.Delete(ctx, key)
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = &panicError{value: r}
	}
}

type panicError struct{ value any }

func (e *panicError) Error() string { return fmt.Sprintf("persist: storage panic: %v", e.value) }
