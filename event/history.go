package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// HistorySchema is the table History writes to.
const HistorySchema = `
CREATE TABLE IF NOT EXISTS tour_events (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	type       TEXT NOT NULL,
	time       INTEGER NOT NULL,
	step_index INTEGER NOT NULL,
	step_id    TEXT,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tour_events_session ON tour_events(session_id, time);
CREATE INDEX IF NOT EXISTS idx_tour_events_type ON tour_events(type, time);
`

// HistoryFilter selects events from a History.
type HistoryFilter struct {
	SessionID string
	Type      Type
	Since     time.Time
	// Limit caps the result to the most recent events. Default: 100.
	Limit int
}

// History keeps events in SQLite. Emit queues the event and a background
// loop writes batches; a full queue falls back to a synchronous insert.
type History struct {
	db       *sql.DB
	logger   *slog.Logger
	interval time.Duration
	ch       chan Event

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
	done   chan struct{}
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithHistoryInterval sets how often queued events are written. Default: 1s.
func WithHistoryInterval(d time.Duration) HistoryOption {
	return func(h *History) { h.interval = d }
}

// WithHistoryLogger sets the logger.
func WithHistoryLogger(l *slog.Logger) HistoryOption {
	return func(h *History) { h.logger = l }
}

// NewHistory applies HistorySchema to db and starts the write loop.
func NewHistory(db *sql.DB, bufferSize int, opts ...HistoryOption) (*History, error) {
	if _, err := db.Exec(HistorySchema); err != nil {
		return nil, fmt.Errorf("event: history schema: %w", err)
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	h := &History{
		db:       db,
		logger:   slog.Default(),
		interval: time.Second,
		ch:       make(chan Event, bufferSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	go h.loop()
	return h, nil
}

// ErrHistoryClosed is returned by Emit once the history is closed.
var ErrHistoryClosed = errors.New("event: history closed")

func (h *History) Emit(ctx context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHistoryClosed
	}
	select {
	case h.ch <- ev:
		return nil
	default:
		h.logger.Warn("event: history buffer full, writing synchronously", "type", ev.Type)
		return h.insert(ctx, h.db, ev)
	}
}

// Close writes what is queued and stops the loop. The database stays open.
func (h *History) Close() error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.stop)
	}
	h.mu.Unlock()
	<-h.done
	return nil
}

// Query returns the matching events, oldest first.
func (h *History) Query(ctx context.Context, f HistoryFilter) ([]Event, error) {
	q := `SELECT payload FROM tour_events WHERE 1=1`
	var args []any
	if f.SessionID != "" {
		q += " AND session_id = ?"
		args = append(args, f.SessionID)
	}
	if f.Type != "" {
		q += " AND type = ?"
		args = append(args, string(f.Type))
	}
	if !f.Since.IsZero() {
		q += " AND time >= ?"
		args = append(args, f.Since.UnixMilli())
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " ORDER BY time DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := h.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("event: query history: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("event: scan history: %w", err)
		}
		var ev Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("event: decode history: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Cleanup deletes events older than retention and returns how many went.
func (h *History) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).UnixMilli()
	res, err := h.db.ExecContext(ctx, "DELETE FROM tour_events WHERE time < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("event: cleanup history: %w", err)
	}
	return res.RowsAffected()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (h *History) insert(ctx context.Context, db execer, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("event: encode %s: %w", ev.Type, err)
	}
	_, err = db.ExecContext(ctx, `INSERT OR REPLACE INTO tour_events
		(id, session_id, type, time, step_index, step_id, payload)
		VALUES (?,?,?,?,?,?,?)`,
		ev.ID, ev.SessionID, string(ev.Type), ev.Time.UnixMilli(), ev.StepIndex, ev.StepID, string(payload))
	if err != nil {
		return fmt.Errorf("event: insert %s: %w", ev.Type, err)
	}
	return nil
}

func (h *History) loop() {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	batch := make([]Event, 0, 64)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		defer func() { batch = batch[:0] }()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tx, err := h.db.BeginTx(ctx, nil)
		if err != nil {
			h.logger.Error("event: history begin tx", "error", err)
			return
		}
		for _, ev := range batch {
			if err := h.insert(ctx, tx, ev); err != nil {
				h.logger.Error("event: history write", "id", ev.ID, "error", err)
			}
		}
		if err := tx.Commit(); err != nil {
			h.logger.Error("event: history commit", "error", err)
		}
	}

	for {
		select {
		case <-h.stop:
			for {
				select {
				case ev := <-h.ch:
					batch = append(batch, ev)
				default:
					flush()
					return
				}
			}
		case ev := <-h.ch:
			batch = append(batch, ev)
			if len(batch) >= 64 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
