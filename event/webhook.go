package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Webhook POSTs events as JSON to a URL with retry and exponential
// backoff. Emit only queues: delivery runs on a background goroutine so a
// slow endpoint never stalls a tour transition. A full queue drops the
// event.
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
	cancel context.CancelFunc
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookBackoff sets the first retry delay; it doubles on every
// attempt. Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookClient sets the HTTP client.
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a Webhook sink targeting the given URL and starts its
// delivery goroutine. Close stops it.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		logger:     slog.Default(),
		queue:      make(chan Event, 256),
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.loop(ctx)
	return w
}

func (w *Webhook) Emit(_ context.Context, ev Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return fmt.Errorf("event: webhook closed")
	}
	select {
	case w.queue <- ev:
		return nil
	default:
		return fmt.Errorf("event: webhook queue full, dropped %s", ev.Type)
	}
}

// Close delivers what is already queued, then stops.
func (w *Webhook) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	<-w.done
	w.cancel()
	return nil
}

func (w *Webhook) loop(ctx context.Context) {
	defer close(w.done)
	for ev := range w.queue {
		if err := w.deliver(ctx, ev); err != nil {
			w.logger.Warn("event: webhook delivery abandoned", "type", ev.Type, "id", ev.ID, "error", err)
		}
	}
}

// deliver posts ev until the receiver accepts it. A 4xx other than 429 is
// the receiver rejecting the event and is not retried. Receivers can drop
// duplicates by X-Waypoint-Event-ID.
func (w *Webhook) deliver(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("event: webhook encode: %w", err)
	}

	wait := w.backoff
	var lastErr error
	for attempt := 1; attempt <= w.maxRetries+1; attempt++ {
		if attempt > 1 {
			t := time.NewTimer(wait)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
			wait *= 2
		}

		retry, err := w.post(ctx, ev, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
		w.logger.Debug("event: webhook attempt failed", "attempt", attempt, "type", ev.Type, "error", err)
	}
	return fmt.Errorf("event: webhook gave up after %d attempts: %w", w.maxRetries+1, lastErr)
}

func (w *Webhook) post(ctx context.Context, ev Event, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("event: webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Waypoint-Event", string(ev.Type))
	req.Header.Set("X-Waypoint-Event-ID", ev.ID)
	req.Header.Set("X-Waypoint-Session", ev.SessionID)

	resp, err := w.client.Do(req)
	if err != nil {
		return true, err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, fmt.Errorf("event: webhook status %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("event: webhook rejected with status %d", resp.StatusCode)
	}
}
