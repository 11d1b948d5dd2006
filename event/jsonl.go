package event

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// JSONLines writes events as JSON lines to an io.Writer (default os.Stdout).
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLines creates a JSONLines sink. If w is nil, os.Stdout is used.
func NewJSONLines(w io.Writer) *JSONLines {
	if w == nil {
		w = os.Stdout
	}
	return &JSONLines{enc: json.NewEncoder(w)}
}

func (s *JSONLines) Emit(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(ev)
}

func (s *JSONLines) Close() error { return nil }
