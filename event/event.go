// Package event carries what a tour session reports to its host: the
// event type and the sinks that deliver it.
package event

import (
	"context"
	"time"

	"github.com/hazyhaar/waypoint/placement"
)

// Type names an event.
type Type string

const (
	Started            Type = "started"
	Step               Type = "step"
	Completed          Type = "completed"
	Stopped            Type = "stopped"
	Navigating         Type = "navigating"
	NavigationRejected Type = "navigation_rejected"
	Progress           Type = "progress"
	Highlighted        Type = "highlighted"
	Reset              Type = "reset"
)

// Event is one session notification.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Type      Type      `json:"type"`
	Time      time.Time `json:"time"`
	StepIndex int       `json:"step_index"`
	StepID    string    `json:"step_id,omitempty"`
	Total     int       `json:"total"`
	// Path is the navigation target of navigating and
	// navigation_rejected events.
	Path string `json:"path,omitempty"`
	// Progress is a percentage in [0,100].
	Progress  float64           `json:"progress,omitempty"`
	Placement *placement.Result `json:"placement,omitempty"`
	Dummy     bool              `json:"dummy,omitempty"`
	Reason    string            `json:"reason,omitempty"`
}

// Sink delivers events. Implementations must not block the caller for
// long: sessions emit from inside their transitions.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
	Close() error
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(context.Context, Event) error { return nil }
func (discard) Close() error                      { return nil }
