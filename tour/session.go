// Package tour is the tour controller: a session owns the step index and
// the active flag, and sequences persistence, navigation, target
// resolution, placement and rendering on every transition.
//
// A session is either Idle or Active at some step. Every transition saves
// the new state before anything else happens, so a hard navigation that
// ends the page mid-transition resumes from a consistent record when the
// next page calls Boot.
package tour

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/waypoint/event"
	"github.com/hazyhaar/waypoint/guide"
	"github.com/hazyhaar/waypoint/idgen"
	"github.com/hazyhaar/waypoint/persist"
	"github.com/hazyhaar/waypoint/placement"
	"github.com/hazyhaar/waypoint/resolver"
	"github.com/hazyhaar/waypoint/route"
)

// Config wires a Session to its capabilities.
type Config struct {
	Guide    *guide.Guide
	Document resolver.Document
	View     View

	// Navigator, if nil, disables routing: every step renders in place.
	Navigator route.Navigator
	// NavigationMode is used when a step lives on another route.
	// Default: route.Hard.
	NavigationMode *route.Mode

	// Persister, if nil, is built over Storage with the guide storage key.
	Persister *persist.Persister
	// Storage backs the default Persister. Nil means in-memory only.
	Storage persist.Storage

	Sink     event.Sink
	Renderer *guide.Renderer

	// Simulator, if set, plays a progress sequence while a step is shown.
	Simulator *Simulator

	// OnComplete, if set, runs once per activation when the last step is
	// passed.
	OnComplete func()

	SessionID string
	EventIDs  idgen.Generator
	Now       func() time.Time
	Logger    *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Sink == nil {
		c.Sink = event.Discard
	}
	if c.Renderer == nil {
		c.Renderer = guide.NewRenderer()
	}
	if c.SessionID == "" {
		c.SessionID = idgen.Session()
	}
	if c.EventIDs == nil {
		c.EventIDs = idgen.Event
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NavigationMode == nil {
		m := route.Hard
		c.NavigationMode = &m
	}
}

// State is the externally visible session state.
type State struct {
	SessionID        string `json:"session_id"`
	IsActive         bool   `json:"isActive"`
	CurrentStepIndex int    `json:"currentStepIndex"`
	IsFirstStep      bool   `json:"isFirstStep"`
	IsLastStep       bool   `json:"isLastStep"`
	Total            int    `json:"total"`
	// PanelOpen is set on an idle session restored from a stopped tour:
	// the host shows the tour panel open at CurrentStepIndex.
	PanelOpen bool `json:"panelOpen"`
	// Suspended is set while a hard navigation is in flight. The page that
	// loads next resumes the tour through Boot.
	Suspended bool `json:"suspended"`
	// Degraded is set once persistence fell back to memory.
	Degraded bool `json:"degraded"`
}

// shown is what is currently rendered.
type shown struct {
	index   int // -1 for a highlight
	step    guide.Step
	element resolver.Element
	dummy   bool
	size    placement.Size
}

// Session is one tour session. Its methods are safe for concurrent use;
// they run one at a time.
type Session struct {
	cfg      Config
	persist  *persist.Persister
	resolver *resolver.Resolver

	mu        sync.Mutex
	guide     *guide.Guide
	active    bool
	index     int
	panelOpen bool
	suspended bool
	destroyed bool
	// completed guards the completion signal of the current activation.
	completed bool
	current   *shown
	stopSim   func()
}

// New creates a Session. The guide is validated; an invalid guide yields
// a *guide.ConfigError and no session.
func New(cfg Config) (*Session, error) {
	cfg.defaults()
	if err := cfg.Guide.Validate(); err != nil {
		return nil, err
	}
	if cfg.Document == nil {
		return nil, fmt.Errorf("tour: new: document is required")
	}
	if cfg.View == nil {
		return nil, fmt.Errorf("tour: new: view is required")
	}

	p := cfg.Persister
	if p == nil {
		p = persist.New(persist.Config{
			Storage: cfg.Storage,
			Key:     cfg.Guide.Config.StorageKey,
			Now:     cfg.Now,
			Logger:  cfg.Logger,
		})
	}

	return &Session{
		cfg:      cfg,
		persist:  p,
		resolver: resolver.New(cfg.Document, cfg.Logger),
		guide:    cfg.Guide,
	}, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.cfg.SessionID }

// Guide returns the guide in use.
func (s *Session) Guide() *guide.Guide {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guide
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	total := s.guide.Len()
	return State{
		SessionID:        s.cfg.SessionID,
		IsActive:         s.active,
		CurrentStepIndex: s.index,
		IsFirstStep:      s.index == 0,
		IsLastStep:       s.index == total-1,
		Total:            total,
		PanelOpen:        s.panelOpen,
		Suspended:        s.suspended,
		Degraded:         s.persist.Degraded(),
	}
}

// Boot restores the session from the persisted record. Call it once the
// host page has mounted the elements of the first step. With no record the
// session stays idle at step 0; a stopped tour is restored idle with the
// panel open at its step; an active tour is resumed with Start.
func (s *Session) Boot(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return s.stateLocked(), ErrDestroyed
	}

	s.suspended = false
	rec, ok := s.persist.Load(ctx)
	s.restoreLocked(ctx, rec, ok)
	return s.stateLocked(), nil
}

// Sync reconciles the session with a record another writer changed, such
// as a second process sharing the SQLite store. A record that matches the
// session is left alone.
func (s *Session) Sync(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return s.stateLocked(), ErrDestroyed
	}
	if s.suspended {
		return s.stateLocked(), nil
	}

	rec, ok := s.persist.Load(ctx)
	if ok && rec.IsActive == s.active && rec.CurrentStepIndex == s.index {
		return s.stateLocked(), nil
	}
	if !ok && !s.active && s.index == 0 && !s.panelOpen {
		return s.stateLocked(), nil
	}

	s.cfg.Logger.Info("tour: record changed elsewhere", "session", s.cfg.SessionID,
		"found", ok, "active", rec.IsActive, "step", rec.CurrentStepIndex)
	if s.active && !(ok && rec.IsActive) {
		s.teardown(ctx)
		s.emit(ctx, event.Event{Type: event.Stopped, StepIndex: s.index, Reason: "external"})
	}
	s.restoreLocked(ctx, rec, ok)
	return s.stateLocked(), nil
}

// restoreLocked applies a loaded record the way Boot describes.
func (s *Session) restoreLocked(ctx context.Context, rec persist.Record, ok bool) {
	switch {
	case !ok:
		s.active = false
		s.index = 0
		s.panelOpen = false
		s.cfg.Logger.Debug("tour: boot without record", "session", s.cfg.SessionID)
	case !rec.IsActive:
		s.active = false
		s.index = s.clampStart(rec.CurrentStepIndex)
		s.panelOpen = true
		s.cfg.Logger.Info("tour: boot idle", "session", s.cfg.SessionID, "step", s.index)
	default:
		s.cfg.Logger.Info("tour: boot resuming", "session", s.cfg.SessionID, "step", rec.CurrentStepIndex)
		s.startLocked(ctx, s.clampStart(rec.CurrentStepIndex))
	}
}

// Start activates the tour at index. A nil index resumes the saved step,
// or step 0 without one. An out-of-range index starts at step 0.
func (s *Session) Start(ctx context.Context, index *int) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return s.stateLocked(), ErrDestroyed
	}

	i := 0
	if index != nil {
		i = *index
	} else if rec, ok := s.persist.Load(ctx); ok {
		i = rec.CurrentStepIndex
	}
	s.startLocked(ctx, s.clampStart(i))
	return s.stateLocked(), nil
}

func (s *Session) startLocked(ctx context.Context, i int) {
	s.active = true
	s.completed = false
	s.panelOpen = false
	s.index = i
	s.save(ctx)
	s.emit(ctx, event.Event{Type: event.Started, StepIndex: i})
	s.show(ctx, i)
}

// Next moves to the following step, or completes the tour from the last
// one.
func (s *Session) Next(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return s.stateLocked(), ErrDestroyed
	}
	if !s.active {
		return s.stateLocked(), ErrNotActive
	}

	if s.index+1 < s.guide.Len() {
		s.index++
		s.save(ctx)
		s.show(ctx, s.index)
		return s.stateLocked(), nil
	}
	s.completeLocked(ctx)
	return s.stateLocked(), nil
}

// Previous moves to the preceding step. At step 0 nothing happens.
func (s *Session) Previous(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return s.stateLocked(), ErrDestroyed
	}
	if !s.active {
		return s.stateLocked(), ErrNotActive
	}
	if s.index == 0 {
		return s.stateLocked(), nil
	}

	s.index--
	s.save(ctx)
	s.show(ctx, s.index)
	return s.stateLocked(), nil
}

// GoTo jumps to step i, clamped to the tour. An idle session is activated.
func (s *Session) GoTo(ctx context.Context, i int) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return s.stateLocked(), ErrDestroyed
	}

	i = max(min(i, s.guide.Len()-1), 0)
	if !s.active {
		s.startLocked(ctx, i)
		return s.stateLocked(), nil
	}
	s.index = i
	s.save(ctx)
	s.show(ctx, i)
	return s.stateLocked(), nil
}

// Stop ends the tour and removes its visuals. The saved record keeps the
// step so a later Boot can reopen the panel there; use Reset to forget it.
func (s *Session) Stop(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return s.stateLocked(), ErrDestroyed
	}
	s.stopLocked(ctx)
	return s.stateLocked(), nil
}

func (s *Session) stopLocked(ctx context.Context) {
	wasActive := s.active
	s.active = false
	s.suspended = false
	if wasActive {
		s.save(ctx)
	}
	s.teardown(ctx)
	if wasActive {
		s.emit(ctx, event.Event{Type: event.Stopped, StepIndex: s.index})
	}
}

// Destroy stops the tour and releases the session. Every later call
// returns ErrDestroyed. The sink is closed.
func (s *Session) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}
	s.stopLocked(ctx)
	s.destroyed = true
	if err := s.cfg.Sink.Close(); err != nil {
		s.cfg.Logger.Warn("tour: close sink", "session", s.cfg.SessionID, "error", err)
	}
	s.cfg.Logger.Info("tour: destroyed", "session", s.cfg.SessionID)
	return nil
}

// Reset stops the tour and clears the saved record: the next Boot starts
// from scratch.
func (s *Session) Reset(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return s.stateLocked(), ErrDestroyed
	}
	wasActive := s.active
	s.active = false
	s.suspended = false
	s.teardown(ctx)
	s.persist.Reset(ctx)
	s.index = 0
	s.panelOpen = false
	if wasActive {
		s.emit(ctx, event.Event{Type: event.Stopped, StepIndex: s.index})
	}
	s.emit(ctx, event.Event{Type: event.Reset})
	return s.stateLocked(), nil
}

// Highlight shows a popover for a step outside the tour sequence. The tour
// position and the saved record are left alone.
func (s *Session) Highlight(ctx context.Context, step guide.Step) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return s.stateLocked(), ErrDestroyed
	}
	s.teardown(ctx)
	s.render(ctx, -1, step)
	s.emit(ctx, event.Event{Type: event.Highlighted, StepIndex: -1, StepID: step.ID})
	return s.stateLocked(), nil
}

// Reposition recomputes the placement of the shown popover, after a
// resize or scroll. It is idempotent.
func (s *Session) Reposition(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return s.stateLocked(), ErrDestroyed
	}
	if s.current != nil {
		s.place(ctx, s.current)
	}
	return s.stateLocked(), nil
}

// Dispatch runs the operation bound to a popover button.
func (s *Session) Dispatch(ctx context.Context, action string) (State, error) {
	switch action {
	case guide.ActionNext:
		return s.Next(ctx)
	case guide.ActionPrevious:
		return s.Previous(ctx)
	case guide.ActionClose:
		return s.Stop(ctx)
	default:
		return s.State(), fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// SetGuide swaps the guide, as a hot reload does. An active tour is
// re-shown at its step, clamped to the new guide.
func (s *Session) SetGuide(ctx context.Context, g *guide.Guide) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrDestroyed
	}
	s.guide = g
	if s.index >= g.Len() {
		s.index = g.Len() - 1
	}
	if s.active && !s.suspended {
		s.save(ctx)
		s.show(ctx, s.index)
	}
	s.cfg.Logger.Info("tour: guide replaced", "session", s.cfg.SessionID, "title", g.Title, "steps", g.Len())
	return nil
}

func (s *Session) clampStart(i int) int {
	if i < 0 || i >= s.guide.Len() {
		return 0
	}
	return i
}

func (s *Session) save(ctx context.Context) {
	s.persist.Save(ctx, s.index, s.active)
}

func (s *Session) completeLocked(ctx context.Context) {
	s.active = false
	s.save(ctx)
	s.teardown(ctx)
	if s.completed {
		return
	}
	s.completed = true
	s.cfg.Logger.Info("tour: completed", "session", s.cfg.SessionID, "steps", s.guide.Len())
	s.emit(ctx, event.Event{Type: event.Completed, StepIndex: s.index, Progress: 100})
	if s.cfg.OnComplete != nil {
		s.cfg.OnComplete()
	}
}

func (s *Session) emit(ctx context.Context, ev event.Event) {
	if err := s.cfg.Sink.Emit(ctx, s.stamp(ev, s.guide.Len())); err != nil {
		s.cfg.Logger.Warn("tour: emit", "session", s.cfg.SessionID, "type", ev.Type, "error", err)
	}
}

// stamp fills the fields every event carries. It reads only the
// immutable config, so the simulator goroutine may call it.
func (s *Session) stamp(ev event.Event, total int) event.Event {
	ev.ID = s.cfg.EventIDs()
	ev.SessionID = s.cfg.SessionID
	ev.Time = s.cfg.Now()
	ev.Total = total
	return ev
}
