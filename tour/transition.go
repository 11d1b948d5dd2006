package tour

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/waypoint/event"
	"github.com/hazyhaar/waypoint/guide"
	"github.com/hazyhaar/waypoint/placement"
	"github.com/hazyhaar/waypoint/route"
)

// show runs the part of a transition that follows the save: tear down the
// old popover, move the page if the step lives elsewhere, then resolve,
// render and place. A hard navigation ends the transition early.
func (s *Session) show(ctx context.Context, i int) {
	s.teardown(ctx)
	step := s.guide.Steps[i]

	if s.navigate(ctx, i, step) {
		return
	}
	s.render(ctx, i, step)
	s.startSimulator(i)
}

// navigate moves the page to the step route when needed and reports
// whether the transition is suspended.
func (s *Session) navigate(ctx context.Context, i int, step guide.Step) (suspended bool) {
	nav := s.cfg.Navigator
	pattern := step.TargetPattern()
	if nav == nil || pattern == "" {
		return false
	}
	log := s.cfg.Logger

	var current string
	err := guard(func() error {
		var perr error
		current, perr = nav.CurrentPath(ctx)
		return perr
	})
	if err != nil {
		log.Warn("tour: current path unavailable, rendering in place", "step", step.ID, "error", err)
		return false
	}
	expected := step.Route
	if expected == "" {
		expected = pattern
	}
	// Already on the step's page: the element feeding the parameter lives
	// on the page the tour came from and must not be consulted.
	if route.Match(expected, current) {
		return false
	}

	in := route.BuildInput{Target: pattern, Expected: step.Route, Current: current}
	if ep := step.ElementParam(); ep != nil {
		if el := s.resolver.Lookup(ctx, step.ElementRoute.Element); el != nil {
			ep.Value, ep.Found = s.resolver.Attribute(ctx, el, ep.Attribute)
		}
		in.Element = ep
	}

	target, err := route.Build(in)
	if err != nil {
		if errors.Is(err, route.ErrUnresolvedParam) {
			log.Warn("tour: navigation rejected", "step", step.ID, "target", target, "error", err)
			s.emit(ctx, event.Event{Type: event.NavigationRejected, StepIndex: i, StepID: step.ID, Path: target, Reason: err.Error()})
			return false
		}
		log.Warn("tour: route build failed", "step", step.ID, "error", err)
		return false
	}
	if !route.NeedsNavigation(target, current) {
		return false
	}

	mode := *s.cfg.NavigationMode
	log.Info("tour: navigating", "session", s.cfg.SessionID, "step", step.ID, "from", current, "to", target, "mode", mode.String())
	s.emit(ctx, event.Event{Type: event.Navigating, StepIndex: i, StepID: step.ID, Path: target, Reason: mode.String()})

	if mode == route.Hard {
		s.suspended = true
	}
	if err := guard(func() error { return nav.Navigate(ctx, target, mode) }); err != nil {
		s.suspended = false
		log.Warn("tour: navigation failed, rendering in place", "step", step.ID, "to", target, "error", err)
		return false
	}
	return mode == route.Hard
}

// render resolves the step target and shows its popover. i is -1 for a
// highlight.
func (s *Session) render(ctx context.Context, i int, step guide.Step) {
	log := s.cfg.Logger
	res := s.resolver.Resolve(ctx, step.Locator())
	content := s.cfg.Renderer.Render(step, i, s.guide.Len(), s.guide.Config)

	var size placement.Size
	err := guard(func() error {
		var rerr error
		size, rerr = s.cfg.View.Render(ctx, content, res.Element)
		return rerr
	})
	if err != nil {
		log.Error("tour: render failed", "session", s.cfg.SessionID, "step", step.ID, "error", err)
		s.resolver.Release(ctx)
		return
	}

	cur := &shown{index: i, step: step, element: res.Element, dummy: res.IsDummy, size: size}
	s.current = cur
	result := s.place(ctx, cur)

	if i >= 0 {
		s.emit(ctx, event.Event{
			Type:      event.Step,
			StepIndex: i,
			StepID:    step.ID,
			Placement: &result,
			Dummy:     res.IsDummy,
		})
		s.emit(ctx, event.Event{Type: event.Progress, StepIndex: i, StepID: step.ID, Progress: Progress(i, s.guide.Len())})
	}
}

// place computes and applies the placement of the shown popover.
func (s *Session) place(ctx context.Context, cur *shown) placement.Result {
	vp := s.resolver.Viewport(ctx)
	rect, ok := s.resolver.Rect(ctx, cur.element)
	dummy := cur.dummy || !ok

	result := placement.Compute(placement.Input{
		Target:     rect,
		Popover:    cur.size,
		Viewport:   vp,
		Preference: cur.step.Preference(),
		Dummy:      dummy,
		Options:    s.guide.Config.Options(),
	})
	if err := guard(func() error { return s.cfg.View.Reposition(ctx, result) }); err != nil {
		s.cfg.Logger.Warn("tour: reposition failed", "session", s.cfg.SessionID, "step", cur.step.ID, "error", err)
	}
	return result
}

// teardown removes the popover, the highlight and the dummy anchor, and
// stops the progress simulator.
func (s *Session) teardown(ctx context.Context) {
	if s.stopSim != nil {
		s.stopSim()
		s.stopSim = nil
	}
	if err := guard(func() error { return s.cfg.View.Destroy(ctx) }); err != nil {
		s.cfg.Logger.Warn("tour: destroy popover failed", "session", s.cfg.SessionID, "error", err)
	}
	s.resolver.Release(ctx)
	s.current = nil
}

func (s *Session) startSimulator(i int) {
	if s.cfg.Simulator == nil || s.current == nil {
		return
	}
	total := s.guide.Len()
	step := s.guide.Steps[i]
	sink := s.cfg.Sink
	s.stopSim = s.cfg.Simulator.Start(i, total, func(v float64) {
		_ = sink.Emit(context.Background(), s.stamp(event.Event{Type: event.Progress, StepIndex: i, StepID: step.ID, Progress: v}, total))
	})
}

// guard turns a panic in a capability call into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tour: panic: %v", r)
		}
	}()
	return fn()
}
