// Package guide holds the tour content: the guide config and its step
// descriptors. Descriptors are loaded once and read-only for the session.
package guide

import (
	"fmt"

	"github.com/hazyhaar/waypoint/placement"
	"github.com/hazyhaar/waypoint/resolver"
	"github.com/hazyhaar/waypoint/route"
)

// Guide is a complete tour.
type Guide struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
	Steps       []Step `json:"steps" yaml:"steps"`
	Config      Config `json:"config" yaml:"config"`
}

// Step is one step descriptor.
type Step struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title,omitempty" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
	// Target is the primary CSS selector of the anchor element.
	Target   string    `json:"target,omitempty" yaml:"target"`
	Fallback *Fallback `json:"fallback,omitempty" yaml:"fallback"`
	// Route is the pattern of the page the step belongs to.
	Route string `json:"route,omitempty" yaml:"route"`
	// TargetRoute is the pattern to navigate to when not already there.
	TargetRoute  string        `json:"targetRoute,omitempty" yaml:"targetRoute"`
	ElementRoute *ElementRoute `json:"elementRouteInfo,omitempty" yaml:"elementRouteInfo"`
	Popover      Popover       `json:"popover" yaml:"popover"`
}

// Fallback is the attribute-based locator tried when Target misses.
type Fallback struct {
	Attribute string `json:"attribute" yaml:"attribute"`
	Value     string `json:"value,omitempty" yaml:"value"`
}

// ElementRoute derives a route parameter from an element of the page the
// tour is leaving.
type ElementRoute struct {
	HasRoute bool `json:"hasRoute" yaml:"hasRoute"`
	// Route overrides the step TargetRoute when set.
	Route string `json:"route,omitempty" yaml:"route"`
	// Param names the placeholder to fill; empty means the first one.
	Param string `json:"param,omitempty" yaml:"param"`
	// ParamSource is the attribute read from Element.
	ParamSource string `json:"paramSource" yaml:"paramSource"`
	// ParamValue is the literal used when the element or attribute is absent.
	ParamValue string `json:"paramValue,omitempty" yaml:"paramValue"`
	// Element is the selector of the source element.
	Element string `json:"element" yaml:"element"`
}

// Popover is the popover part of a step.
type Popover struct {
	Side        string   `json:"side,omitempty" yaml:"side"`
	Align       string   `json:"align,omitempty" yaml:"align"`
	Title       string   `json:"title,omitempty" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Buttons     []string `json:"showButtons,omitempty" yaml:"showButtons"`
}

// Config holds tour-wide settings.
type Config struct {
	StartRoute string `json:"startRoute,omitempty" yaml:"startRoute"`
	StorageKey string `json:"storageKey,omitempty" yaml:"storageKey"`
	// StagePadding and PopoverOffset override the placement constants.
	StagePadding  *float64 `json:"stagePadding,omitempty" yaml:"stagePadding"`
	PopoverOffset *float64 `json:"popoverOffset,omitempty" yaml:"popoverOffset"`
	AllowClose    *bool    `json:"allowClose,omitempty" yaml:"allowClose"`
	ShowProgress  bool     `json:"showProgress,omitempty" yaml:"showProgress"`
	// ProgressText may use {{current}} and {{total}}.
	ProgressText string `json:"progressText,omitempty" yaml:"progressText"`
	NextText     string `json:"nextBtnText,omitempty" yaml:"nextBtnText"`
	PrevText     string `json:"prevBtnText,omitempty" yaml:"prevBtnText"`
	DoneText     string `json:"doneBtnText,omitempty" yaml:"doneBtnText"`
}

// ConfigError reports a guide that cannot run.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("guide: invalid config: %s: %s", e.Field, e.Reason)
}

// Validate checks the fields a tour cannot run without and fills in
// missing step IDs.
func (g *Guide) Validate() error {
	if g == nil {
		return &ConfigError{Field: "guide", Reason: "missing"}
	}
	if g.Title == "" {
		return &ConfigError{Field: "title", Reason: "missing"}
	}
	if len(g.Steps) == 0 {
		return &ConfigError{Field: "steps", Reason: "missing or empty"}
	}
	seen := make(map[string]bool, len(g.Steps))
	for i := range g.Steps {
		s := &g.Steps[i]
		if s.ID == "" {
			s.ID = fmt.Sprintf("step-%d", i+1)
		}
		if seen[s.ID] {
			return &ConfigError{Field: fmt.Sprintf("steps[%d].id", i), Reason: fmt.Sprintf("duplicate %q", s.ID)}
		}
		seen[s.ID] = true
		if er := s.ElementRoute; er != nil && er.HasRoute && er.Element == "" && er.ParamValue == "" {
			return &ConfigError{Field: fmt.Sprintf("steps[%d].elementRouteInfo", i), Reason: "needs element or paramValue"}
		}
	}
	return nil
}

// Len returns the number of steps.
func (g *Guide) Len() int { return len(g.Steps) }

// Locator returns the resolver locator of s.
func (s Step) Locator() resolver.Locator {
	loc := resolver.Locator{Selector: s.Target}
	if s.Fallback != nil {
		loc.FallbackAttribute = s.Fallback.Attribute
		loc.FallbackValue = s.Fallback.Value
	}
	return loc
}

// Preference returns the placement preference of s.
func (s Step) Preference() placement.Preference {
	return placement.Preference{
		Side:  placement.ParseSide(s.Popover.Side),
		Align: placement.ParseAlign(s.Popover.Align),
	}
}

// Heading is the popover title, falling back to the step title.
func (s Step) Heading() string {
	if s.Popover.Title != "" {
		return s.Popover.Title
	}
	return s.Title
}

// Body is the popover description, falling back to the step description.
func (s Step) Body() string {
	if s.Popover.Description != "" {
		return s.Popover.Description
	}
	return s.Description
}

// TargetPattern is the route pattern the step must be shown on, or "".
func (s Step) TargetPattern() string {
	if er := s.ElementRoute; er != nil && er.HasRoute && er.Route != "" {
		return er.Route
	}
	if s.TargetRoute != "" {
		return s.TargetRoute
	}
	return s.Route
}

// ElementParam returns the element-derived route parameter of s without
// its value, or nil.
func (s Step) ElementParam() *route.ElementParam {
	er := s.ElementRoute
	if er == nil || !er.HasRoute {
		return nil
	}
	return &route.ElementParam{
		Name:      er.Param,
		Attribute: er.ParamSource,
		Fallback:  er.ParamValue,
	}
}

// Options returns the placement constants with the guide overrides.
func (c Config) Options() placement.Options {
	opts := placement.DefaultOptions()
	if c.StagePadding != nil {
		opts.StagePadding = *c.StagePadding
	}
	if c.PopoverOffset != nil {
		opts.ArrowClearance = *c.PopoverOffset
	}
	return opts
}

// Closable reports whether the close button is shown. Default: true.
func (c Config) Closable() bool {
	return c.AllowClose == nil || *c.AllowClose
}
