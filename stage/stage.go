// Package stage is an in-memory tour.View. It records what a document
// would show, for tests and for headless previews.
package stage

import (
	"context"
	"sync"

	"github.com/hazyhaar/waypoint/guide"
	"github.com/hazyhaar/waypoint/placement"
	"github.com/hazyhaar/waypoint/resolver"
)

// DefaultSize is the popover size reported when none is configured.
var DefaultSize = placement.Size{Width: 300, Height: 150}

// Stage is an in-memory View.
type Stage struct {
	mu          sync.Mutex
	size        placement.Size
	attached    int
	maxAttached int
	content     guide.Content
	target      resolver.Element
	result      placement.Result
	placed      bool
	renders     []guide.Content
	repositions int
	destroys    int

	// RenderErr, if set, is returned by Render.
	RenderErr error
}

// New creates a Stage whose popover measures size. A zero size means
// DefaultSize.
func New(size placement.Size) *Stage {
	if size == (placement.Size{}) {
		size = DefaultSize
	}
	return &Stage{size: size}
}

func (s *Stage) Render(_ context.Context, c guide.Content, target resolver.Element) (placement.Size, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RenderErr != nil {
		return placement.Size{}, s.RenderErr
	}
	s.attached++
	s.maxAttached = max(s.maxAttached, s.attached)
	s.content = c
	s.target = target
	s.placed = false
	s.renders = append(s.renders, c)
	return s.size, nil
}

func (s *Stage) Reposition(_ context.Context, r placement.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = r
	s.placed = true
	s.repositions++
	return nil
}

func (s *Stage) Destroy(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached > 0 {
		s.destroys++
	}
	s.attached = 0
	s.target = nil
	s.placed = false
	return nil
}

// Attached returns the number of popovers attached now.
func (s *Stage) Attached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// MaxAttached returns the highest number of popovers ever attached at once.
func (s *Stage) MaxAttached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxAttached
}

// Content returns the content of the attached popover. ok is false when
// nothing is attached.
func (s *Stage) Content() (c guide.Content, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content, s.attached > 0
}

// Target returns the element the popover is attached to.
func (s *Stage) Target() resolver.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Placement returns the last placement applied to the attached popover.
func (s *Stage) Placement() (r placement.Result, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.placed
}

// Renders returns every content rendered so far, in order.
func (s *Stage) Renders() []guide.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]guide.Content(nil), s.renders...)
}

// RendersOf returns how many times the step with id was rendered.
func (s *Stage) RendersOf(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.renders {
		if c.StepID == id {
			n++
		}
	}
	return n
}

// Repositions returns the number of Reposition calls.
func (s *Stage) Repositions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repositions
}

// Destroys returns the number of popovers removed.
func (s *Stage) Destroys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroys
}
