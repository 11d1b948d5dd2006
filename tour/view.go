package tour

import (
	"context"

	"github.com/hazyhaar/waypoint/guide"
	"github.com/hazyhaar/waypoint/placement"
	"github.com/hazyhaar/waypoint/resolver"
)

// View owns the popover and the highlight around its target. At most one
// popover is attached at a time: the session always calls Destroy before
// rendering the next step.
type View interface {
	// Render attaches the popover for c next to target and returns its
	// measured size. The popover stays hidden until Reposition.
	Render(ctx context.Context, c guide.Content, target resolver.Element) (placement.Size, error)
	// Reposition moves the attached popover.
	Reposition(ctx context.Context, r placement.Result) error
	// Destroy removes the popover and the highlight. It is a no-op when
	// nothing is attached.
	Destroy(ctx context.Context) error
}
