package browser

import (
	"context"
	"fmt"

	"github.com/hazyhaar/waypoint/guide"
	"github.com/hazyhaar/waypoint/placement"
	"github.com/hazyhaar/waypoint/resolver"
)

// Render attaches the popover for c, highlights target, and returns the
// popover size. The HTML in c is already sanitised.
func (t *Tab) Render(ctx context.Context, c guide.Content, target resolver.Element) (placement.Size, error) {
	var raw string
	if el, ok := target.(*element); ok {
		res, err := el.el.Context(ctx).Eval(`function (c) { return window.__waypoint.render(c, this); }`, c)
		if err != nil {
			return placement.Size{}, fmt.Errorf("browser: render %s: %w", c.StepID, err)
		}
		raw = res.Value.Str()
	} else {
		res, err := t.Page.Context(ctx).Eval(`(c) => window.__waypoint.render(c, null)`, c)
		if err != nil {
			return placement.Size{}, fmt.Errorf("browser: render %s: %w", c.StepID, err)
		}
		raw = res.Value.Str()
	}

	var size placement.Size
	if err := decodeJSON(raw, &size); err != nil {
		return placement.Size{}, err
	}
	return size, nil
}

// Reposition moves the popover and reveals it.
func (t *Tab) Reposition(ctx context.Context, r placement.Result) error {
	if _, err := t.Page.Context(ctx).Eval(`(r) => window.__waypoint.reposition(r)`, r); err != nil {
		return fmt.Errorf("browser: reposition: %w", err)
	}
	return nil
}

// Destroy removes the popover and the highlight.
func (t *Tab) Destroy(ctx context.Context) error {
	if _, err := t.Page.Context(ctx).Eval(`() => window.__waypoint && window.__waypoint.destroy()`); err != nil {
		return fmt.Errorf("browser: destroy: %w", err)
	}
	return nil
}

// Popovers returns the number of popovers attached to the document.
func (t *Tab) Popovers(ctx context.Context) (int, error) {
	res, err := t.Page.Context(ctx).Eval(`() => window.__waypoint ? window.__waypoint.count() : 0`)
	if err != nil {
		return 0, fmt.Errorf("browser: count popovers: %w", err)
	}
	return res.Value.Int(), nil
}
