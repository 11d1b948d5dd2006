package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/waypoint/placement"
	"github.com/hazyhaar/waypoint/resolver"
)

const anchorSelector = "[data-waypoint-anchor]"

const rectJS = `function () {
	const r = this.getBoundingClientRect();
	return JSON.stringify({x: r.left, y: r.top, width: r.width, height: r.height});
}`

func (t *Tab) Query(ctx context.Context, selector string) (resolver.Element, error) {
	els, err := t.Page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query %q: %w", selector, err)
	}
	if len(els) == 0 {
		return nil, nil
	}
	return &element{el: els.First()}, nil
}

func (t *Tab) Viewport(ctx context.Context) (placement.Viewport, error) {
	var vp placement.Viewport
	err := evalJSON(ctx, t.Page, &vp, `() => JSON.stringify({
		width: document.documentElement.clientWidth || innerWidth,
		height: document.documentElement.clientHeight || innerHeight,
		scroll_x: scrollX,
		scroll_y: scrollY,
	})`)
	if err != nil {
		return placement.Viewport{}, fmt.Errorf("browser: viewport: %w", err)
	}
	return vp, nil
}

func (t *Tab) InjectAnchor(ctx context.Context, rect placement.Rect) (resolver.Element, error) {
	if _, err := t.Page.Context(ctx).Eval(`(x, y) => window.__waypoint.anchor(x, y)`, rect.X, rect.Y); err != nil {
		return nil, fmt.Errorf("browser: inject anchor: %w", err)
	}
	el, err := t.Query(ctx, anchorSelector)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, fmt.Errorf("browser: anchor not attached")
	}
	return el, nil
}

func (t *Tab) RemoveAnchor(ctx context.Context) error {
	if _, err := t.Page.Context(ctx).Eval(`() => window.__waypoint && window.__waypoint.removeAnchor()`); err != nil {
		return fmt.Errorf("browser: remove anchor: %w", err)
	}
	return nil
}

// element is a live DOM element.
type element struct {
	el *rod.Element
}

func (e *element) Rect(ctx context.Context) (placement.Rect, error) {
	res, err := e.el.Context(ctx).Eval(rectJS)
	if err != nil {
		return placement.Rect{}, fmt.Errorf("browser: rect: %w", err)
	}
	var r placement.Rect
	if err := decodeJSON(res.Value.Str(), &r); err != nil {
		return placement.Rect{}, err
	}
	return r, nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, fmt.Errorf("browser: attribute %s: %w", name, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}
