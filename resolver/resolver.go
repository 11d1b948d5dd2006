// Package resolver finds the on-screen element a tour step is anchored to.
//
// Resolution never fails. The primary selector is tried first, then the
// attribute-based fallback locator, and when neither matches an invisible
// zero-size anchor is injected at the centre of the viewport and the result
// is flagged as a dummy so the popover is shown over the page.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/waypoint/placement"
)

// Element is a live element of the document.
type Element interface {
	Rect(ctx context.Context) (placement.Rect, error)
	Attribute(ctx context.Context, name string) (value string, ok bool, err error)
}

// Document is the page capability the resolver queries.
type Document interface {
	// Query returns the first element matching selector, or nil when
	// nothing matches.
	Query(ctx context.Context, selector string) (Element, error)
	Viewport(ctx context.Context) (placement.Viewport, error)
	// InjectAnchor adds the dummy anchor at rect, replacing any previous one.
	InjectAnchor(ctx context.Context, rect placement.Rect) (Element, error)
	// RemoveAnchor removes the dummy anchor if present.
	RemoveAnchor(ctx context.Context) error
}

// Locator identifies a step target.
type Locator struct {
	Selector string `json:"selector"`
	// FallbackAttribute and FallbackValue build an attribute selector tried
	// when Selector does not match.
	FallbackAttribute string `json:"fallback_attribute,omitempty"`
	FallbackValue     string `json:"fallback_value,omitempty"`
}

// FallbackSelector returns the attribute selector of l, or "".
func (l Locator) FallbackSelector() string {
	if l.FallbackAttribute == "" {
		return ""
	}
	if l.FallbackValue == "" {
		return "[" + l.FallbackAttribute + "]"
	}
	v := strings.ReplaceAll(l.FallbackValue, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return fmt.Sprintf(`[%s="%s"]`, l.FallbackAttribute, v)
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Element Element
	IsDummy bool
	// Selector is the selector that matched; empty for a dummy.
	Selector string
}

// Resolver resolves locators against a Document.
type Resolver struct {
	doc    Document
	logger *slog.Logger
}

// New creates a Resolver.
func New(doc Document, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{doc: doc, logger: logger}
}

// Resolve returns the element for loc, falling back to a dummy anchor.
func (r *Resolver) Resolve(ctx context.Context, loc Locator) Resolution {
	for _, sel := range []string{loc.Selector, loc.FallbackSelector()} {
		if sel == "" {
			continue
		}
		el, err := r.query(ctx, sel)
		if err != nil {
			r.logger.Debug("resolver: query failed", "selector", sel, "error", err)
			continue
		}
		if el != nil {
			// A previous step may have left an anchor behind.
			r.Release(ctx)
			return Resolution{Element: el, Selector: sel}
		}
	}

	r.logger.Info("resolver: target not found, using dummy anchor",
		"selector", loc.Selector, "fallback", loc.FallbackSelector())
	return Resolution{Element: r.anchor(ctx), IsDummy: true}
}

// Lookup returns the first element matching selector, or nil. It never
// injects an anchor.
func (r *Resolver) Lookup(ctx context.Context, selector string) Element {
	if selector == "" {
		return nil
	}
	el, err := r.query(ctx, selector)
	if err != nil {
		r.logger.Debug("resolver: lookup failed", "selector", selector, "error", err)
		return nil
	}
	return el
}

// Attribute reads name from el, treating errors and panics as absent.
func (r *Resolver) Attribute(ctx context.Context, el Element, name string) (string, bool) {
	if el == nil || name == "" {
		return "", false
	}
	var (
		v  string
		ok bool
	)
	err := guard(func() error {
		var aerr error
		v, ok, aerr = el.Attribute(ctx, name)
		return aerr
	})
	if err != nil {
		r.logger.Debug("resolver: attribute read failed", "attribute", name, "error", err)
		return "", false
	}
	return v, ok
}

// Rect returns the box of el. A failing element reports ok=false.
func (r *Resolver) Rect(ctx context.Context, el Element) (placement.Rect, bool) {
	if el == nil {
		return placement.Rect{}, false
	}
	var rect placement.Rect
	err := guard(func() error {
		var rerr error
		rect, rerr = el.Rect(ctx)
		return rerr
	})
	if err != nil {
		r.logger.Debug("resolver: rect read failed", "error", err)
		return placement.Rect{}, false
	}
	return rect, true
}

// Release removes the dummy anchor, if any.
func (r *Resolver) Release(ctx context.Context) {
	if err := guard(func() error { return r.doc.RemoveAnchor(ctx) }); err != nil {
		r.logger.Warn("resolver: remove anchor failed", "error", err)
	}
}

// Viewport returns the document viewport, or the zero viewport on error.
func (r *Resolver) Viewport(ctx context.Context) placement.Viewport {
	var vp placement.Viewport
	err := guard(func() error {
		var err error
		vp, err = r.doc.Viewport(ctx)
		return err
	})
	if err != nil {
		r.logger.Warn("resolver: viewport unavailable", "error", err)
		return placement.Viewport{}
	}
	return vp
}

func (r *Resolver) query(ctx context.Context, sel string) (el Element, err error) {
	err = guard(func() error {
		var qerr error
		el, qerr = r.doc.Query(ctx, sel)
		return qerr
	})
	return el, err
}

func (r *Resolver) anchor(ctx context.Context) Element {
	rect := r.Viewport(ctx).Center()
	var el Element
	err := guard(func() error {
		var ierr error
		el, ierr = r.doc.InjectAnchor(ctx, rect)
		return ierr
	})
	if err != nil || el == nil {
		r.logger.Warn("resolver: anchor injection failed, using detached anchor", "error", err)
		return Anchor{Box: rect}
	}
	return el
}

// Anchor is a detached element with a fixed box.
type Anchor struct {
	Box placement.Rect
}

func (a Anchor) Rect(context.Context) (placement.Rect, error) { return a.Box, nil }

func (a Anchor) Attribute(context.Context, string) (string, bool, error) { return "", false, nil }

// guard turns a panic of a document backend into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolver: document panic: %v", r)
		}
	}()
	return fn()
}
