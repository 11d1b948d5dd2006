// Package route matches locations against step route patterns and builds
// the concrete route a step has to be shown on.
//
// A pattern is split into '/'-delimited non-empty segments. A segment that
// starts with ':' is a placeholder: it matches any single path segment and
// captures its value under the name following the colon. Every other
// segment must match exactly, and both sides must have the same number of
// segments. The root pattern "/" matches every path.
package route

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Prefix marks a placeholder segment.
const Prefix = ":"

// ErrUnresolvedParam is returned by Build when a placeholder could not be
// substituted from the element attribute, its fallback value, or the
// current path.
var ErrUnresolvedParam = errors.New("route: unresolved parameter")

// Segments splits p into its non-empty segments. Query strings and
// fragments are ignored.
func Segments(p string) []string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsRoot reports whether pattern consists solely of the root.
func IsRoot(pattern string) bool {
	return len(Segments(pattern)) == 0 && strings.TrimSpace(pattern) != ""
}

// Match reports whether path satisfies pattern.
func Match(pattern, path string) bool {
	if IsRoot(pattern) {
		return true
	}
	ps, xs := Segments(pattern), Segments(path)
	if len(ps) != len(xs) {
		return false
	}
	for i, seg := range ps {
		if strings.HasPrefix(seg, Prefix) {
			continue
		}
		if seg != xs[i] {
			return false
		}
	}
	return true
}

// Params extracts the placeholder values of path under pattern. It returns
// nil when path does not match.
func Params(pattern, path string) map[string]string {
	if !Match(pattern, path) {
		return nil
	}
	params := make(map[string]string)
	ps, xs := Segments(pattern), Segments(path)
	if len(ps) != len(xs) {
		// Root pattern: nothing to capture.
		return params
	}
	for i, seg := range ps {
		if name, ok := strings.CutPrefix(seg, Prefix); ok && name != "" {
			params[name] = xs[i]
		}
	}
	return params
}

// Placeholders lists the placeholder names of pattern in order.
func Placeholders(pattern string) []string {
	var names []string
	for _, seg := range Segments(pattern) {
		if name, ok := strings.CutPrefix(seg, Prefix); ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Substitute replaces the placeholders of pattern found in params. The
// leading slash and any trailing query of pattern are kept.
func Substitute(pattern string, params map[string]string) string {
	base, tail := pattern, ""
	if i := strings.IndexAny(pattern, "?#"); i >= 0 {
		base, tail = pattern[:i], pattern[i:]
	}
	parts := strings.Split(base, "/")
	for i, seg := range parts {
		name, ok := strings.CutPrefix(seg, Prefix)
		if !ok || name == "" {
			continue
		}
		if v, found := params[name]; found && v != "" {
			parts[i] = url.PathEscape(v)
		}
	}
	return strings.Join(parts, "/") + tail
}

// ElementParam describes a route parameter read from an element on the
// current page.
type ElementParam struct {
	// Name is the placeholder to fill. Empty means the first placeholder
	// of the target pattern.
	Name string
	// Attribute is read from the source element.
	Attribute string
	// Fallback is used when the element or the attribute is absent.
	Fallback string
	// Value is the attribute value, if the element was found.
	Value string
	Found bool
}

// BuildInput gathers what Build needs.
type BuildInput struct {
	// Target is the step's target route pattern.
	Target string
	// Expected is the step's own route pattern, used to capture parameters
	// from Current.
	Expected string
	// Current is the path currently shown.
	Current string
	// Element is the optional element-derived parameter.
	Element *ElementParam
}

// Build resolves the concrete route of a step. The element-derived
// parameter is applied first, then parameters captured from the current
// path fill the remaining placeholders. A placeholder counts as resolved
// once a value was chosen for it, whatever that value looks like.
func Build(in BuildInput) (string, error) {
	target := in.Target
	if target == "" {
		return "", nil
	}
	names := Placeholders(target)

	params := map[string]string{}
	if ep := in.Element; ep != nil {
		name := ep.Name
		if name == "" && len(names) > 0 {
			name = names[0]
		}
		value := ep.Fallback
		if ep.Found && ep.Value != "" {
			value = ep.Value
		}
		if name != "" && value != "" {
			params[name] = value
		}
	}

	fill := func(captured map[string]string) {
		for k, v := range captured {
			if _, ok := params[k]; !ok && v != "" {
				params[k] = v
			}
		}
	}
	if in.Expected != "" {
		fill(Params(in.Expected, in.Current))
	}
	// Parameters of the target pattern itself when the current path already
	// sits on a sibling of it.
	fill(Params(in.Target, in.Current))

	target = Substitute(target, params)

	var left []string
	for _, n := range names {
		if _, ok := params[n]; !ok {
			left = append(left, n)
		}
	}
	if len(left) > 0 {
		return target, fmt.Errorf("%w: %s in %q", ErrUnresolvedParam, strings.Join(left, ","), target)
	}
	return target, nil
}

// NeedsNavigation reports whether the page has to move from current to
// reach target.
func NeedsNavigation(target, current string) bool {
	if target == "" {
		return false
	}
	return !Match(target, current)
}
