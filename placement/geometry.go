package placement

import "strings"

// Side is the side of the target a popover is attached to.
type Side string

const (
	SideTop    Side = "top"
	SideBottom Side = "bottom"
	SideLeft   Side = "left"
	SideRight  Side = "right"
	SideOver   Side = "over" // centred on the viewport, no arrow
	SideNone   Side = "none" // dock fallback
)

// ParseSide normalises a configured side. Unknown values yield "" (unset).
func ParseSide(s string) Side {
	switch v := Side(strings.ToLower(strings.TrimSpace(s))); v {
	case SideTop, SideBottom, SideLeft, SideRight, SideOver:
		return v
	default:
		return ""
	}
}

// Align is the cross-axis alignment of the popover along the chosen side.
type Align string

const (
	AlignStart  Align = "start"
	AlignCenter Align = "center"
	AlignEnd    Align = "end"
)

// ParseAlign normalises a configured alignment. Unknown values yield AlignStart.
func ParseAlign(s string) Align {
	switch v := Align(strings.ToLower(strings.TrimSpace(s))); v {
	case AlignCenter, AlignEnd:
		return v
	default:
		return AlignStart
	}
}

// Rect is a viewport-relative bounding box, as returned by
// getBoundingClientRect.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Right() float64   { return r.X + r.Width }
func (r Rect) Bottom() float64  { return r.Y + r.Height }
func (r Rect) CenterX() float64 { return r.X + r.Width/2 }
func (r Rect) CenterY() float64 { return r.Y + r.Height/2 }

// Visible reports whether at least part of r lies inside the viewport.
func (r Rect) Visible(vp Viewport) bool {
	return r.Right() > 0 && r.X < vp.Width && r.Bottom() > 0 && r.Y < vp.Height
}

// Size is the measured box of the rendered popover.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport describes the visible window and its scroll offset.
type Viewport struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	ScrollX float64 `json:"scroll_x"`
	ScrollY float64 `json:"scroll_y"`
}

// Center returns a zero-size rect at the middle of the viewport.
func (vp Viewport) Center() Rect {
	return Rect{X: vp.Width / 2, Y: vp.Height / 2}
}

func clamp(v, lo, hi float64) float64 {
	// lo wins when the popover is wider than the span.
	return max(min(v, hi), lo)
}
