// Package placement computes where a step popover goes relative to its
// target element: the side, the cross-axis alignment, the coordinates and
// the arrow.
//
// Compute is pure. It keeps no state between calls, so it is safe to call
// on every resize and scroll event.
package placement

// Options holds the fixed spacing constants of the stage.
type Options struct {
	// StagePadding is the gap between the target and its highlight.
	StagePadding float64 `json:"stage_padding" yaml:"stage_padding"`
	// ArrowClearance is the gap kept between the highlight and the popover.
	ArrowClearance float64 `json:"arrow_clearance" yaml:"arrow_clearance"`
	// ArrowSize is the arrow width; the popover keeps this distance from
	// the viewport edges on the cross axis.
	ArrowSize float64 `json:"arrow_size" yaml:"arrow_size"`
	// DockOffset is the distance between a docked popover and the bottom
	// of the viewport.
	DockOffset float64 `json:"dock_offset" yaml:"dock_offset"`
	// BottomNudge moves a bottom popover up when its arrow is dropped.
	BottomNudge float64 `json:"bottom_nudge" yaml:"bottom_nudge"`
}

// DefaultOptions returns the stage constants used when none are configured.
func DefaultOptions() Options {
	return Options{
		StagePadding:   10,
		ArrowClearance: 10,
		ArrowSize:      5,
		DockOffset:     10,
		BottomNudge:    5,
	}
}

// Preference is the configured placement of a step.
type Preference struct {
	Side  Side  `json:"side"`
	Align Align `json:"align"`
}

// Input gathers everything a placement depends on.
type Input struct {
	Target     Rect
	Popover    Size
	Viewport   Viewport
	Preference Preference
	// Dummy is set when the target is a synthetic anchor.
	Dummy   bool
	Options Options
}

// Fits records, per side, whether the popover fits between the target and
// the viewport edge.
type Fits struct {
	Top    bool `json:"top"`
	Bottom bool `json:"bottom"`
	Left   bool `json:"left"`
	Right  bool `json:"right"`
}

// Any reports whether at least one side fits.
func (f Fits) Any() bool { return f.Top || f.Bottom || f.Left || f.Right }

// Has reports whether side s fits.
func (f Fits) Has(s Side) bool {
	switch s {
	case SideTop:
		return f.Top
	case SideBottom:
		return f.Bottom
	case SideLeft:
		return f.Left
	case SideRight:
		return f.Right
	}
	return false
}

// Arrow is the resolved arrow. Side follows the placement convention: an
// arrow with Side=top belongs to a popover sitting above its target and is
// drawn on the popover's bottom edge.
type Arrow struct {
	Visible bool  `json:"visible"`
	Side    Side  `json:"side,omitempty"`
	Align   Align `json:"align,omitempty"`
	// Offset is the distance of the arrow from the start of the popover
	// edge that carries it.
	Offset float64 `json:"offset"`
}

// Result is a resolved placement.
type Result struct {
	Side  Side  `json:"side"`
	Align Align `json:"align"`
	// X and Y are viewport-relative.
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// Left and Top are document coordinates. They equal X and Y when Fixed.
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Fixed  bool    `json:"fixed"`
	Docked bool    `json:"docked"`
	Arrow  Arrow   `json:"arrow"`
	Fits   Fits    `json:"fits"`
}

// priority is the order in which alternative sides are tried when the
// requested side does not fit.
var priority = []Side{SideLeft, SideRight, SideTop, SideBottom}

// Compute resolves the placement for in.
func Compute(in Input) Result {
	opts := in.Options
	if opts == (Options{}) {
		opts = DefaultOptions()
	}

	if in.Dummy {
		return over(in)
	}

	fits := measure(in.Target, in.Popover, in.Viewport, opts)
	side := chooseSide(in.Preference.Side, fits)
	if side == SideNone {
		res := dock(in, opts)
		res.Fits = fits
		return res
	}

	align := in.Preference.Align
	if align == "" {
		align = AlignStart
	}

	x, y := position(side, align, in.Target, in.Popover, in.Viewport, opts)
	res := Result{
		Side:  side,
		Align: align,
		X:     x,
		Y:     y,
		Fits:  fits,
		Arrow: arrowFor(side, align, in.Target, in.Popover, in.Viewport, opts),
	}

	if side == SideBottom && res.Arrow.Visible && res.Arrow.Side == SideBottom && in.Target.Visible(in.Viewport) {
		ax := res.X + res.Arrow.Offset
		if ax < in.Target.X || ax > in.Target.Right() {
			res.Arrow = Arrow{}
			res.Y -= opts.BottomNudge
		}
	}

	res.Left = res.X + in.Viewport.ScrollX
	res.Top = res.Y + in.Viewport.ScrollY
	return res
}

// measure derives the per-side fit flags from signed distances.
func measure(t Rect, pop Size, vp Viewport, opts Options) Fits {
	reach := opts.StagePadding + opts.ArrowClearance

	top := t.Y - (pop.Height + reach)
	bottom := vp.Height - (t.Bottom() + reach + pop.Height)
	left := t.X - (pop.Width + reach)
	right := vp.Width - (t.Right() + reach + pop.Width)

	return Fits{
		Top:    top >= 0,
		Bottom: bottom >= 0,
		Left:   left >= 0,
		Right:  right >= 0,
	}
}

// chooseSide returns the requested side when it fits, the first fitting
// side in priority order otherwise, and SideNone when nothing fits.
func chooseSide(requested Side, fits Fits) Side {
	if fits.Has(requested) {
		return requested
	}
	if !fits.Any() {
		return SideNone
	}
	for _, s := range priority {
		if fits.Has(s) {
			return s
		}
	}
	return SideNone
}

func position(side Side, align Align, t Rect, pop Size, vp Viewport, opts Options) (x, y float64) {
	reach := opts.StagePadding + opts.ArrowClearance
	switch side {
	case SideTop:
		return crossX(align, t, pop, vp, opts), t.Y - reach - pop.Height
	case SideBottom:
		return crossX(align, t, pop, vp, opts), t.Bottom() + reach
	case SideLeft:
		return t.X - reach - pop.Width, crossY(align, t, pop, vp, opts)
	default:
		return t.Right() + reach, crossY(align, t, pop, vp, opts)
	}
}

// crossX is the horizontal coordinate of a top or bottom popover.
func crossX(align Align, t Rect, pop Size, vp Viewport, opts Options) float64 {
	var v float64
	switch align {
	case AlignEnd:
		v = t.Right() + opts.StagePadding - pop.Width
	case AlignCenter:
		v = t.CenterX() - pop.Width/2
	default:
		v = t.X - opts.StagePadding
	}
	return clamp(v, opts.ArrowSize, vp.Width-pop.Width-opts.ArrowSize)
}

// crossY is the vertical coordinate of a left or right popover.
func crossY(align Align, t Rect, pop Size, vp Viewport, opts Options) float64 {
	var v float64
	switch align {
	case AlignEnd:
		v = t.Bottom() + opts.StagePadding - pop.Height
	case AlignCenter:
		v = t.CenterY() - pop.Height/2
	default:
		v = t.Y - opts.StagePadding
	}
	return clamp(v, opts.ArrowSize, vp.Height-pop.Height-opts.ArrowSize)
}

func over(in Input) Result {
	x := (in.Viewport.Width - in.Popover.Width) / 2
	y := (in.Viewport.Height - in.Popover.Height) / 2
	return Result{
		Side:  SideOver,
		Align: AlignCenter,
		X:     x,
		Y:     y,
		Left:  x,
		Top:   y,
		Fixed: true,
	}
}

func dock(in Input, opts Options) Result {
	x := in.Viewport.Width/2 - in.Popover.Width/2
	y := in.Viewport.Height - in.Popover.Height - opts.DockOffset
	return Result{
		Side:   SideNone,
		Align:  AlignCenter,
		X:      x,
		Y:      y,
		Left:   x,
		Top:    y,
		Fixed:  true,
		Docked: true,
	}
}
