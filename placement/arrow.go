package placement

// arrowFor places the arrow for a popover on side with alignment align.
// When the target has scrolled out of the viewport the arrow is turned
// toward it and snapped to the nearest end of the edge.
func arrowFor(side Side, align Align, t Rect, pop Size, vp Viewport, opts Options) Arrow {
	a := Arrow{Visible: true, Side: side, Align: align}

	switch side {
	case SideTop, SideBottom:
		// The popover sits above or below, so the edge end closest to the
		// target is the bottom of the side edge for top, the top for bottom.
		near := AlignEnd
		if side == SideBottom {
			near = AlignStart
		}
		switch {
		case t.Right() <= 0:
			a.Side, a.Align = SideRight, near
		case t.X >= vp.Width:
			a.Side, a.Align = SideLeft, near
		case t.X < 0:
			a.Align = AlignStart
		case t.Right() > vp.Width:
			a.Align = AlignEnd
		}
	case SideLeft, SideRight:
		near := AlignEnd
		if side == SideRight {
			near = AlignStart
		}
		switch {
		case t.Bottom() <= 0:
			a.Side, a.Align = SideBottom, near
		case t.Y >= vp.Height:
			a.Side, a.Align = SideTop, near
		case t.Y < 0:
			a.Align = AlignStart
		case t.Bottom() > vp.Height:
			a.Align = AlignEnd
		}
	}

	a.Offset = arrowOffset(a, pop, opts)
	return a
}

// arrowOffset is the arrow position along the popover edge carrying it.
func arrowOffset(a Arrow, pop Size, opts Options) float64 {
	length := pop.Width
	if a.Side == SideLeft || a.Side == SideRight {
		length = pop.Height
	}
	inset := min(3*opts.ArrowSize, length/2)

	switch a.Align {
	case AlignCenter:
		return length / 2
	case AlignEnd:
		return length - inset
	default:
		return inset
	}
}
