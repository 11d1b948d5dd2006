package placement

import "testing"

var (
	testViewport = Viewport{Width: 1000, Height: 800}
	testPopover  = Size{Width: 200, Height: 100}
)

func input(target Rect, side Side, align Align) Input {
	return Input{
		Target:     target,
		Popover:    testPopover,
		Viewport:   testViewport,
		Preference: Preference{Side: side, Align: align},
	}
}

func TestCompute_Idempotent(t *testing.T) {
	in := input(Rect{X: 400, Y: 300, Width: 100, Height: 50}, SideBottom, AlignCenter)
	a := Compute(in)
	b := Compute(in)
	if a != b {
		t.Fatalf("Compute not idempotent:\n%+v\n%+v", a, b)
	}
}

func TestCompute_FullViewportDocks(t *testing.T) {
	in := input(Rect{X: 0, Y: 0, Width: 1000, Height: 800}, SideBottom, AlignStart)
	res := Compute(in)

	if !res.Docked || res.Side != SideNone {
		t.Fatalf("expected dock, got side=%s docked=%v", res.Side, res.Docked)
	}
	if res.Fits.Any() {
		t.Errorf("Fits: got %+v, want none", res.Fits)
	}
	if res.Arrow.Visible {
		t.Error("arrow should be suppressed when docked")
	}
	if res.X != 400 {
		t.Errorf("X: got %v, want 400 (horizontally centred)", res.X)
	}
	if res.Y != 690 {
		t.Errorf("Y: got %v, want 690 (800-100-10)", res.Y)
	}
	if !res.Fixed {
		t.Error("docked popover must be fixed")
	}
}

func TestCompute_RequestedSideWins(t *testing.T) {
	target := Rect{X: 400, Y: 300, Width: 100, Height: 50}
	for _, side := range []Side{SideTop, SideBottom, SideLeft, SideRight} {
		res := Compute(input(target, side, AlignStart))
		if res.Side != side {
			t.Errorf("requested %s: got %s", side, res.Side)
		}
	}
}

func TestCompute_FallbackPriority(t *testing.T) {
	tests := []struct {
		name   string
		target Rect
		side   Side
		want   Side
	}{
		{"top blocked picks left", Rect{X: 400, Y: 50, Width: 100, Height: 50}, SideTop, SideLeft},
		{"unset picks left", Rect{X: 400, Y: 300, Width: 100, Height: 50}, "", SideLeft},
		{"left blocked picks right", Rect{X: 50, Y: 300, Width: 100, Height: 50}, "", SideRight},
		{"over on real target behaves as unset", Rect{X: 400, Y: 300, Width: 100, Height: 50}, SideOver, SideLeft},
		{"only top fits", Rect{X: 0, Y: 400, Width: 1000, Height: 400}, SideBottom, SideTop},
		{"only bottom fits", Rect{X: 0, Y: 0, Width: 1000, Height: 400}, SideTop, SideBottom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compute(input(tt.target, tt.side, AlignStart))
			if res.Side != tt.want {
				t.Fatalf("side: got %s, want %s (fits %+v)", res.Side, tt.want, res.Fits)
			}
		})
	}
}

func TestCompute_Coordinates(t *testing.T) {
	target := Rect{X: 400, Y: 300, Width: 100, Height: 50}
	tests := []struct {
		side  Side
		align Align
		x, y  float64
	}{
		{SideBottom, AlignStart, 390, 370},
		{SideBottom, AlignCenter, 350, 370},
		{SideBottom, AlignEnd, 310, 370},
		{SideTop, AlignStart, 390, 180},
		{SideLeft, AlignStart, 180, 290},
		{SideLeft, AlignCenter, 180, 275},
		{SideRight, AlignEnd, 520, 260},
	}
	for _, tt := range tests {
		res := Compute(input(target, tt.side, tt.align))
		if res.X != tt.x || res.Y != tt.y {
			t.Errorf("%s/%s: got (%v,%v), want (%v,%v)", tt.side, tt.align, res.X, res.Y, tt.x, tt.y)
		}
	}
}

func TestCompute_CrossAxisClamped(t *testing.T) {
	res := Compute(input(Rect{X: 0, Y: 300, Width: 50, Height: 50}, SideBottom, AlignCenter))
	if res.X != 5 {
		t.Errorf("left clamp: got %v, want 5", res.X)
	}

	res = Compute(input(Rect{X: 960, Y: 300, Width: 40, Height: 50}, SideBottom, AlignStart))
	if res.X != 795 {
		t.Errorf("right clamp: got %v, want 795", res.X)
	}
}

func TestCompute_DummyForcesOver(t *testing.T) {
	in := input(testViewport.Center(), SideBottom, AlignStart)
	in.Dummy = true
	res := Compute(in)

	if res.Side != SideOver {
		t.Fatalf("side: got %s, want over", res.Side)
	}
	if res.Arrow.Visible {
		t.Error("arrow must be hidden in over mode")
	}
	if res.X != 400 || res.Y != 350 {
		t.Errorf("over coords: got (%v,%v), want (400,350)", res.X, res.Y)
	}
}

func TestCompute_ArrowFollowsOffscreenTarget(t *testing.T) {
	tests := []struct {
		name   string
		target Rect
		side   Side
		want   Arrow
	}{
		{"partly off left", Rect{X: -50, Y: 400, Width: 100, Height: 50}, SideTop, Arrow{Visible: true, Side: SideTop, Align: AlignStart}},
		{"partly off right", Rect{X: 950, Y: 400, Width: 100, Height: 50}, SideTop, Arrow{Visible: true, Side: SideTop, Align: AlignEnd}},
		{"fully off left", Rect{X: -200, Y: 400, Width: 100, Height: 50}, SideTop, Arrow{Visible: true, Side: SideRight, Align: AlignEnd}},
		{"fully off right", Rect{X: 1100, Y: 400, Width: 100, Height: 50}, SideTop, Arrow{Visible: true, Side: SideLeft, Align: AlignEnd}},
		{"fully above", Rect{X: 400, Y: -300, Width: 100, Height: 200}, SideRight, Arrow{Visible: true, Side: SideBottom, Align: AlignStart}},
		{"partly below", Rect{X: 400, Y: 700, Width: 100, Height: 200}, SideLeft, Arrow{Visible: true, Side: SideLeft, Align: AlignEnd}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compute(input(tt.target, tt.side, AlignCenter))
			if res.Side != tt.side {
				t.Fatalf("side: got %s, want %s", res.Side, tt.side)
			}
			got := res.Arrow
			got.Offset = 0
			if got != tt.want {
				t.Fatalf("arrow: got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCompute_BottomArrowOutsideTarget(t *testing.T) {
	// Target partly off the left edge: the popover is clamped to x=5 and the
	// start-aligned arrow lands at x=20, past the target's right edge (10).
	res := Compute(input(Rect{X: -20, Y: 300, Width: 30, Height: 20}, SideBottom, AlignCenter))
	if res.Side != SideBottom {
		t.Fatalf("side: got %s, want bottom", res.Side)
	}
	if res.Arrow.Visible {
		t.Fatalf("arrow should be suppressed, got %+v", res.Arrow)
	}
	if res.Y != 335 {
		t.Errorf("Y: got %v, want 335 (340 nudged by 5)", res.Y)
	}
}

func TestCompute_ScrollOffsets(t *testing.T) {
	in := input(Rect{X: 400, Y: 300, Width: 100, Height: 50}, SideBottom, AlignStart)
	in.Viewport.ScrollX = 10
	in.Viewport.ScrollY = 1200
	res := Compute(in)
	if res.Left != res.X+10 || res.Top != res.Y+1200 {
		t.Fatalf("document coords: got (%v,%v) for (%v,%v)", res.Left, res.Top, res.X, res.Y)
	}
}

func TestParse(t *testing.T) {
	if ParseSide(" Bottom ") != SideBottom {
		t.Error("ParseSide: case/space not normalised")
	}
	if ParseSide("diagonal") != "" {
		t.Error("ParseSide: unknown side should be unset")
	}
	if ParseAlign("") != AlignStart {
		t.Error("ParseAlign: default should be start")
	}
	if ParseAlign("END") != AlignEnd {
		t.Error("ParseAlign: case not normalised")
	}
}
