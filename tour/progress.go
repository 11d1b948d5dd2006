package tour

import (
	"context"
	"time"
)

// Progress is the share of the tour reached when step current of total is
// shown, as a percentage. Out-of-range input is clamped.
func Progress(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	current = max(min(current, total-1), 0)
	return float64(current+1) / float64(total) * 100
}

// Ticks returns n evenly spaced values from from (exclusive) to to
// (inclusive).
func Ticks(from, to float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	step := (to - from) / float64(n)
	for i := range out {
		out[i] = from + step*float64(i+1)
	}
	out[n-1] = to
	return out
}

// Simulator plays a finite progress sequence for steps that have no real
// completion signal, creeping from the previous step's progress towards
// the current one.
type Simulator struct {
	// Interval between ticks. Default: 500ms.
	Interval time.Duration
	// Ticks is the length of the sequence. Default: 10.
	Ticks int
}

func (s *Simulator) defaults() {
	if s.Interval <= 0 {
		s.Interval = 500 * time.Millisecond
	}
	if s.Ticks <= 0 {
		s.Ticks = 10
	}
}

// Start plays the sequence for step current of total on its own goroutine,
// calling emit for each value. The returned stop function cancels the
// sequence and waits until no further emit can happen.
func (s Simulator) Start(current, total int, emit func(float64)) (stop func()) {
	s.defaults()
	from := 0.0
	if current > 0 {
		from = Progress(current-1, total)
	}
	values := Ticks(from, Progress(current, total), s.Ticks)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(s.Interval)
		defer t.Stop()
		for _, v := range values {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			// Stop may have raced the tick.
			if ctx.Err() != nil {
				return
			}
			emit(v)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
