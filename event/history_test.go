package event

import (
	"context"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/waypoint/dbopen"
)

func TestHistory_WriteAndQuery(t *testing.T) {
	db := dbopen.OpenMemory(t)
	h, err := NewHistory(db, 16, WithHistoryInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	base := time.Now()
	types := []Type{Started, Step, Progress, Step, Progress, Completed}
	for i, typ := range types {
		ev := Event{ID: string(rune('a' + i)), SessionID: "tour_1", Type: typ, Time: base.Add(time.Duration(i) * time.Millisecond), StepIndex: i / 2}
		if err := h.Emit(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}
	h.Emit(ctx, Event{ID: "z", SessionID: "tour_2", Type: Started, Time: base})

	// Close drains the queue.
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	all, err := h.Query(ctx, HistoryFilter{SessionID: "tour_1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(types) {
		t.Fatalf("events = %d, want %d", len(all), len(types))
	}
	for i, ev := range all {
		if ev.Type != types[i] {
			t.Errorf("event %d = %s, want %s", i, ev.Type, types[i])
		}
	}

	steps, err := h.Query(ctx, HistoryFilter{SessionID: "tour_1", Type: Step})
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 || steps[1].StepIndex != 1 {
		t.Errorf("steps = %+v", steps)
	}

	last, err := h.Query(ctx, HistoryFilter{Limit: 2, SessionID: "tour_1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(last) != 2 || last[1].Type != Completed {
		t.Errorf("last two = %+v", last)
	}
}

func TestHistory_BufferFullWritesSync(t *testing.T) {
	db := dbopen.OpenMemory(t)
	h, err := NewHistory(db, 1, WithHistoryInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := h.Emit(ctx, Event{ID: string(rune('a' + i)), SessionID: "s", Type: Step, Time: time.Now()}); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}
	h.Close()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM tour_events").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("rows = %d, want 5", n)
	}
}

func TestHistory_Cleanup(t *testing.T) {
	db := dbopen.OpenMemory(t)
	h, err := NewHistory(db, 4)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	h.Emit(ctx, Event{ID: "old", SessionID: "s", Type: Started, Time: time.Now().Add(-48 * time.Hour)})
	h.Emit(ctx, Event{ID: "new", SessionID: "s", Type: Step, Time: time.Now()})
	h.Close()

	n, err := h.Cleanup(ctx, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
}

func TestHistory_EmitAfterClose(t *testing.T) {
	db := dbopen.OpenMemory(t)
	h, err := NewHistory(db, 4, WithHistoryInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := h.Emit(ctx, Event{ID: "a", SessionID: "s", Type: Started, Time: time.Now()}); err != nil {
		t.Fatal(err)
	}
	h.Close()

	if err := h.Emit(ctx, Event{ID: "b", SessionID: "s", Type: Step, Time: time.Now()}); !errors.Is(err, ErrHistoryClosed) {
		t.Fatalf("Emit after Close: got %v, want ErrHistoryClosed", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM tour_events").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}
