package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/waypoint/dbopen"
	"github.com/hazyhaar/waypoint/event"
	"github.com/hazyhaar/waypoint/guide"
	"github.com/hazyhaar/waypoint/persist"
	"github.com/hazyhaar/waypoint/placement"
	"github.com/hazyhaar/waypoint/resolver"
	"github.com/hazyhaar/waypoint/stage"
	"github.com/hazyhaar/waypoint/tour"
)

const page = `<html><body>
<nav id="menu" data-rect="0,0,1000,60"></nav>
<button id="save" data-rect="800,700,120,40">Save</button>
</body></html>`

func setup(t *testing.T, storage persist.Storage) (*httptest.Server, *Metrics) {
	t.Helper()
	srv, m, _ := setupWithHistory(t, storage, nil)
	return srv, m
}

func setupWithHistory(t *testing.T, storage persist.Storage, history *event.History) (*httptest.Server, *Metrics, *tour.Session) {
	t.Helper()
	doc, err := resolver.NewHTMLDocument(strings.NewReader(page), placement.Viewport{Width: 1000, Height: 800})
	if err != nil {
		t.Fatal(err)
	}
	m := NewMetrics()
	var sink event.Sink = event.NewRouter(nil, m)
	if history != nil {
		sink = event.NewRouter(nil, m, history)
	}
	g := &guide.Guide{
		Title: "Server",
		Steps: []guide.Step{
			{ID: "menu", Target: "#menu", Popover: guide.Popover{Title: "Menu", Description: "Main *menu*"}},
			{ID: "save", Target: "#save", Popover: guide.Popover{Title: "Save"}},
		},
	}
	s, err := tour.New(tour.Config{
		Guide:    g,
		Document: doc,
		View:     stage.New(stage.DefaultSize),
		Persister: persist.New(persist.Config{
			Storage:   storage,
			OnFailure: m.PersistFailed,
		}),
		Sink: sink,
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(New(Config{Session: s, Metrics: m, History: history}).Handler())
	t.Cleanup(srv.Close)
	return srv, m, s
}

func post(t *testing.T, srv *httptest.Server, path, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("POST %s: decode: %v", path, err)
	}
	return resp.StatusCode, out
}

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestServer_Walk(t *testing.T) {
	srv, _ := setup(t, persist.NewMemory())

	code, st := post(t, srv, "/tour/start", "")
	if code != http.StatusOK || st["isActive"] != true || st["currentStepIndex"] != float64(0) {
		t.Fatalf("start: %d %v", code, st)
	}
	code, st = post(t, srv, "/tour/next", "")
	if code != http.StatusOK || st["currentStepIndex"] != float64(1) || st["isLastStep"] != true {
		t.Fatalf("next: %d %v", code, st)
	}
	code, st = post(t, srv, "/tour/action", `{"action":"previous"}`)
	if code != http.StatusOK || st["currentStepIndex"] != float64(0) {
		t.Fatalf("previous action: %d %v", code, st)
	}
	code, st = post(t, srv, "/tour/goto", `{"index":1}`)
	if code != http.StatusOK || st["currentStepIndex"] != float64(1) {
		t.Fatalf("goto: %d %v", code, st)
	}
	code, st = post(t, srv, "/tour/next", "")
	if code != http.StatusOK || st["isActive"] != false {
		t.Fatalf("complete: %d %v", code, st)
	}
}

func TestServer_Errors(t *testing.T) {
	srv, _ := setup(t, persist.NewMemory())

	cases := []struct {
		path, body string
		want       int
	}{
		{"/tour/next", "", http.StatusConflict},
		{"/tour/previous", "", http.StatusConflict},
		{"/tour/goto", `{}`, http.StatusBadRequest},
		{"/tour/goto", `{"index":`, http.StatusBadRequest},
		{"/tour/highlight", `{}`, http.StatusBadRequest},
		{"/tour/action", `{"action":"jump"}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		code, out := post(t, srv, c.path, c.body)
		if code != c.want {
			t.Errorf("POST %s %s = %d, want %d", c.path, c.body, code, c.want)
		}
		if out["error"] == "" || out["error"] == nil {
			t.Errorf("POST %s: no error message", c.path)
		}
	}
}

func TestServer_HighlightAndGuide(t *testing.T) {
	srv, _ := setup(t, persist.NewMemory())

	code, st := post(t, srv, "/tour/highlight", `{"step":{"id":"hl","target":"#save","popover":{"title":"Look"}}}`)
	if code != http.StatusOK || st["isActive"] != false {
		t.Fatalf("highlight: %d %v", code, st)
	}

	code, body := get(t, srv, "/tour/guide")
	if code != http.StatusOK {
		t.Fatalf("guide: %d", code)
	}
	var sum tour.GuideSummary
	if err := json.Unmarshal([]byte(body), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Title != "Server" || len(sum.Steps) != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if !strings.Contains(sum.Steps[0].Text, "*menu*") {
		t.Errorf("step text = %q", sum.Steps[0].Text)
	}
}

func TestServer_HealthAndHeaders(t *testing.T) {
	srv, _ := setup(t, persist.NewMemory())

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing request ID")
	}

	req, _ := http.NewRequest(http.MethodHead, srv.URL+"/tour/state", nil)
	req.Header.Set("X-Request-ID", "req-1")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("HEAD /tour/state = %d", resp2.StatusCode)
	}
	if got := resp2.Header.Get("X-Request-ID"); got != "req-1" {
		t.Errorf("request ID = %q, want req-1", got)
	}
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := setup(t, brokenStorage{})

	post(t, srv, "/tour/start", "")
	post(t, srv, "/tour/next", "")
	post(t, srv, "/tour/next", "")
	post(t, srv, "/tour/next", "")

	code, body := get(t, srv, "/metrics")
	if code != http.StatusOK {
		t.Fatalf("metrics = %d", code)
	}
	for _, want := range []string{
		`waypoint_events_total{type="started"} 1`,
		`waypoint_events_total{type="step"} 2`,
		`waypoint_completions_total 1`,
		`waypoint_progress_percent 100`,
		`waypoint_http_requests_total{op="next",status="4xx"} 1`,
		`waypoint_persist_failures_total{op="load"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

var errBroken = errors.New("quota exceeded")

// brokenStorage fails every operation.
type brokenStorage struct{}

func (brokenStorage) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errBroken }

func (brokenStorage) Set(context.Context, string, []byte) error { return errBroken }

func (brokenStorage) Delete(context.Context, string) error { return errBroken }

func TestServer_Events(t *testing.T) {
	db := dbopen.OpenMemory(t)
	h, err := event.NewHistory(db, 64, event.WithHistoryInterval(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	srv, _, _ := setupWithHistory(t, persist.NewMemory(), h)

	post(t, srv, "/tour/start", "")
	post(t, srv, "/tour/next", "")

	var steps []event.Event
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, body := get(t, srv, "/tour/events?type=step")
		steps = nil
		if err := json.Unmarshal([]byte(body), &steps); err != nil {
			t.Fatal(err)
		}
		if len(steps) == 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(steps) != 2 {
		t.Fatalf("step events = %d, want 2", len(steps))
	}
	if steps[0].StepID != "menu" || steps[1].StepID != "save" {
		t.Errorf("steps = %s, %s", steps[0].StepID, steps[1].StepID)
	}

	if code, _ := get(t, srv, "/tour/events?limit=x"); code != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", code)
	}
}
