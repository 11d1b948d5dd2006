package guide

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/waypoint/placement"
)

const sampleJSON = `{
  "title": "Projects tour",
  "config": {"showProgress": true, "progressText": "{{current}}/{{total}}", "doneBtnText": "Finish", "stagePadding": 4},
  "steps": [
    {"id": "menu", "target": "#menu", "popover": {"title": "Menu", "description": "Open the **menu**", "side": "bottom", "align": "center"}},
    {"target": "#save", "fallback": {"attribute": "data-testid", "value": "save"}, "route": "/projects",
     "popover": {"description": "Save it"}},
    {"id": "detail", "target": ".title",
     "elementRouteInfo": {"hasRoute": true, "route": "/projects/:id", "paramSource": "data-id", "element": ".item"},
     "popover": {"description": "Details"}}
  ]
}`

const sampleYAML = `
title: Projects tour
steps:
  - id: menu
    target: "#menu"
    popover:
      description: Open the menu
      side: left
  - target: "#save"
    targetRoute: /projects
`

func TestParse_JSON(t *testing.T) {
	g, err := Parse([]byte(sampleJSON), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 3 {
		t.Fatalf("steps: got %d", g.Len())
	}
	if g.Steps[1].ID != "step-2" {
		t.Errorf("generated id: got %q", g.Steps[1].ID)
	}
	if p := g.Steps[0].Preference(); p.Side != placement.SideBottom || p.Align != placement.AlignCenter {
		t.Errorf("preference: got %+v", p)
	}
	loc := g.Steps[1].Locator()
	if loc.FallbackSelector() != `[data-testid="save"]` {
		t.Errorf("fallback selector: got %q", loc.FallbackSelector())
	}
	if got := g.Steps[2].TargetPattern(); got != "/projects/:id" {
		t.Errorf("TargetPattern: got %q", got)
	}
	ep := g.Steps[2].ElementParam()
	if ep == nil || ep.Attribute != "data-id" {
		t.Fatalf("ElementParam: got %+v", ep)
	}
	if g.Steps[0].ElementParam() != nil {
		t.Error("ElementParam: expected nil without elementRouteInfo")
	}
	opts := g.Config.Options()
	if opts.StagePadding != 4 || opts.ArrowClearance != placement.DefaultOptions().ArrowClearance {
		t.Errorf("Options: got %+v", opts)
	}
}

func TestParse_YAML(t *testing.T) {
	g, err := Parse([]byte(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	if g.Steps[0].Popover.Side != "left" {
		t.Errorf("side: got %q", g.Steps[0].Popover.Side)
	}
	if g.Steps[1].TargetPattern() != "/projects" {
		t.Errorf("TargetPattern: got %q", g.Steps[1].TargetPattern())
	}
	if !g.Config.Closable() {
		t.Error("Closable: default should be true")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		field string
	}{
		{"no title", `{"steps":[{"target":"#a"}]}`, "title"},
		{"no steps", `{"title":"t"}`, "steps"},
		{"empty steps", `{"title":"t","steps":[]}`, "steps"},
		{"duplicate id", `{"title":"t","steps":[{"id":"a"},{"id":"a"}]}`, "steps[1].id"},
		{"element route without source", `{"title":"t","steps":[{"elementRouteInfo":{"hasRoute":true}}]}`, "steps[0].elementRouteInfo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), FormatJSON)
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field: got %q, want %q", ce.Field, tt.field)
			}
		})
	}

	if _, err := Parse([]byte("{"), FormatJSON); err == nil {
		t.Error("expected syntax error")
	}
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{
		"tour.yaml": FormatYAML,
		"tour.YML":  FormatYAML,
		"tour.json": FormatJSON,
		"tour":      FormatJSON,
	} {
		if got := FormatOf(path); got != want {
			t.Errorf("FormatOf(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestRender_Buttons(t *testing.T) {
	g, err := Parse([]byte(sampleJSON), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRenderer()

	actions := func(c Content) string {
		var parts []string
		for _, b := range c.Buttons {
			parts = append(parts, b.Action+"="+b.Label)
		}
		return strings.Join(parts, ",")
	}

	first := r.Render(g.Steps[0], 0, 3, g.Config)
	if got := actions(first); got != "next=Next,close=×" {
		t.Errorf("first: got %s", got)
	}
	mid := r.Render(g.Steps[1], 1, 3, g.Config)
	if got := actions(mid); got != "next=Next,previous=Previous,close=×" {
		t.Errorf("middle: got %s", got)
	}
	last := r.Render(g.Steps[2], 2, 3, g.Config)
	if got := actions(last); got != "next=Finish,previous=Previous,close=×" {
		t.Errorf("last: got %s", got)
	}

	closed := false
	cfg := g.Config
	cfg.AllowClose = &closed
	if got := actions(r.Render(g.Steps[1], 1, 3, cfg)); got != "next=Next,previous=Previous" {
		t.Errorf("not closable: got %s", got)
	}

	highlight := r.Render(g.Steps[1], -1, 3, g.Config)
	if got := actions(highlight); got != "close=×" {
		t.Errorf("highlight: got %s", got)
	}
	if highlight.Progress != "" {
		t.Errorf("highlight progress: got %q", highlight.Progress)
	}
}

func TestRender_Content(t *testing.T) {
	g, err := Parse([]byte(sampleJSON), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	c := NewRenderer().Render(g.Steps[0], 0, 3, g.Config)

	if c.Title != "Menu" || c.StepID != "menu" {
		t.Errorf("header: got %q %q", c.StepID, c.Title)
	}
	if !strings.Contains(c.HTML, "<strong>menu</strong>") {
		t.Errorf("HTML: got %q", c.HTML)
	}
	if !strings.Contains(c.Text, "**menu**") {
		t.Errorf("Text: got %q", c.Text)
	}
	if c.Progress != "1/3" {
		t.Errorf("Progress: got %q", c.Progress)
	}
}

func TestRender_Sanitises(t *testing.T) {
	html := NewRenderer().HTML("Hello <img src=x onerror=alert(1)>\n\n<script>steal()</script>")
	if strings.Contains(html, "<script") || strings.Contains(html, "onerror") {
		t.Errorf("unsafe markup survived: %q", html)
	}
	if !strings.Contains(html, "Hello") {
		t.Errorf("text lost: %q", html)
	}
	if NewRenderer().HTML("  ") != "" {
		t.Error("blank description should render empty")
	}
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tour.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Guide, 4)
	w := NewWatcher(path, WatchOptions{Debounce: 20 * time.Millisecond})
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(g *Guide) { got <- g }) }()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)

	// An invalid write is skipped.
	if err := os.WriteFile(path, []byte("title: broken\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	updated := strings.Replace(sampleYAML, "Projects tour", "Renamed tour", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case g := <-got:
		if g.Title != "Renamed tour" {
			t.Fatalf("reloaded title: got %q", g.Title)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s := w.Stats(); s.Reloads < 1 || s.Errors < 1 {
		t.Errorf("stats: got %+v", s)
	}
}
