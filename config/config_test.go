package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("page:\n  url: http://localhost:3000\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Browser.Width != 1280 || cfg.Browser.Height != 800 {
		t.Errorf("window = %dx%d", cfg.Browser.Width, cfg.Browser.Height)
	}
	if cfg.Tour.Navigation != "hard" {
		t.Errorf("navigation = %q, want hard", cfg.Tour.Navigation)
	}
	if cfg.Storage.Type != "local" {
		t.Errorf("storage = %q, want local", cfg.Storage.Type)
	}
	if cfg.Guide.Debounce != 250*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Guide.Debounce)
	}
	if cfg.Tour.SimulateTicks != 10 || cfg.Tour.SimulateInterval != 500*time.Millisecond {
		t.Errorf("simulator = %d/%v", cfg.Tour.SimulateTicks, cfg.Tour.SimulateInterval)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waypoint.yaml")
	data := `
browser:
  headless: true
  profile: /var/lib/waypoint/chrome
  resource_blocking: [images, fonts]
page:
  url: http://localhost:3000/projects
guide:
  path: tour.yaml
  watch: true
tour:
  navigation: soft
  simulate: true
storage:
  type: sqlite
server:
  addr: ":8090"
  mcp: true
sinks:
  - type: stdout
  - type: webhook
    url: http://hooks.local/tour
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Browser.Headless || cfg.Browser.Profile != "/var/lib/waypoint/chrome" || len(cfg.Browser.ResourceBlocking) != 2 {
		t.Errorf("browser = %+v", cfg.Browser)
	}
	if cfg.Tour.Navigation != "soft" || !cfg.Tour.Simulate {
		t.Errorf("tour = %+v", cfg.Tour)
	}
	if cfg.Storage.Path != "waypoint.db" {
		t.Errorf("sqlite path = %q", cfg.Storage.Path)
	}
	if !cfg.Server.MCP || cfg.Server.Addr != ":8090" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if len(cfg.Sinks) != 2 || cfg.Sinks[1].Retries != 3 {
		t.Errorf("sinks = %+v", cfg.Sinks)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"navigation": "tour:\n  navigation: teleport\n",
		"storage":    "storage:\n  type: cookie\n",
		"webhook":    "sinks:\n  - type: webhook\n",
		"jsonl":      "sinks:\n  - type: jsonl\n",
		"sink type":  "sinks:\n  - type: kafka\n",
		"yaml":       "tour: [",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(data)); err == nil || !strings.HasPrefix(err.Error(), "config: ") {
				t.Errorf("err = %v, want config error", err)
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}
