// Package config handles the waypoint daemon configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level daemon configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Page    PageConfig    `yaml:"page"`
	Guide   GuideConfig   `yaml:"guide"`
	Tour    TourConfig    `yaml:"tour"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Sinks   []SinkConfig  `yaml:"sinks"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote string `yaml:"remote"`
	Bin    string `yaml:"bin"`
	// Profile keeps the Chrome profile, and a local-storage tour record,
	// across runs.
	Profile          string   `yaml:"profile"`
	Headless         bool     `yaml:"headless"`
	Stealth          bool     `yaml:"stealth"`
	Width            int      `yaml:"width"`
	Height           int      `yaml:"height"`
	ResourceBlocking []string `yaml:"resource_blocking"`
}

// PageConfig is the application the tour runs on.
type PageConfig struct {
	URL string `yaml:"url"`
	// NavTimeout bounds a hard navigation.
	NavTimeout time.Duration `yaml:"nav_timeout"`
}

// GuideConfig locates the guide file.
type GuideConfig struct {
	Path     string        `yaml:"path"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// TourConfig tunes the session.
type TourConfig struct {
	// Navigation is hard or soft.
	Navigation string `yaml:"navigation"`
	// AutoStart starts the tour at boot when there is no saved record.
	AutoStart bool `yaml:"auto_start"`
	// Simulate plays a progress sequence while a step is shown.
	Simulate         bool          `yaml:"simulate"`
	SimulateInterval time.Duration `yaml:"simulate_interval"`
	SimulateTicks    int           `yaml:"simulate_ticks"`
}

// StorageConfig selects where the tour record is kept.
type StorageConfig struct {
	// Type is local (page localStorage), sqlite or memory.
	Type string `yaml:"type"`
	Path string `yaml:"path"`
	// WatchInterval is how often an sqlite store is polled for changes
	// made by other processes. Default: 1s.
	WatchInterval time.Duration `yaml:"watch_interval"`
}

// ServerConfig controls the control API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	MCP  bool   `yaml:"mcp"`
}

// SinkConfig defines an event output.
type SinkConfig struct {
	Type    string        `yaml:"type"` // stdout | jsonl | webhook
	URL     string        `yaml:"url"`  // webhook
	Path    string        `yaml:"path"` // jsonl
	Retries int           `yaml:"retries"`
	Backoff time.Duration `yaml:"backoff"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Browser.Width <= 0 {
		c.Browser.Width = 1280
	}
	if c.Browser.Height <= 0 {
		c.Browser.Height = 800
	}
	if c.Page.NavTimeout <= 0 {
		c.Page.NavTimeout = 30 * time.Second
	}
	if c.Guide.Debounce <= 0 {
		c.Guide.Debounce = 250 * time.Millisecond
	}
	if c.Tour.Navigation == "" {
		c.Tour.Navigation = "hard"
	}
	if c.Tour.SimulateInterval <= 0 {
		c.Tour.SimulateInterval = 500 * time.Millisecond
	}
	if c.Tour.SimulateTicks <= 0 {
		c.Tour.SimulateTicks = 10
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.Type == "sqlite" && c.Storage.Path == "" {
		c.Storage.Path = "waypoint.db"
	}
	if c.Storage.WatchInterval <= 0 {
		c.Storage.WatchInterval = time.Second
	}
	for i := range c.Sinks {
		if c.Sinks[i].Type == "webhook" && c.Sinks[i].Retries <= 0 {
			c.Sinks[i].Retries = 3
		}
		if c.Sinks[i].Backoff <= 0 {
			c.Sinks[i].Backoff = time.Second
		}
	}
}

// Validate rejects values the daemon cannot act on.
func (c *Config) Validate() error {
	switch c.Tour.Navigation {
	case "hard", "soft":
	default:
		return fmt.Errorf("config: tour.navigation: unknown mode %q", c.Tour.Navigation)
	}
	switch c.Storage.Type {
	case "local", "sqlite", "memory":
	default:
		return fmt.Errorf("config: storage.type: unknown backend %q", c.Storage.Type)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "jsonl":
			if s.Path == "" {
				return fmt.Errorf("config: sinks[%d]: jsonl needs a path", i)
			}
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook needs a url", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}
