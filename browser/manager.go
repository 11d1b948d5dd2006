// Package browser drives a real Chrome page for a tour: the page is the
// document targets are resolved in, the popover view, the navigator and
// the localStorage the tour record is kept in.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of a Chrome the user already
	// runs. Empty launches a local one.
	RemoteURL string

	// Bin is the Chrome binary. Empty lets the launcher find or fetch one.
	Bin string

	// ProfileDir keeps the Chrome profile, and with it the localStorage
	// holding the tour record, across runs. Empty uses a throwaway profile,
	// so a local-storage tour starts over on every launch.
	ProfileDir string

	// Headless launches Chrome without a window. A tour shown to a person
	// runs headful.
	Headless bool

	// Stealth hides the automation flags so the application behaves as it
	// does for the user.
	Stealth bool

	// Width and Height size the window, and so the viewport popovers are
	// placed in. Default: 1280x800.
	Width, Height int

	// ResourceBlocking lists resource types the page does not load. See
	// blockableTypes.
	ResourceBlocking []string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 800
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the Chrome process, or the connection to a remote one.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a Manager. Nothing runs until Start.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start connects to Chrome, launching it first unless RemoteURL is set.
// Calling it again returns the same browser.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("browser: manager is closed")
	}
	if m.browser != nil {
		return m.browser, nil
	}

	u, err := m.controlURL(ctx)
	if err != nil {
		return nil, err
	}
	b := rod.New().Context(ctx).ControlURL(u)
	if err := b.Connect(); err != nil {
		m.stopLauncher()
		return nil, fmt.Errorf("browser: connect %s: %w", u, err)
	}
	// The start context bounds the handshake only.
	m.browser = b.Context(context.Background())
	return m.browser, nil
}

// Browser returns the connected browser, or nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser
}

// Close disconnects, and stops Chrome when the Manager launched it. A
// remote Chrome keeps running.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	if m.browser != nil {
		if m.lnch != nil {
			err = m.browser.Close()
		}
		m.browser = nil
	}
	m.stopLauncher()
	return err
}

func (m *Manager) controlURL(ctx context.Context) (string, error) {
	log := m.cfg.Logger
	if m.cfg.RemoteURL != "" {
		log.Info("browser: using remote chrome", "url", m.cfg.RemoteURL)
		return m.cfg.RemoteURL, nil
	}

	l := launcher.New().
		Context(ctx).
		Headless(m.cfg.Headless).
		Set("window-size", fmt.Sprintf("%d,%d", m.cfg.Width, m.cfg.Height))
	if m.cfg.Bin != "" {
		l = l.Bin(m.cfg.Bin)
	}
	if m.cfg.ProfileDir != "" {
		l = l.UserDataDir(m.cfg.ProfileDir)
	}
	if m.cfg.Stealth {
		l = l.Set("disable-blink-features", "AutomationControlled")
	}

	u, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("browser: launch chrome: %w", err)
	}
	m.lnch = l
	log.Info("browser: chrome launched", "headless", m.cfg.Headless, "profile", m.cfg.ProfileDir,
		"window", fmt.Sprintf("%dx%d", m.cfg.Width, m.cfg.Height))
	return u, nil
}

func (m *Manager) stopLauncher() {
	if m.lnch == nil {
		return
	}
	m.lnch.Kill()
	// Cleanup removes the profile directory.
	if m.cfg.ProfileDir == "" {
		m.lnch.Cleanup()
	}
	m.lnch = nil
}
