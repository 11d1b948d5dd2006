package route

import (
	"context"
	"fmt"
	"sync"
)

// Mode selects how a navigation is carried out.
type Mode int

const (
	// Soft is a client-side transition: the document and every in-memory
	// state survive.
	Soft Mode = iota
	// Hard is a full-document navigation. Nothing that runs after it in the
	// same transition is guaranteed to execute.
	Hard
)

func (m Mode) String() string {
	if m == Hard {
		return "hard"
	}
	return "soft"
}

// Navigator is the page location capability.
type Navigator interface {
	// CurrentPath returns the path part of the current location.
	CurrentPath(ctx context.Context) (string, error)
	// Navigate moves the page to path.
	Navigate(ctx context.Context, path string, mode Mode) error
}

// Navigation is one recorded Memory navigation.
type Navigation struct {
	Path string
	Mode Mode
}

// Memory is an in-process Navigator. A hard navigation calls OnHard, which
// tests use to simulate the page reboot.
type Memory struct {
	mu      sync.Mutex
	path    string
	history []Navigation
	// OnHard, if set, runs after every hard navigation.
	OnHard func(path string)
	// Err, if set, is returned by Navigate.
	Err error
}

// NewMemory returns a Memory navigator positioned at path.
func NewMemory(path string) *Memory {
	return &Memory{path: path}
}

func (m *Memory) CurrentPath(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path, nil
}

func (m *Memory) Navigate(_ context.Context, path string, mode Mode) error {
	m.mu.Lock()
	if m.Err != nil {
		err := m.Err
		m.mu.Unlock()
		return fmt.Errorf("route: navigate %s: %w", path, err)
	}
	m.path = path
	m.history = append(m.history, Navigation{Path: path, Mode: mode})
	hook := m.OnHard
	m.mu.Unlock()

	if mode == Hard && hook != nil {
		hook(path)
	}
	return nil
}

// History returns the navigations performed so far.
func (m *Memory) History() []Navigation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Navigation(nil), m.history...)
}

// HardCount returns the number of hard navigations performed so far.
func (m *Memory) HardCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, h := range m.history {
		if h.Mode == Hard {
			n++
		}
	}
	return n
}
