package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

//go:embed waypoint.js
var waypointJS string

const bindingName = "__waypoint_binding"

// Bindings route page events back to the host. Each handler runs on its
// own goroutine; any may be nil.
type Bindings struct {
	// OnAction receives the action of a clicked popover button.
	OnAction func(action string)
	// OnViewport fires, throttled to animation frames, when the page is
	// resized or scrolled while a popover is shown.
	OnViewport func()
	// OnLoad fires after every document load, including the one that
	// follows a hard navigation.
	OnLoad func()
}

// Tab wraps a Rod page with the tour helper installed.
type Tab struct {
	Page   *rod.Page
	logger *slog.Logger

	// NavTimeout bounds a hard navigation. Default: 30s.
	NavTimeout time.Duration

	mu       sync.Mutex
	bindings Bindings
	blocker  *rod.HijackRouter
}

// OpenTab creates a new tab, installs the tour helper on every document it
// will load, and navigates to pageURL.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if mgr.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	t := &Tab{Page: page, logger: mgr.cfg.Logger, NavTimeout: 30 * time.Second}
	if set := blockSet(mgr.cfg.ResourceBlocking, t.logger); len(set) > 0 {
		if t.blocker, err = blockResources(page, set); err != nil {
			t.logger.Warn("browser: resource blocking failed", "error", err)
		}
	}
	if err := t.install(); err != nil {
		page.Close()
		return nil, err
	}

	if err := t.goTo(ctx, pageURL); err != nil {
		page.Close()
		return nil, err
	}
	return t, nil
}

// install registers the binding and the helper script. Both survive
// navigations.
func (t *Tab) install() error {
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(t.Page); err != nil {
		return fmt.Errorf("browser: add binding: %w", err)
	}
	if _, err := t.Page.EvalOnNewDocument("(" + waypointJS + ")()"); err != nil {
		return fmt.Errorf("browser: install helper: %w", err)
	}
	return nil
}

func (t *Tab) goTo(ctx context.Context, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, t.NavTimeout)
	defer cancel()

	if err := t.Page.Context(navCtx).Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := t.Page.Context(navCtx).WaitLoad(); err != nil {
		t.logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	// Documents that were already loading when the helper was registered
	// miss it.
	if _, err := t.Page.Context(navCtx).Eval(waypointJS); err != nil {
		return fmt.Errorf("browser: helper: %w", err)
	}
	return nil
}

// Listen delivers page events to b until ctx is cancelled. It blocks.
func (t *Tab) Listen(ctx context.Context, b Bindings) {
	t.mu.Lock()
	t.bindings = b
	t.mu.Unlock()

	t.Page.Context(ctx).EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name != bindingName {
				return
			}
			var msg struct {
				Op    string `json:"op"`
				Value string `json:"value"`
			}
			if err := json.Unmarshal([]byte(e.Payload), &msg); err != nil {
				t.logger.Warn("browser: parse binding payload", "error", err)
				return
			}
			t.dispatch(msg.Op, msg.Value)
		},
		func(e *proto.PageLoadEventFired) {
			t.dispatch("load", "")
		},
	)()
}

func (t *Tab) dispatch(op, value string) {
	t.mu.Lock()
	b := t.bindings
	t.mu.Unlock()

	switch op {
	case "action":
		if b.OnAction != nil {
			go b.OnAction(value)
		}
	case "viewport":
		if b.OnViewport != nil {
			go b.OnViewport()
		}
	case "load":
		if b.OnLoad != nil {
			go b.OnLoad()
		}
	default:
		t.logger.Debug("browser: unknown binding op", "op", op)
	}
}

// URL returns the current location.
func (t *Tab) URL(ctx context.Context) (*url.URL, error) {
	res, err := t.Page.Context(ctx).Eval(`() => location.href`)
	if err != nil {
		return nil, fmt.Errorf("browser: location: %w", err)
	}
	return url.Parse(res.Value.Str())
}

// Close stops request interception and closes the tab.
func (t *Tab) Close() error {
	if t.blocker != nil {
		if err := t.blocker.Stop(); err != nil {
			t.logger.Debug("browser: stop request interception", "error", err)
		}
		t.blocker = nil
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}

// evalJSON runs js, which must return a JSON string, and decodes it into v.
func evalJSON(ctx context.Context, page *rod.Page, v any, js string, args ...any) error {
	res, err := page.Context(ctx).Eval(js, args...)
	if err != nil {
		return err
	}
	return decodeJSON(res.Value.Str(), v)
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return fmt.Errorf("browser: empty result")
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("browser: decode %q: %w", s, err)
	}
	return nil
}
