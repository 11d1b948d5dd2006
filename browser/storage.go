package browser

import (
	"context"
	"fmt"
	"net/url"
)

// Get reads key from the page localStorage.
func (t *Tab) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var out struct {
		Found bool   `json:"found"`
		Value string `json:"value"`
	}
	err := evalJSON(ctx, t.Page, &out, `(k) => {
		const v = localStorage.getItem(k);
		return JSON.stringify({found: v !== null, value: v === null ? "" : v});
	}`, key)
	if err != nil {
		return nil, false, fmt.Errorf("browser: storage get %s: %w", key, err)
	}
	if !out.Found {
		return nil, false, nil
	}
	return []byte(out.Value), true, nil
}

// Set writes key to the page localStorage.
func (t *Tab) Set(ctx context.Context, key string, value []byte) error {
	if _, err := t.Page.Context(ctx).Eval(`(k, v) => localStorage.setItem(k, v)`, key, string(value)); err != nil {
		return fmt.Errorf("browser: storage set %s: %w", key, err)
	}
	return nil
}

// Delete removes key from the page localStorage.
func (t *Tab) Delete(ctx context.Context, key string) error {
	if _, err := t.Page.Context(ctx).Eval(`(k) => localStorage.removeItem(k)`, key); err != nil {
		return fmt.Errorf("browser: storage delete %s: %w", key, err)
	}
	return nil
}

func parseURL(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("browser: parse url %q: %w", s, err)
	}
	return u, nil
}
