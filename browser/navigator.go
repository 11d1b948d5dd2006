package browser

import (
	"context"
	"fmt"

	"github.com/hazyhaar/waypoint/route"
)

func (t *Tab) CurrentPath(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => location.pathname`)
	if err != nil {
		return "", fmt.Errorf("browser: current path: %w", err)
	}
	return res.Value.Str(), nil
}

// Navigate moves the page to path. A hard navigation loads a new document
// and returns once it has loaded; a soft one pushes a history entry and
// lets the host router react to popstate.
func (t *Tab) Navigate(ctx context.Context, path string, mode route.Mode) error {
	if mode == route.Soft {
		_, err := t.Page.Context(ctx).Eval(`(p) => {
			history.pushState(null, '', p);
			dispatchEvent(new PopStateEvent('popstate', {state: null}));
		}`, path)
		if err != nil {
			return fmt.Errorf("browser: soft navigate %s: %w", path, err)
		}
		return nil
	}

	cur, err := t.URL(ctx)
	if err != nil {
		return err
	}
	target, err := resolveURL(cur.String(), path)
	if err != nil {
		return err
	}
	t.logger.Info("browser: hard navigation", "from", cur.String(), "to", target)
	return t.goTo(ctx, target)
}

// resolveURL resolves path against base, keeping the base origin.
func resolveURL(base, path string) (string, error) {
	b, err := parseURL(base)
	if err != nil {
		return "", err
	}
	ref, err := parseURL(path)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}
