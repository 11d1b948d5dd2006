package browser

import (
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockableTypes maps the names accepted in Config.ResourceBlocking to CDP
// resource types. Stylesheets and scripts are missing on purpose: without
// them targets move or never appear, and placements go wrong.
var blockableTypes = map[string]proto.NetworkResourceType{
	"images": proto.NetworkResourceTypeImage,
	"fonts":  proto.NetworkResourceTypeFont,
	"media":  proto.NetworkResourceTypeMedia,
}

// blockSet resolves names to resource types, dropping and logging the
// ones that cannot be blocked.
func blockSet(names []string, logger *slog.Logger) map[proto.NetworkResourceType]bool {
	set := make(map[proto.NetworkResourceType]bool, len(names))
	for _, n := range names {
		typ, ok := blockableTypes[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			logger.Warn("browser: resource type cannot be blocked during a tour", "type", n)
			continue
		}
		set[typ] = true
	}
	return set
}

// shouldBlock reports whether a request of resource type typ is dropped.
func shouldBlock(set map[proto.NetworkResourceType]bool, typ proto.NetworkResourceType) bool {
	return set[typ]
}

// blockResources intercepts the page requests and fails those whose type
// is in set. The returned router runs until stopped.
func blockResources(page *rod.Page, set map[proto.NetworkResourceType]bool) (*rod.HijackRouter, error) {
	router := page.HijackRequests()
	err := router.Add("*", "", func(h *rod.Hijack) {
		if shouldBlock(set, h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return nil, err
	}
	go router.Run()
	return router, nil
}
