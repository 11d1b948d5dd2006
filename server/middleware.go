package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/waypoint/idgen"
	"github.com/hazyhaar/waypoint/kit"
)

type loggerKey struct{}

// apiHeaders are set on every response. The API only ever returns JSON, so
// nothing may be framed, sniffed or loaded from it.
var apiHeaders = [][2]string{
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store"},
}

// securityHeaders returns one chi SetHeader middleware per API header.
func securityHeaders() []func(http.Handler) http.Handler {
	mws := make([]func(http.Handler) http.Handler, 0, len(apiHeaders))
	for _, h := range apiHeaders {
		mws = append(mws, middleware.SetHeader(h[0], h[1]))
	}
	return mws
}

// RequestLogger tags each request with an ID, reusing X-Request-ID when
// the caller sent one, marks it as an HTTP call of the session and puts a
// request logger in the context.
func RequestLogger(base *slog.Logger, sessionID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = idgen.New()
			}
			w.Header().Set("X-Request-ID", id)

			ctx := kit.WithRequestID(r.Context(), id)
			ctx = kit.WithTransport(ctx, kit.TransportHTTP)
			ctx = kit.WithSessionID(ctx, sessionID)
			logger := base.With("request_id", id, "method", r.Method, "path", r.URL.Path)
			ctx = context.WithValue(ctx, loggerKey{}, logger)
			logger.Debug("server: request")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetLogger returns the request logger, or slog.Default.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
