package kit

import "context"

// Transports a tour operation can arrive through.
const (
	TransportDirect = "direct" // in-process call
	TransportHTTP   = "http"
	TransportMCP    = "mcp"
	TransportPage   = "page" // popover button or page event
)

type contextKey int

const (
	transportKey contextKey = iota
	requestIDKey
	sessionIDKey
)

// WithTransport records which surface an operation came from.
func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, transportKey, t)
}

// GetTransport returns the transport of ctx, TransportDirect by default.
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(transportKey).(string); ok {
		return v
	}
	return TransportDirect
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithSessionID tags ctx with the tour session it acts on.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

func GetSessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}
