// Package ctxutil carries request scoped values through the fiber user context into the
// usecases, where the logger picks them up.
package ctxutil

import "context"

type ctxKey string

// RequestIDKey doubles as the fiber locals key set by the request id middleware.
const RequestIDKey ctxKey = "request_id"

func WithRequestID(ctx context.Context, reqID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, reqID)
}

// GetRequestID returns "" when the context carries no request id, as for sweeper cycles
// and relayed broker events.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(RequestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
