// Package requestctx carries request-scoped identifiers on a context.Context
// so domain code can correlate its logs without depending on gin.
package requestctx

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userIDKey
)

func with(ctx context.Context, key ctxKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func get(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

// WithRequestID returns a context carrying the correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, requestIDKey, requestID)
}

// RequestID returns the correlation id, or "".
func RequestID(ctx context.Context) string {
	return get(ctx, requestIDKey)
}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return with(ctx, userIDKey, userID)
}

// UserID returns the authenticated user id, or "".
func UserID(ctx context.Context) string {
	return get(ctx, userIDKey)
}
