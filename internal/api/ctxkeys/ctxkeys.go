// Package ctxkeys holds the request context keys shared by middleware,
// handlers and the MCP surface. It is a leaf package to avoid import cycles.
package ctxkeys

import "context"

// Key is the named type for all API context keys.
type Key string

const (
	// BusinessID is the tenant of the authenticated caller.
	BusinessID Key = "business_id"

	// UserID is the authenticated user.
	UserID Key = "user_id"
)

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// String returns the non-empty string stored under key.
func String(ctx context.Context, key Key) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
