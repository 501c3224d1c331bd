// Package requestctx carries per-request values through context.
package requestctx

import "context"

// Identity is the verified caller of a request. The zero value is anonymous.
type Identity struct {
	Username  string
	FirstName string
	LastName  string
}

// Anonymous reports whether no user is authenticated.
func (i Identity) Anonymous() bool {
	return i.Username == ""
}

type identityContextKey struct{}

type requestIDContextKey struct{}

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext returns the caller identity, anonymous when absent.
func IdentityFromContext(ctx context.Context) Identity {
	if ctx == nil {
		return Identity{}
	}
	value, _ := ctx.Value(identityContextKey{}).(Identity)
	return value
}

// WithRequestID stores a correlation id in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the correlation id stored in context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey{}).(string)
	return value
}
