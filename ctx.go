package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// DefaultContextKey is the router locals key the middleware stores the
// principal under
const DefaultContextKey = "principal"

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithContext sets the Principal in the given context
func WithContext(r context.Context, p Principal) context.Context {
	return context.WithValue(r, principalCtxKey, p)
}

// FromContext finds the principal from the context.
func FromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	raw, ok := ctx.Value(principalCtxKey).(Principal)
	return raw, ok
}

// GetRouterPrincipal extracts the Principal from router locals, falling back
// to the request context.
func GetRouterPrincipal(c router.Context, key string) (Principal, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	if p, ok := c.Locals(key).(Principal); ok {
		return p, true
	}
	return FromContext(c.Context())
}

// IsAuthenticated is a convenience check for route handlers that branch on
// guest vs signed in.
func IsAuthenticated(ctx context.Context) bool {
	p, ok := FromContext(ctx)
	return ok && p.IsAuthenticated()
}
