package auth

import (
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-session-auth/middleware/jwtware"
)

// ValidationListener aliases the jwtware listener so consumers can use auth helpers directly.
type ValidationListener = jwtware.ValidationListener

// PrincipalListener adapts a callback on the resolved Principal to a
// ValidationListener. An error rejects the request.
func PrincipalListener(fn func(c router.Context, p Principal) error) ValidationListener {
	return func(c router.Context, principal any) error {
		p, _ := principal.(Principal)
		return fn(c, p)
	}
}

// RegisterValidationListeners appends listeners to a jwtware.Config in a safe, reusable way.
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}
