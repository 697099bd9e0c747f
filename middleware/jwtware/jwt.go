package jwtware

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup = "header:" + router.HeaderAuthorization
	// ErrMissingToken no extractor found a credential
	ErrMissingToken = errors.New("missing or malformed JWT")
	// ErrMalformedHeader a header was presented but not in the configured
	// auth scheme. It counts as a presented credential, so it is never
	// treated as anonymous.
	ErrMalformedHeader = errors.New("malformed authorization header")
)

// VerifierFunc checks a raw credential and returns the resolved principal.
// It is called with an empty string when Optional is set and no credential
// was found. The returned value is opaque to this package.
type VerifierFunc func(ctx context.Context, raw string) (any, error)

// ValidationListener is invoked after a credential has been verified but
// before the next handler runs.
type ValidationListener func(c router.Context, principal any) error

type Config struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   func(router.Context, error) error
	ContextKey     string
	// TokenLookup is a comma separated list of source:name pairs, e.g.
	// "cookie:token,header:Authorization". Sources are tried in order.
	// "param:" sources only resolve when the middleware is mounted on the
	// route itself; app level middleware runs before route params exist.
	TokenLookup string
	AuthScheme  string
	// Verifier is required
	Verifier VerifierFunc
	// Optional lets requests without a credential through to Verifier with
	// an empty raw value instead of failing with ErrMissingToken.
	Optional bool

	// ContextEnricher propagates the principal to the request's context.
	ContextEnricher func(c context.Context, principal any) context.Context

	ValidationListeners []ValidationListener
}

func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		extractors := cfg.getExtractors()

		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := ExtractRawTokenFromContext(ctx, extractors)
			if err != nil {
				if !cfg.Optional || !errors.Is(err, ErrMissingToken) {
					return cfg.ErrorHandler(ctx, err)
				}
				raw = ""
			}

			principal, err := cfg.Verifier(ctx.Context(), raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if err := cfg.runValidationListeners(ctx, principal); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, principal)

			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), principal))
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

// ExtractRawTokenFromContext returns the first credential found by
// extractors. When none is found a malformed header wins over a missing one.
func ExtractRawTokenFromContext(ctx router.Context, extractors []JWTExtractor) (string, error) {
	err := ErrMissingToken
	for _, extractor := range extractors {
		raw, xerr := extractor(ctx)
		if raw != "" && xerr == nil {
			return raw, nil
		}
		if xerr != nil && !errors.Is(err, ErrMalformedHeader) {
			err = xerr
		}
	}
	return "", err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			if errors.Is(err, ErrMissingToken) {
				return c.Status(router.StatusUnauthorized).SendString(ErrMissingToken.Error())
			}
			return c.Status(router.StatusForbidden).SendString("Invalid or expired token")
		}
	}

	if cfg.Verifier == nil {
		panic("AUTH: JWT middleware configuration: Verifier is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "principal"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(ctx router.Context, principal any) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(ctx, principal); err != nil {
			return err
		}
	}
	return nil
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	// cookie:token,header:Authorization,query:auth_token,param:token
	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}

		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if name == "" {
			continue
		}

		switch source {
		case "header":
			extractors = append(extractors, jwtFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(name))
		case "param":
			extractors = append(extractors, jwtFromParam(name))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(name))
		}
	}

	return extractors
}

type JWTExtractor func(c router.Context) (string, error)

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c router.Context) (string, error) {
		a := strings.TrimSpace(c.Header(header))
		if a == "" {
			return "", ErrMissingToken
		}
		l := len(authScheme)
		if l == 0 {
			return a, nil
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			if token := strings.TrimSpace(a[l:]); token != "" {
				return token, nil
			}
		}
		return "", ErrMalformedHeader
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) JWTExtractor {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrMissingToken
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) JWTExtractor {
	return func(c router.Context) (string, error) {
		token := c.Param(param)
		if token == "" {
			return "", ErrMissingToken
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) JWTExtractor {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrMissingToken
		}
		return token, nil
	}
}
