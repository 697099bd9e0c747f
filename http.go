package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-router"

	"github.com/goliatone/go-session-auth/middleware/jwtware"
)

// LookupHeader is the bearer header token source
const LookupHeader = "header:" + router.HeaderAuthorization

// DefaultCookieName carries the credential
const DefaultCookieName = "token"

// SameSite cookie attribute values
const (
	SameSiteStrict = "Strict"
	SameSiteLax    = "Lax"
	SameSiteNone   = "None"
)

// LookupCookie returns the token source for the named session cookie
func LookupCookie(name string) string {
	return "cookie:" + name
}

// LookupCookieOrHeader tries the named session cookie before the bearer header
func LookupCookieOrHeader(name string) string {
	return LookupCookie(name) + "," + LookupHeader
}

type RouteAuthenticator struct {
	auth         Authenticator
	cfg          Config
	listeners    []ValidationListener
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) *RouteAuthenticator {
	a := &RouteAuthenticator{
		auth:   auther,
		cfg:    cfg,
		Logger: defaultLogger(),
	}
	a.ErrorHandler = a.defaultErrHandler
	return a
}

// WithLogger sets the logger
func (a *RouteAuthenticator) WithLogger(l Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(l)
	return a
}

// WithValidationListeners runs listeners after a session verified on every
// route guarded by this authenticator
func (a *RouteAuthenticator) WithValidationListeners(listeners ...ValidationListener) *RouteAuthenticator {
	a.listeners = append(a.listeners, listeners...)
	return a
}

// CookieName is the configured session cookie name
func (a *RouteAuthenticator) CookieName() string {
	if name := a.cfg.GetCookieName(); name != "" {
		return name
	}
	return DefaultCookieName
}

func (a *RouteAuthenticator) contextKey() string {
	if key := a.cfg.GetContextKey(); key != "" {
		return key
	}
	return DefaultContextKey
}

// RequiredSession rejects requests without a live session. An empty
// tokenLookup reads the session cookie only.
func (a *RouteAuthenticator) RequiredSession(tokenLookup string) router.MiddlewareFunc {
	if tokenLookup == "" {
		tokenLookup = LookupCookie(a.CookieName())
	}
	return a.protected(tokenLookup, false)
}

// OptionalSession lets requests without a credential through as the
// anonymous principal. A presented credential must still verify. An empty
// tokenLookup reads the session cookie, then the bearer header.
func (a *RouteAuthenticator) OptionalSession(tokenLookup string) router.MiddlewareFunc {
	if tokenLookup == "" {
		tokenLookup = LookupCookieOrHeader(a.CookieName())
	}
	return a.protected(tokenLookup, true)
}

func (a *RouteAuthenticator) protected(tokenLookup string, optional bool) router.MiddlewareFunc {
	verify := a.auth.Verify
	if optional {
		verify = a.auth.VerifyOptional
	}

	cfg := jwtware.Config{
		TokenLookup: tokenLookup,
		ContextKey:  a.contextKey(),
		Optional:    optional,
		Verifier: func(ctx context.Context, raw string) (any, error) {
			return verify(ctx, raw)
		},
		ContextEnricher: func(ctx context.Context, p any) context.Context {
			principal, _ := p.(Principal)
			return WithContext(ctx, principal)
		},
		ErrorHandler: func(c router.Context, err error) error {
			switch {
			case errors.Is(err, jwtware.ErrMalformedHeader):
				err = Decorate(ErrForbidden, map[string]any{"reason": ReasonMalformed})
			case errors.Is(err, jwtware.ErrMissingToken):
				err = unauthorized(ReasonMissing)
			}
			return a.ErrorHandler(c, err)
		},
	}
	RegisterValidationListeners(&cfg, a.listeners...)

	return jwtware.New(cfg)
}

// Login verifies the payload credentials and sets the session cookie
func (a *RouteAuthenticator) Login(c router.Context, payload LoginPayload) error {
	session, err := a.auth.Login(c.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		return err
	}
	a.SetSessionCookie(c, session)
	return nil
}

// Signup registers an account and sets the session cookie
func (a *RouteAuthenticator) Signup(c router.Context, req SignupRequest) error {
	session, err := a.auth.Signup(c.Context(), req)
	if err != nil {
		return err
	}
	a.SetSessionCookie(c, session)
	return nil
}

// FederatedLogin issues a session for a provider profile and sets the cookie
func (a *RouteAuthenticator) FederatedLogin(c router.Context, profile FederatedProfile) error {
	session, err := a.auth.FederatedLogin(c.Context(), profile)
	if err != nil {
		return err
	}
	a.SetSessionCookie(c, session)
	return nil
}

// Logout invalidates the current principal's session and clears the cookie
func (a *RouteAuthenticator) Logout(c router.Context) error {
	defer a.cookieDel(c, a.CookieName())

	p, ok := GetRouterPrincipal(c, a.contextKey())
	if !ok || !p.IsAuthenticated() {
		return nil
	}
	return a.auth.Logout(c.Context(), p.AccountID)
}

// Profile returns the account behind the current principal
func (a *RouteAuthenticator) Profile(c router.Context) (*Account, error) {
	p, ok := GetRouterPrincipal(c, a.contextKey())
	if !ok || !p.IsAuthenticated() {
		return nil, unauthorized(ReasonMissing)
	}
	return a.auth.Profile(c.Context(), p.AccountID)
}

// SetSessionCookie writes the credential cookie. It expires with the session.
func (a *RouteAuthenticator) SetSessionCookie(c router.Context, session *Session) {
	c.Cookie(&router.Cookie{
		Name:     a.CookieName(),
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: a.sameSite(),
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cfg.GetCookieSecure(),
		SameSite: a.sameSite(),
	})
}

func (a *RouteAuthenticator) sameSite() string {
	switch strings.ToLower(a.cfg.GetCookieSameSite()) {
	case "lax":
		return SameSiteLax
	case "none":
		return SameSiteNone
	default:
		return SameSiteStrict
	}
}

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	richErr := AsError(err)

	if richErr.Code >= http.StatusInternalServerError {
		a.Logger.Error(
			"request failed",
			"error", err,
			"path", c.OriginalURL(),
		)
	} else {
		a.Logger.Info(
			"request rejected",
			"text_code", richErr.TextCode,
			"reason", Reason(richErr),
			"path", c.OriginalURL(),
		)
	}

	return c.JSON(richErr.Code, ErrorResponse{
		Error: richErr.Message,
		Code:  richErr.TextCode,
	})
}
