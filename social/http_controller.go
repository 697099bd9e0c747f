package social

import (
	"cmp"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"

	auth "github.com/goliatone/go-session-auth"
)

// SessionCookieWriter sets the session credential on the response
type SessionCookieWriter interface {
	SetSessionCookie(c router.Context, session *auth.Session)
}

// HTTPConfig configures the HTTP controller
type HTTPConfig struct {
	// StateCookieName binds the state to the browser that began the flow
	// (default "oauth_state")
	StateCookieName string
	CookieSecure    bool
	// FallbackRedirect receives failed callbacks with ?error=<text code>
	// (default "/")
	FallbackRedirect string
	Logger           auth.Logger
}

// HTTPController exposes a Flow over a router
type HTTPController struct {
	flow    *Flow
	cookies SessionCookieWriter
	logger  auth.Logger
	config  HTTPConfig
}

func NewHTTPController(flow *Flow, cookies SessionCookieWriter, cfg HTTPConfig) *HTTPController {
	cfg.StateCookieName = cmp.Or(cfg.StateCookieName, "oauth_state")
	cfg.FallbackRedirect = cmp.Or(cfg.FallbackRedirect, "/")

	logger := cfg.Logger
	if logger == nil {
		logger = glog.NewLogger(glog.WithName("social")).GetLogger("social:http")
	}

	return &HTTPController{
		flow:    flow,
		cookies: cookies,
		logger:  logger,
		config:  cfg,
	}
}

// RegisterRoutes mounts the provider list, the begin redirect and the
// callback under group.
func (c *HTTPController) RegisterRoutes(group auth.RouteRegistrar) {
	group.Get("/providers", c.Providers)
	group.Get("/:provider/callback", c.Callback)
	group.Get("/:provider", c.Begin)
}

func (c *HTTPController) Providers(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, map[string]any{"providers": c.flow.Providers()})
}

// Begin redirects to the provider consent page. An optional redirect_url
// query parameter must be a local path.
func (c *HTTPController) Begin(ctx router.Context) error {
	name := ctx.Param("provider")

	redirect, err := c.flow.Begin(ctx.Context(), name, localRedirect(ctx.Query("redirect_url")))
	if err != nil {
		rich := auth.AsError(err)
		c.logger.Warn("oauth begin failed", "provider", name, "text_code", rich.TextCode, "error", err)
		return ctx.JSON(rich.Code, auth.ErrorResponse{
			Error: rich.Message,
			Code:  rich.TextCode,
		})
	}

	c.stateCookie(ctx, redirect.State, redirect.ExpiresAt)
	return ctx.Redirect(redirect.URL, http.StatusFound)
}

// Callback completes the flow, sets the session cookie and answers the
// same body as a password login.
func (c *HTTPController) Callback(ctx router.Context) error {
	name := ctx.Param("provider")
	code, state := ctx.Query("code"), ctx.Query("state")
	bound := ctx.Cookies(c.config.StateCookieName)

	c.stateCookie(ctx, "", time.Now().Add(-time.Hour))

	switch {
	case ctx.Query("error") != "":
		return c.fail(ctx, name, auth.Decorate(ErrProviderDenied, map[string]any{"error": ctx.Query("error")}))
	case code == "" || state == "":
		return c.fail(ctx, name, auth.Decorate(ErrInvalidState, map[string]any{"reason": "missing_params"}))
	case bound != state:
		return c.fail(ctx, name, auth.Decorate(ErrInvalidState, map[string]any{"reason": "cookie_mismatch"}))
	}

	result, err := c.flow.Complete(ctx.Context(), name, code, state)
	if err != nil {
		return c.fail(ctx, name, err)
	}

	c.cookies.SetSessionCookie(ctx, result.Session)
	return ctx.JSON(router.StatusOK, map[string]string{
		"message":      auth.MessageLoggedIn,
		"redirect_url": result.Redirect,
	})
}

func (c *HTTPController) fail(ctx router.Context, provider string, err error) error {
	rich := auth.AsError(err)
	c.logger.Warn("oauth callback failed", "provider", provider, "text_code", rich.TextCode, "error", err)

	target, perr := url.Parse(c.config.FallbackRedirect)
	if perr != nil {
		target = &url.URL{Path: "/"}
	}
	q := target.Query()
	q.Set("error", rich.TextCode)
	target.RawQuery = q.Encode()

	return ctx.Redirect(target.String(), http.StatusFound)
}

// stateCookie is Lax so it survives the top level redirect back from the
// provider.
func (c *HTTPController) stateCookie(ctx router.Context, value string, expires time.Time) {
	ctx.Cookie(&router.Cookie{
		Name:     c.config.StateCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   c.config.CookieSecure,
		SameSite: auth.SameSiteLax,
	})
}

// localRedirect keeps only same-site paths
func localRedirect(raw string) string {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return ""
	}
	return raw
}
