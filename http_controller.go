package auth

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-router"
)

// Reply messages
const (
	MessageLoggedIn   = "Logged in successfully"
	MessageRegistered = "Registered successfully"
	MessageLoggedOut  = "Logged out successfully"
)

// LoginPayload is what RouteAuthenticator.Login needs from a request
type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

// RouteRegistrar captures the router methods used to mount handlers
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// RegisterAuthRoutes mounts the session routes on app
func RegisterAuthRoutes(app RouteRegistrar, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost)
	app.Post(controller.Routes.Signup, controller.SignupPost)

	app.Post(controller.Routes.Logout, controller.LogoutPost,
		controller.Auther.RequiredSession(controller.Lookups.Required),
	)

	app.Get(controller.Routes.Profile, controller.ProfileGet,
		controller.Auther.RequiredSession(controller.Lookups.Required),
	)

	app.Get(controller.Routes.Session, controller.SessionGet,
		controller.Auther.OptionalSession(controller.Lookups.Optional),
	)

	return controller
}

type AuthControllerRoutes struct {
	Login   string
	Signup  string
	Logout  string
	Profile string
	Session string
}

// AuthControllerLookups holds the token lookup used by each route group.
// Empty values derive from the session cookie name.
type AuthControllerLookups struct {
	Required string
	Optional string
}

type AuthController struct {
	Logger  Logger
	Routes  *AuthControllerRoutes
	Lookups *AuthControllerLookups
	Auther  *RouteAuthenticator
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerLogger sets the controller logger
func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(l)
		return c
	}
}

// WithRouteAuthenticator sets the session glue used by the handlers
func WithRouteAuthenticator(a *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = a
		return c
	}
}

// WithTokenLookups overrides the credential sources per route group
func WithTokenLookups(required, optional string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if required != "" {
			c.Lookups.Required = required
		}
		if optional != "" {
			c.Lookups.Optional = optional
		}
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defaultLogger(),
		Routes: &AuthControllerRoutes{
			Login:   "/login",
			Signup:  "/signup",
			Logout:  "/logout",
			Profile: "/profile",
			Session: "/session",
		},
		Lookups: &AuthControllerLookups{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	if c.Lookups.Required == "" {
		c.Lookups.Required = LookupCookie(c.Auther.CookieName())
	}
	if c.Lookups.Optional == "" {
		c.Lookups.Optional = LookupCookieOrHeader(c.Auther.CookieName())
	}

	return c
}

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Username
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(c router.Context) error {
	payload := new(LoginRequest)

	if err := c.Bind(payload); err != nil {
		a.Logger.Warn("login parse payload", "error", err)
		return a.Auther.ErrorHandler(c, Wrap(err, ErrInvalidPayload))
	}

	// a malformed login reads the same as a wrong password
	if err := payload.Validate(); err != nil {
		return a.Auther.ErrorHandler(c, ErrInvalidCredentials)
	}

	if err := a.Auther.Login(c, payload); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}

	return c.JSON(router.StatusOK, map[string]string{"message": MessageLoggedIn})
}

// SignupPayload is the registration body
type SignupPayload struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
	Name     string `form:"name" json:"name"`
	Email    string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r SignupPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 72)),
		validation.Field(&r.Name, validation.Length(0, 200)),
		validation.Field(&r.Email, validation.Length(0, 320), is.Email),
	)
}

func (a *AuthController) SignupPost(c router.Context) error {
	payload := new(SignupPayload)

	if err := c.Bind(payload); err != nil {
		a.Logger.Warn("signup parse payload", "error", err)
		return a.Auther.ErrorHandler(c, Wrap(err, ErrInvalidPayload))
	}

	if err := payload.Validate(); err != nil {
		return a.Auther.ErrorHandler(c, Decorate(ErrInvalidPayload, map[string]any{
			"validation": FormatValidationErrorToMap(err),
		}))
	}

	err := a.Auther.Signup(c, SignupRequest{
		LoginName:   payload.Username,
		Password:    payload.Password,
		DisplayName: payload.Name,
		Email:       payload.Email,
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			conflict := Decorate(ErrConflict, map[string]any{"field": "username"})
			conflict.Message = "Username already exists"
			return a.Auther.ErrorHandler(c, conflict)
		}
		return a.Auther.ErrorHandler(c, err)
	}

	return c.JSON(router.StatusOK, map[string]string{"message": MessageRegistered})
}

func (a *AuthController) LogoutPost(c router.Context) error {
	if err := a.Auther.Logout(c); err != nil {
		return a.Auther.ErrorHandler(c, err)
	}
	return c.JSON(router.StatusOK, map[string]string{"message": MessageLoggedOut})
}

// ProfileResponse exposes only the display fields
type ProfileResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (a *AuthController) ProfileGet(c router.Context) error {
	account, err := a.Auther.Profile(c)
	if err != nil {
		return a.Auther.ErrorHandler(c, err)
	}
	return c.JSON(router.StatusOK, ProfileResponse{
		Name:  account.DisplayName,
		Email: account.Email,
	})
}

// SessionResponse tells guest-capable clients who they are
type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	AccountID     string `json:"account_id,omitempty"`
}

func (a *AuthController) SessionGet(c router.Context) error {
	p, _ := GetRouterPrincipal(c, a.Auther.contextKey())
	return c.JSON(router.StatusOK, SessionResponse{
		Authenticated: p.IsAuthenticated(),
		AccountID:     p.AccountID,
	})
}

// FormatValidationErrorToMap flattens ozzo validation errors by field
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		out["form"] = err.Error()
		return out
	}

	for field, ferr := range verrs {
		if ferr == nil {
			continue
		}
		out[strings.ToLower(field)] = ferr.Error()
	}
	return out
}
