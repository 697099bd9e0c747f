// Package config loads the runtime settings of the sessionauth service.
// Sources are layered: built in defaults, an optional YAML file, the
// environment, then command line flags.
package config

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	auth "github.com/goliatone/go-session-auth"
	"github.com/goliatone/go-session-auth/persistence"
)

// Config is the root of the service configuration
type Config struct {
	Server   Server   `koanf:"server"`
	Auth     Auth     `koanf:"auth"`
	Database Database `koanf:"database"`
	Redis    Redis    `koanf:"redis"`
	OAuth    OAuth    `koanf:"oauth"`
	Log      Log      `koanf:"log"`
}

// Server holds the HTTP listener settings
type Server struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MetricsEnabled  bool          `koanf:"metrics_enabled"`
}

// Auth holds the session core settings. It implements auth.Config.
type Auth struct {
	SigningKey     string        `koanf:"signing_key"`
	SigningMethod  string        `koanf:"signing_method"`
	TokenTTL       time.Duration `koanf:"token_ttl"`
	Issuer         string        `koanf:"issuer"`
	Audience       []string      `koanf:"audience"`
	CookieName     string        `koanf:"cookie_name"`
	CookieSecure   bool          `koanf:"cookie_secure"`
	CookieSameSite string        `koanf:"cookie_same_site"`
	ContextKey     string        `koanf:"context_key"`
	PasswordCost   int           `koanf:"password_cost"`
}

var _ auth.Config = Auth{}

func (a Auth) GetSigningKey() string      { return a.SigningKey }
func (a Auth) GetSigningMethod() string   { return a.SigningMethod }
func (a Auth) GetTokenTTL() time.Duration { return a.TokenTTL }
func (a Auth) GetIssuer() string          { return a.Issuer }
func (a Auth) GetAudience() []string      { return a.Audience }
func (a Auth) GetCookieName() string      { return a.CookieName }
func (a Auth) GetCookieSecure() bool      { return a.CookieSecure }
func (a Auth) GetCookieSameSite() string  { return a.CookieSameSite }
func (a Auth) GetContextKey() string      { return a.ContextKey }
func (a Auth) GetPasswordCost() int       { return a.PasswordCost }

// Database holds the connection settings. It implements persistence.Config.
// Migrate applies the goose migrations at startup instead of creating the
// schema from the bun model.
type Database struct {
	Driver      string        `koanf:"driver"`
	DSN         string        `koanf:"dsn"`
	Debug       bool          `koanf:"debug"`
	PingTimeout time.Duration `koanf:"ping_timeout"`
	Migrate     bool          `koanf:"migrate"`
}

var _ persistence.Config = Database{}

func (d Database) GetDriver() string             { return d.Driver }
func (d Database) GetDSN() string                { return d.DSN }
func (d Database) GetDebug() bool                { return d.Debug }
func (d Database) GetPingTimeout() time.Duration { return d.PingTimeout }

// Redis configures the store used to reject replayed OAuth states. An
// empty address disables it.
type Redis struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// Enabled reports whether a redis address is configured
func (r Redis) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// OAuth holds the federated login settings
type OAuth struct {
	StateEncryptionKey string        `koanf:"state_encryption_key"`
	StateHMACKey       string        `koanf:"state_hmac_key"`
	StateTTL           time.Duration `koanf:"state_ttl"`
	FallbackRedirect   string        `koanf:"fallback_redirect"`
	Google             Provider      `koanf:"google"`
}

// Provider holds one OAuth client registration
type Provider struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	CallbackURL  string `koanf:"callback_url"`
	Prompt       string `koanf:"prompt"`
}

// Enabled reports whether the provider has client credentials
func (p Provider) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// Log configures the glog root logger
type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate checks the loaded configuration
func (c Config) Validate() error {
	return validation.Errors{
		"server":   c.Server.Validate(),
		"auth":     c.Auth.Validate(),
		"database": c.Database.Validate(),
		"oauth":    c.OAuth.Validate(),
		"log":      c.Log.Validate(),
	}.Filter()
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
	)
}

func (a Auth) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&a.SigningMethod, validation.In("HS256", "HS384", "HS512")),
		validation.Field(&a.TokenTTL, validation.Required),
		validation.Field(&a.CookieName, validation.Required),
		validation.Field(&a.CookieSameSite, validation.In("strict", "lax", "none")),
		validation.Field(&a.PasswordCost, validation.Min(4), validation.Max(31)),
	)
}

func (d Database) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(
			persistence.DriverSQLite,
			persistence.DriverPostgres,
			persistence.DriverMySQL,
		)),
		validation.Field(&d.DSN, validation.Required),
	)
}

func (o OAuth) Validate() error {
	if !o.Google.Enabled() {
		return nil
	}
	return validation.ValidateStruct(&o,
		validation.Field(&o.StateEncryptionKey, validation.Required, validation.By(aesKeyLength)),
		validation.Field(&o.StateHMACKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&o.Google, validation.By(func(any) error {
			return validation.ValidateStruct(&o.Google,
				validation.Field(&o.Google.CallbackURL, validation.Required, is.URL),
				validation.Field(&o.Google.Prompt, validation.In("none", "consent", "select_account")),
			)
		})),
	)
}

func (l Log) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("trace", "debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("json", "text")),
	)
}

func aesKeyLength(value any) error {
	s, _ := value.(string)
	switch len(s) {
	case 16, 24, 32:
		return nil
	}
	return errors.New("must be 16, 24 or 32 bytes long")
}
