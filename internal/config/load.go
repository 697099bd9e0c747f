package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Defaults are the values used when no other source sets a key. The signing
// key has no default.
func Defaults() map[string]any {
	return map[string]any{
		"server.addr":             ":8080",
		"server.shutdown_timeout": "10s",
		"server.metrics_enabled":  true,

		"auth.signing_method":   "HS256",
		"auth.token_ttl":        "24h",
		"auth.cookie_name":      "token",
		"auth.cookie_secure":    true,
		"auth.cookie_same_site": "strict",
		"auth.context_key":      "principal",
		"auth.password_cost":    10,

		"database.driver":       "sqlite",
		"database.dsn":          "file:sessionauth.db?cache=shared",
		"database.debug":        false,
		"database.ping_timeout": "5s",
		"database.migrate":      true,

		"redis.db": 0,

		"oauth.state_ttl":           "10m",
		"oauth.fallback_redirect":   "/",
		"oauth.google.callback_url": "http://localhost:8080/api/auth/google/callback",

		"log.level":  "info",
		"log.format": "json",
	}
}

// envKeys maps environment variables onto configuration keys
var envKeys = map[string]string{
	"HTTP_ADDR":            "server.addr",
	"JWT_SECRET":           "auth.signing_key",
	"COOKIE_SECURE":        "auth.cookie_secure",
	"DATABASE_DRIVER":      "database.driver",
	"DATABASE_DSN":         "database.dsn",
	"REDIS_ADDR":           "redis.addr",
	"REDIS_PASSWORD":       "redis.password",
	"OAUTH_STATE_KEY":      "oauth.state_encryption_key",
	"OAUTH_HMAC_KEY":       "oauth.state_hmac_key",
	"GOOGLE_CLIENT_ID":     "oauth.google.client_id",
	"GOOGLE_CLIENT_SECRET": "oauth.google.client_secret",
	"GOOGLE_CALLBACK_URL":  "oauth.google.callback_url",
	"LOG_LEVEL":            "log.level",
	"LOG_FORMAT":           "log.format",
}

// flagKeys maps command line flags onto configuration keys
var flagKeys = map[string]string{
	"addr":          "server.addr",
	"db-driver":     "database.driver",
	"db-dsn":        "database.dsn",
	"db-debug":      "database.debug",
	"redis-addr":    "redis.addr",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"cookie-secure": "auth.cookie_secure",
}

// Loader assembles a Config from its sources
type Loader struct {
	k       *koanf.Koanf
	flags   *pflag.FlagSet
	lookup  func(string) (string, bool)
	cfgFile string
}

// NewLoader returns a loader reading the process environment
func NewLoader() *Loader {
	return &Loader{
		k:      koanf.New("."),
		lookup: os.LookupEnv,
	}
}

// WithEnv replaces the environment lookup
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookup = lookup
	}
	return l
}

// FlagSet declares the command line flags understood by Load. The caller
// parses it.
func (l *Loader) FlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(&l.cfgFile, "config", "c", "", "path to a YAML configuration file")
	fs.String("addr", "", "HTTP listen address")
	fs.String("db-driver", "", "database driver: sqlite, postgres or mysql")
	fs.String("db-dsn", "", "database DSN")
	fs.Bool("db-debug", false, "log every SQL query")
	fs.String("redis-addr", "", "redis address used for OAuth state replay protection")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.String("log-format", "", "log format: json or text")
	fs.Bool("cookie-secure", true, "set the Secure flag on the session cookie")
	l.flags = fs
	return fs
}

// Load reads defaults, the YAML file, the environment and the parsed flags,
// in that order, and validates the result.
func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}

	if l.cfgFile != "" {
		if err := l.k.Load(file.Provider(l.cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: file %s: %w", l.cfgFile, err)
		}
	}

	if err := l.k.Load(confmap.Provider(l.environment(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	if l.flags != nil {
		provider := posflag.ProviderWithFlag(l.flags, ".", l.k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(l.flags, f)
		})
		if err := l.k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("config: flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := l.k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(errors.New("config: invalid configuration"), err)
	}

	return cfg, nil
}

// Koanf exposes the merged key space
func (l *Loader) Koanf() *koanf.Koanf {
	return l.k
}

func (l *Loader) environment() map[string]any {
	out := map[string]any{}
	// PORT is honoured for platforms that only hand out a port number
	if port, ok := l.lookup("PORT"); ok && port != "" {
		out["server.addr"] = ":" + strings.TrimPrefix(port, ":")
	}
	for env, key := range envKeys {
		if v, ok := l.lookup(env); ok && v != "" {
			out[key] = v
		}
	}
	return out
}

func (c *Config) normalize() {
	c.Auth.SigningMethod = strings.ToUpper(strings.TrimSpace(c.Auth.SigningMethod))
	c.Auth.CookieSameSite = strings.ToLower(strings.TrimSpace(c.Auth.CookieSameSite))
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}
