package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-logger/glog"
)

// Logger is the logging contract used across the package. Arguments after
// the message are key/value pairs.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetTokenTTL() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetCookieName() string
	GetCookieSecure() bool
	GetCookieSameSite() string
	GetContextKey() string
	GetPasswordCost() int
}

// AccountStore is the narrow persistence contract the session core needs.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByLoginName(ctx context.Context, loginName string) (*Account, error)
	FindByExternalIdentity(ctx context.Context, externalIdentity string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, account *Account) (*Account, error)
	CreateIfAbsent(ctx context.Context, account *Account) (bool, error)
	AttachExternalIdentity(ctx context.Context, id, externalIdentity string) (bool, error)
	SetSession(ctx context.Context, id, sessionID string, expiry, lastSeen time.Time) error
	InvalidateSession(ctx context.Context, id string) error
}

// Authenticator is the session core as seen by the HTTP layer
type Authenticator interface {
	Login(ctx context.Context, loginName, password string) (*Session, error)
	Signup(ctx context.Context, req SignupRequest) (*Session, error)
	FederatedLogin(ctx context.Context, profile FederatedProfile) (*Session, error)
	Logout(ctx context.Context, accountID string) error
	Profile(ctx context.Context, accountID string) (*Account, error)
	Verify(ctx context.Context, raw string) (Principal, error)
	VerifyOptional(ctx context.Context, raw string) (Principal, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Clock returns the current time. Tests replace it to move sessions
// across their expiry boundary.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// defaultLogger is used when no Logger is configured
func defaultLogger() Logger {
	return glog.NewLogger(glog.WithName("auth")).GetLogger("auth")
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defaultLogger()
	}
	return l
}
