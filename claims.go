package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims is the payload of a session credential. The only application
// claim is the account identifier; the token id binds the credential to the
// account's active session.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID string `json:"uid,omitempty"`
}

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// AccountID returns the account identifier, falling back to the subject
func (c *JWTClaims) AccountID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// SessionID returns the token id
func (c *JWTClaims) SessionID() string {
	return c.RegisteredClaims.ID
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// Credential is the decoded or freshly minted form of a session token.
type Credential struct {
	Token     string
	AccountID string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func credentialFromClaims(raw string, claims *JWTClaims) Credential {
	return Credential{
		Token:     raw,
		AccountID: claims.AccountID(),
		SessionID: claims.SessionID(),
		IssuedAt:  claims.IssuedAt(),
		ExpiresAt: claims.Expires(),
	}
}
