package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the lifetime of a session credential
const DefaultTokenTTL = 24 * time.Hour

// ErrTokenExpired the credential is genuine but its embedded expiry elapsed
var ErrTokenExpired = NewSentinel("token is expired", goerrors.CategoryAuth, TextCodeTokenExpired)

// TokenService encodes and decodes session credentials
type TokenService interface {
	Issue(accountID string, ttl time.Duration) (Credential, error)
	Verify(raw string) (Credential, error)
}

// TokenServiceImpl implements the TokenService interface with HMAC signed JWTs
type TokenServiceImpl struct {
	signingKey    []byte
	signingMethod jwt.SigningMethod
	issuer        string
	audience      jwt.ClaimStrings
	clock         Clock
	logger        Logger
}

// TokenServiceOption configures a TokenServiceImpl
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock overrides the time source used to stamp and validate tokens
func WithTokenClock(c Clock) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.clock = c
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(l Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.logger = normalizeLogger(l)
	}
}

// WithSigningMethod selects one of the HMAC algorithms (HS256, HS384, HS512)
func WithSigningMethod(alg string) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if m, ok := jwt.GetSigningMethod(strings.ToUpper(alg)).(*jwt.SigningMethodHMAC); ok {
			ts.signingMethod = m
		}
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, issuer string, audience jwt.ClaimStrings, opts ...TokenServiceOption) *TokenServiceImpl {
	ts := &TokenServiceImpl{
		signingKey:    signingKey,
		signingMethod: jwt.SigningMethodHS256,
		issuer:        issuer,
		audience:      audience,
		logger:        defaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

// NewTokenServiceFromConfig builds a TokenService from Config
func NewTokenServiceFromConfig(cfg Config, opts ...TokenServiceOption) *TokenServiceImpl {
	base := []TokenServiceOption{WithSigningMethod(cfg.GetSigningMethod())}
	return NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		append(base, opts...)...,
	)
}

// Issue creates a credential for accountID that expires after ttl. Each
// credential gets a fresh token id.
func (ts *TokenServiceImpl) Issue(accountID string, ttl time.Duration) (Credential, error) {
	if accountID == "" {
		return Credential{}, NewSentinel("account id must not be empty", goerrors.CategoryInternal, TextCodeInternal)
	}

	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	// NumericDate has second precision, truncate so the persisted expiry
	// matches the embedded one exactly.
	now := ts.clock.now().Truncate(time.Second)
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   accountID,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID: accountID,
	}

	signed, err := jwt.NewWithClaims(ts.signingMethod, claims).SignedString(ts.signingKey)
	if err != nil {
		return Credential{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT").
			WithCode(http.StatusInternalServerError).
			WithTextCode(TextCodeInternal)
	}

	return credentialFromClaims(signed, claims), nil
}

// Verify parses raw and validates its signature and embedded expiry
func (ts *TokenServiceImpl) Verify(raw string) (Credential, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{ts.signingMethod.Alg()}),
		jwt.WithTimeFunc(ts.clock.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(raw, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Warn("token service verify encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Credential{}, Wrap(err, ErrTokenMalformed)
		case errors.Is(err, jwt.ErrTokenExpired):
			return Credential{}, Wrap(err, ErrTokenExpired)
		default:
			return Credential{}, Wrap(err, ErrTokenTampered)
		}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return Credential{}, ErrTokenTampered
	}

	if claims.AccountID() == "" {
		return Credential{}, Decorate(ErrTokenMalformed, map[string]any{"claim": "uid"})
	}

	return credentialFromClaims(raw, claims), nil
}
