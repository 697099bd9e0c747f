package auth

import (
	"context"
	"errors"
	"strings"
)

// Rejection reasons attached to ErrUnauthorized and ErrForbidden metadata
const (
	ReasonMissing        = "missing"
	ReasonExpired        = "expired"
	ReasonSuperseded     = "superseded"
	ReasonAccountMissing = "account_missing"
	ReasonMalformed      = "malformed"
	ReasonTampered       = "tampered"
)

// Principal is the identity resolved for a request. Anonymous is set only
// by the optional verifier when no credential was presented.
type Principal struct {
	AccountID string `json:"account_id,omitempty"`
	Anonymous bool   `json:"anonymous"`
}

// AnonymousPrincipal is the guest identity
func AnonymousPrincipal() Principal {
	return Principal{Anonymous: true}
}

// IsAuthenticated reports whether the principal names an account
func (p Principal) IsAuthenticated() bool {
	return !p.Anonymous && p.AccountID != ""
}

// SessionVerifier checks a raw credential against the codec and the
// server side session state.
type SessionVerifier struct {
	tokens   TokenService
	accounts AccountStore
	clock    Clock
	logger   Logger
}

// SessionVerifierOption configures a SessionVerifier
type SessionVerifierOption func(*SessionVerifier)

// WithVerifierClock sets the clock used for the expiry comparison
func WithVerifierClock(c Clock) SessionVerifierOption {
	return func(v *SessionVerifier) {
		v.clock = c
	}
}

// WithVerifierLogger sets the logger
func WithVerifierLogger(l Logger) SessionVerifierOption {
	return func(v *SessionVerifier) {
		v.logger = normalizeLogger(l)
	}
}

// NewSessionVerifier returns a verifier
func NewSessionVerifier(tokens TokenService, accounts AccountStore, opts ...SessionVerifierOption) *SessionVerifier {
	v := &SessionVerifier{
		tokens:   tokens,
		accounts: accounts,
		logger:   defaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Verify is the required variant: an absent credential is Unauthorized.
func (v *SessionVerifier) Verify(ctx context.Context, raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, unauthorized(ReasonMissing)
	}

	cred, err := v.tokens.Verify(raw)
	if err != nil {
		return Principal{}, v.codecError(err)
	}

	account, err := v.accounts.FindByID(ctx, cred.AccountID)
	if err != nil {
		if IsNotFound(err) {
			v.logger.Info("session names an account no longer on file", "account_id", cred.AccountID)
			return Principal{}, unauthorized(ReasonAccountMissing)
		}
		v.logger.Error("session verifier account lookup failed", "account_id", cred.AccountID, "error", err)
		return Principal{}, storeError(err)
	}

	if !account.SessionLive(v.clock.now()) {
		return Principal{}, unauthorized(ReasonExpired)
	}

	if account.SessionID != cred.SessionID {
		return Principal{}, unauthorized(ReasonSuperseded)
	}

	return Principal{AccountID: account.ID.String()}, nil
}

// VerifyOptional tolerates only the absence of a credential, resolving it
// to the anonymous principal. Any presented credential is checked exactly
// as in Verify.
func (v *SessionVerifier) VerifyOptional(ctx context.Context, raw string) (Principal, error) {
	if strings.TrimSpace(raw) == "" {
		return AnonymousPrincipal(), nil
	}
	return v.Verify(ctx, raw)
}

func (v *SessionVerifier) codecError(err error) error {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return unauthorized(ReasonExpired)
	case errors.Is(err, ErrTokenMalformed):
		return Wrap(err, ErrForbidden).WithMetadata(map[string]any{"reason": ReasonMalformed})
	default:
		return Wrap(err, ErrForbidden).WithMetadata(map[string]any{"reason": ReasonTampered})
	}
}

func unauthorized(reason string) *Error {
	return Decorate(ErrUnauthorized, map[string]any{"reason": reason})
}

func storeError(err error) error {
	if errors.Is(err, ErrStore) {
		return err
	}
	return Wrap(err, ErrStore)
}
