package auth

import (
	"context"
	"time"
)

// Session is the result of a successful issuance
type Session struct {
	Token     string
	AccountID string
	ExpiresAt time.Time
}

// SessionIssuer mints a credential for a resolved account and persists
// its expiry, replacing whatever session the account had before.
type SessionIssuer struct {
	tokens   TokenService
	accounts AccountStore
	ttl      time.Duration
	clock    Clock
	logger   Logger
}

// SessionIssuerOption configures a SessionIssuer
type SessionIssuerOption func(*SessionIssuer)

// WithIssuerClock sets the clock used for last_seen
func WithIssuerClock(c Clock) SessionIssuerOption {
	return func(s *SessionIssuer) {
		s.clock = c
	}
}

// WithIssuerLogger sets the logger
func WithIssuerLogger(l Logger) SessionIssuerOption {
	return func(s *SessionIssuer) {
		s.logger = normalizeLogger(l)
	}
}

// NewSessionIssuer returns an issuer; ttl <= 0 means DefaultTokenTTL
func NewSessionIssuer(tokens TokenService, accounts AccountStore, ttl time.Duration, opts ...SessionIssuerOption) *SessionIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	s := &SessionIssuer{
		tokens:   tokens,
		accounts: accounts,
		ttl:      ttl,
		logger:   defaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// IssueSession produces a new credential for account. Once it returns, the
// verifier accepts this credential for this account and rejects any
// credential issued earlier.
func (s *SessionIssuer) IssueSession(ctx context.Context, account *Account) (*Session, error) {
	if account == nil {
		return nil, ErrAccountNotFound
	}

	accountID := account.ID.String()

	cred, err := s.tokens.Issue(accountID, s.ttl)
	if err != nil {
		s.logger.Error("session issuer failed to mint credential", "account_id", accountID, "error", err)
		return nil, err
	}

	if err := s.accounts.SetSession(ctx, accountID, cred.SessionID, cred.ExpiresAt, s.clock.now()); err != nil {
		s.logger.Error("session issuer failed to persist session", "account_id", accountID, "error", err)
		return nil, err
	}

	account.SessionID = cred.SessionID
	account.SessionExpiry = cred.ExpiresAt

	return &Session{
		Token:     cred.Token,
		AccountID: accountID,
		ExpiresAt: cred.ExpiresAt,
	}, nil
}

// TTL returns the configured credential lifetime
func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}
