package auth

import (
	"context"
	"strings"
	"time"
)

// SignupRequest carries the attributes of a new local account
type SignupRequest struct {
	LoginName   string
	Password    string
	DisplayName string
	Email       string
}

// Auther ties the resolvers, the issuer and the verifier together. Every
// successful login path ends in IssueSession.
type Auther struct {
	accounts     AccountStore
	hasher       PasswordAuthenticator
	tokenService TokenService
	issuer       *SessionIssuer
	verifier     *SessionVerifier
	local        *LocalResolver
	federated    *FederatedResolver
	clock        Clock
	logger       Logger
	activitySink ActivitySink
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(accounts AccountStore, opts Config) *Auther {
	a := &Auther{
		accounts:     accounts,
		hasher:       NewBcryptHasher(opts.GetPasswordCost()),
		tokenService: NewTokenServiceFromConfig(opts),
		logger:       defaultLogger(),
		activitySink: noopActivitySink{},
	}
	a.rebuild(opts.GetTokenTTL())
	return a
}

func (s *Auther) rebuild(ttl time.Duration) {
	s.issuer = NewSessionIssuer(s.tokenService, s.accounts, ttl,
		WithIssuerClock(s.clock), WithIssuerLogger(s.logger))
	s.verifier = NewSessionVerifier(s.tokenService, s.accounts,
		WithVerifierClock(s.clock), WithVerifierLogger(s.logger))
	s.local = NewLocalResolver(s.accounts,
		WithLocalHasher(s.hasher), WithLocalLogger(s.logger))
	s.federated = NewFederatedResolver(s.accounts,
		WithFederatedLogger(s.logger))
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	s.rebuild(s.issuer.TTL())
	return s
}

// WithClock replaces the time source of the issuer and the verifier.
// The token service keeps its own clock.
func (s *Auther) WithClock(clock Clock) *Auther {
	s.clock = clock
	s.rebuild(s.issuer.TTL())
	return s
}

// WithTokenService replaces the credential codec
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
		s.rebuild(s.issuer.TTL())
	}
	return s
}

// WithPasswordHasher replaces the bcrypt hasher
func (s *Auther) WithPasswordHasher(h PasswordAuthenticator) *Auther {
	if h != nil {
		s.hasher = h
		s.rebuild(s.issuer.TTL())
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Verifier returns the session verifier
func (s *Auther) Verifier() *SessionVerifier {
	return s.verifier
}

// Login resolves a local account and issues a session for it
func (s *Auther) Login(ctx context.Context, loginName, password string) (*Session, error) {
	account, err := s.local.Resolve(ctx, loginName, password)
	if err != nil {
		s.logger.Warn("login failed", "login_name", loginName, "error", err)
		s.emit(ctx, ActivityEventLoginFailure, "", map[string]any{
			"login_name": loginName,
			"reason":     reasonOf(err),
		})
		return nil, err
	}

	session, err := s.issuer.IssueSession(ctx, account)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventLoginSuccess, session.AccountID, map[string]any{
		"login_name": loginName,
	})

	return session, nil
}

// Signup creates a local account and signs it in
func (s *Auther) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	loginName := strings.TrimSpace(req.LoginName)
	if loginName == "" {
		return nil, Decorate(ErrInvalidPayload, map[string]any{"field": "username"})
	}

	digest, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.Create(ctx, &Account{
		LoginName:      loginName,
		PasswordDigest: digest,
		DisplayName:    req.DisplayName,
		Email:          strings.TrimSpace(req.Email),
	})
	if err != nil {
		s.logger.Warn("signup failed", "login_name", loginName, "error", err)
		return nil, err
	}

	session, err := s.issuer.IssueSession(ctx, account)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account registered", "account_id", session.AccountID)
	s.emit(ctx, ActivityEventSignup, session.AccountID, map[string]any{
		"login_name": loginName,
	})

	return session, nil
}

// FederatedLogin resolves the provider profile to an account and issues a
// session of the same shape as Login.
func (s *Auther) FederatedLogin(ctx context.Context, profile FederatedProfile) (*Session, error) {
	account, err := s.federated.Resolve(ctx, profile)
	if err != nil {
		s.logger.Warn("federated login failed", "provider", profile.Provider, "error", err)
		s.emit(ctx, ActivityEventFederatedFailure, "", map[string]any{
			"provider": profile.Provider,
			"reason":   reasonOf(err),
		})
		return nil, err
	}

	session, err := s.issuer.IssueSession(ctx, account)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventFederatedLogin, session.AccountID, map[string]any{
		"provider": profile.Provider,
	})

	return session, nil
}

// Logout writes the epoch sentinel. Calling it again has no further effect.
func (s *Auther) Logout(ctx context.Context, accountID string) error {
	if err := s.accounts.InvalidateSession(ctx, accountID); err != nil {
		s.logger.Error("logout failed", "account_id", accountID, "error", err)
		return err
	}

	s.emit(ctx, ActivityEventLogout, accountID, nil)
	return nil
}

// Profile returns the account for an authenticated principal
func (s *Auther) Profile(ctx context.Context, accountID string) (*Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, storeError(err)
	}
	return account, nil
}

// Verify runs the required verifier and records rejections
func (s *Auther) Verify(ctx context.Context, raw string) (Principal, error) {
	p, err := s.verifier.Verify(ctx, raw)
	if err != nil {
		s.rejected(ctx, err)
	}
	return p, err
}

// VerifyOptional runs the optional verifier and records rejections
func (s *Auther) VerifyOptional(ctx context.Context, raw string) (Principal, error) {
	p, err := s.verifier.VerifyOptional(ctx, raw)
	if err != nil {
		s.rejected(ctx, err)
	}
	return p, err
}

func (s *Auther) rejected(ctx context.Context, err error) {
	s.emit(ctx, ActivityEventSessionRejected, "", map[string]any{
		"code":   AsError(err).TextCode,
		"reason": reasonOf(err),
	})
}

func (s *Auther) emit(ctx context.Context, eventType ActivityEventType, accountID string, metadata map[string]any) {
	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:  eventType,
		AccountID:  accountID,
		Metadata:   metadata,
		OccurredAt: s.clock.now(),
	})
}

func reasonOf(err error) string {
	if r := Reason(err); r != "" {
		return r
	}
	return AsError(err).TextCode
}
