package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// LocalResolver maps a login name and secret to an account.
type LocalResolver struct {
	accounts AccountStore
	hasher   PasswordAuthenticator
	logger   Logger

	dummyOnce   sync.Once
	dummyDigest string
}

// LocalResolverOption configures a LocalResolver
type LocalResolverOption func(*LocalResolver)

// WithLocalHasher overrides the password hasher
func WithLocalHasher(h PasswordAuthenticator) LocalResolverOption {
	return func(r *LocalResolver) {
		if h != nil {
			r.hasher = h
		}
	}
}

// WithLocalLogger sets the logger
func WithLocalLogger(l Logger) LocalResolverOption {
	return func(r *LocalResolver) {
		r.logger = normalizeLogger(l)
	}
}

// NewLocalResolver returns a resolver using bcrypt at the default cost
func NewLocalResolver(accounts AccountStore, opts ...LocalResolverOption) *LocalResolver {
	r := &LocalResolver{
		accounts: accounts,
		hasher:   NewBcryptHasher(DefaultPasswordCost),
		logger:   defaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve returns the account for loginName when secret matches its digest.
// Every failure, including an unknown name, is ErrInvalidCredentials.
func (r *LocalResolver) Resolve(ctx context.Context, loginName, secret string) (*Account, error) {
	loginName = strings.TrimSpace(loginName)

	account, err := r.accounts.FindByLoginName(ctx, loginName)
	if err != nil {
		if !IsNotFound(err) {
			r.logger.Error("local resolver lookup failed", "error", err)
			return nil, storeError(err)
		}
		// burn the same bcrypt work as a real comparison
		_ = r.hasher.ComparePasswordAndHash(secret, r.dummy())
		return nil, Decorate(ErrInvalidCredentials, map[string]any{"reason": "unknown_login"})
	}

	if !account.HasLocalLogin() {
		_ = r.hasher.ComparePasswordAndHash(secret, r.dummy())
		return nil, Decorate(ErrInvalidCredentials, map[string]any{"reason": "no_local_login"})
	}

	if err := r.hasher.ComparePasswordAndHash(secret, account.PasswordDigest); err != nil {
		return nil, Wrap(err, ErrInvalidCredentials).WithMetadata(map[string]any{"reason": "mismatch"})
	}

	return account, nil
}

func (r *LocalResolver) dummy() string {
	r.dummyOnce.Do(func() {
		if digest, err := r.hasher.HashPassword(uuid.NewString()); err == nil {
			r.dummyDigest = digest
		} else {
			r.dummyDigest = RandomPasswordHash()
		}
	})
	return r.dummyDigest
}
