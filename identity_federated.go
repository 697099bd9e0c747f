package auth

import (
	"context"
	"strings"
)

// FederatedProfile is what an external identity provider asserted about
// the user after a successful callback.
type FederatedProfile struct {
	Provider         string
	ExternalIdentity string
	DisplayName      string
	Email            string
	EmailVerified    bool
}

// Key returns the provider scoped identity stored on the account
func (p FederatedProfile) Key() string {
	id := strings.TrimSpace(p.ExternalIdentity)
	if p.Provider == "" || id == "" {
		return id
	}
	return p.Provider + ":" + id
}

// FederatedResolver maps a provider profile to an account, creating one on
// first sight. It never rejects with not found.
type FederatedResolver struct {
	accounts AccountStore
	logger   Logger
}

// FederatedResolverOption configures a FederatedResolver
type FederatedResolverOption func(*FederatedResolver)

// WithFederatedLogger sets the logger
func WithFederatedLogger(l Logger) FederatedResolverOption {
	return func(r *FederatedResolver) {
		r.logger = normalizeLogger(l)
	}
}

// NewFederatedResolver returns a resolver over accounts
func NewFederatedResolver(accounts AccountStore, opts ...FederatedResolverOption) *FederatedResolver {
	r := &FederatedResolver{
		accounts: accounts,
		logger:   defaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve finds or creates the account bound to the profile's identity.
// Replayed or concurrent callbacks for one identity converge on one row.
func (r *FederatedResolver) Resolve(ctx context.Context, profile FederatedProfile) (*Account, error) {
	key := profile.Key()
	if key == "" {
		return nil, Decorate(ErrInvalidPayload, map[string]any{"field": "external_identity"})
	}

	account, err := r.accounts.FindByExternalIdentity(ctx, key)
	if err == nil {
		return account, nil
	}
	if !IsNotFound(err) {
		return nil, storeError(err)
	}

	if profile.EmailVerified && strings.TrimSpace(profile.Email) != "" {
		merged, err := r.merge(ctx, key, profile.Email)
		if err != nil {
			return nil, err
		}
		if merged != nil {
			return merged, nil
		}
	}

	record := &Account{
		ExternalIdentity: key,
		DisplayName:      profile.DisplayName,
		Email:            profile.Email,
	}

	created, err := r.accounts.CreateIfAbsent(ctx, record)
	if err != nil {
		return nil, storeError(err)
	}

	if created {
		r.logger.Info("federated resolver created account", "account_id", record.ID.String(), "provider", profile.Provider)
	}

	// the winner of a concurrent insert owns the identity
	account, err = r.accounts.FindByExternalIdentity(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			r.logger.Error("federated resolver lost account after insert", "external_identity", key)
		}
		return nil, storeError(err)
	}

	return account, nil
}

// merge attaches key to the account owning a verified email. It returns
// nil, nil when no such account exists.
func (r *FederatedResolver) merge(ctx context.Context, key, email string) (*Account, error) {
	existing, err := r.accounts.FindByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, storeError(err)
	}

	if existing.ExternalIdentity != "" {
		if existing.ExternalIdentity == key {
			return existing, nil
		}
		return nil, Decorate(ErrConflict, map[string]any{"reason": "email_bound"})
	}

	attached, err := r.accounts.AttachExternalIdentity(ctx, existing.ID.String(), key)
	if err != nil {
		return nil, err
	}

	if !attached {
		// someone bound an identity between our read and write
		again, err := r.accounts.FindByExternalIdentity(ctx, key)
		if err == nil {
			return again, nil
		}
		if IsNotFound(err) {
			return nil, Decorate(ErrConflict, map[string]any{"reason": "email_bound"})
		}
		return nil, storeError(err)
	}

	r.logger.Info("federated resolver linked identity to existing account", "account_id", existing.ID.String())
	existing.ExternalIdentity = key
	return existing, nil
}
