package social

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"time"

	"github.com/goliatone/go-logger/glog"

	auth "github.com/goliatone/go-session-auth"
)

// SessionIssuer is the part of the session core the federated flow needs
type SessionIssuer interface {
	FederatedLogin(ctx context.Context, profile auth.FederatedProfile) (*auth.Session, error)
}

// FlowConfig configures a Flow
type FlowConfig struct {
	// DefaultRedirect is used when Begin gets no redirect (default "/")
	DefaultRedirect string
	StateKey        []byte
	StateMACKey     []byte
	StateTTL        time.Duration
	// Prompt is passed to every provider consent URL when set
	Prompt string
}

// Flow runs the authorization code flow with PKCE against registered
// providers and hands the resulting profile to the session core.
type Flow struct {
	providers map[string]Provider
	states    StateCodec
	nonces    NonceStore
	sessions  SessionIssuer
	logger    auth.Logger
	now       func() time.Time
	config    FlowConfig
}

// FlowOption configures a Flow
type FlowOption func(*Flow)

// NewFlow returns a flow issuing sessions through sessions. It fails when
// the state keys cannot build a codec and no WithStateCodec is given.
func NewFlow(sessions SessionIssuer, cfg FlowConfig, opts ...FlowOption) (*Flow, error) {
	cfg.StateTTL = cmp.Or(cfg.StateTTL, DefaultStateTTL)
	cfg.DefaultRedirect = cmp.Or(cfg.DefaultRedirect, "/")

	f := &Flow{
		providers: map[string]Provider{},
		nonces:    NoopNonceStore{},
		sessions:  sessions,
		logger:    glog.NewLogger(glog.WithName("social")).GetLogger("social"),
		now:       time.Now,
		config:    cfg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	if f.states == nil {
		codec, err := NewStateCodec(cfg.StateKey, cfg.StateMACKey)
		if err != nil {
			return nil, err
		}
		f.states = codec.WithClock(f.now)
	}
	return f, nil
}

// WithProvider registers p under p.Name()
func WithProvider(p Provider) FlowOption {
	return func(f *Flow) {
		if p != nil {
			f.providers[p.Name()] = p
		}
	}
}

func WithStateCodec(c StateCodec) FlowOption {
	return func(f *Flow) {
		f.states = c
	}
}

// WithNonceStore makes states single use
func WithNonceStore(ns NonceStore) FlowOption {
	return func(f *Flow) {
		if ns != nil {
			f.nonces = ns
		}
	}
}

func WithLogger(l auth.Logger) FlowOption {
	return func(f *Flow) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithClock overrides the time source used for state expiry
func WithClock(now func() time.Time) FlowOption {
	return func(f *Flow) {
		if now != nil {
			f.now = now
		}
	}
}

// Redirect is where Begin sends the browser
type Redirect struct {
	URL       string
	State     string
	Provider  string
	ExpiresAt time.Time
}

// Result is a completed federated login
type Result struct {
	Session  *auth.Session
	Provider string
	Profile  *Profile
	Redirect string
}

// Begin seals a fresh state for providerName and returns the consent URL.
// redirect is stored in the state and returned by Complete; empty means
// the configured default.
func (f *Flow) Begin(ctx context.Context, providerName, redirect string) (*Redirect, error) {
	provider, err := f.provider(providerName)
	if err != nil {
		return nil, err
	}

	verifier, err := newCodeVerifier()
	if err != nil {
		return nil, auth.Wrap(err, auth.ErrStore)
	}
	nonce, err := randomString(16)
	if err != nil {
		return nil, auth.Wrap(err, auth.ErrStore)
	}

	expires := f.now().Add(f.config.StateTTL)
	token, err := f.states.Seal(State{
		Nonce:    nonce,
		Provider: providerName,
		Verifier: verifier,
		Redirect: cmp.Or(redirect, f.config.DefaultRedirect),
		Expires:  expires.Unix(),
	})
	if err != nil {
		return nil, auth.Wrap(err, auth.ErrStore)
	}

	if err := f.nonces.Remember(ctx, nonce, f.config.StateTTL); err != nil {
		f.logger.Error("oauth nonce remember failed", "provider", providerName, "error", err)
		return nil, auth.Wrap(err, auth.ErrStore)
	}

	opts := []AuthCodeOption{WithPKCE(codeChallenge(verifier))}
	if f.config.Prompt != "" {
		opts = append(opts, WithPrompt(f.config.Prompt))
	}

	return &Redirect{
		URL:       provider.AuthCodeURL(token, opts...),
		State:     token,
		Provider:  providerName,
		ExpiresAt: expires,
	}, nil
}

// Complete checks the state, exchanges code and logs the profile in. Every
// callback for the same provider identity resolves to the same account.
func (f *Flow) Complete(ctx context.Context, providerName, code, token string) (*Result, error) {
	state, err := f.states.Open(token)
	if err != nil {
		return nil, err
	}
	if state.Provider != providerName {
		return nil, auth.Decorate(ErrInvalidState, map[string]any{"reason": "provider_mismatch"})
	}

	provider, err := f.provider(providerName)
	if err != nil {
		return nil, err
	}

	fresh, err := f.nonces.Consume(ctx, state.Nonce)
	if err != nil {
		f.logger.Error("oauth nonce consume failed", "provider", providerName, "error", err)
		return nil, auth.Wrap(err, auth.ErrStore)
	}
	if !fresh {
		return nil, ErrStateReplayed
	}

	tok, err := provider.Exchange(ctx, code, WithCodeVerifier(state.Verifier))
	if err != nil {
		return nil, providerFailure(ErrTokenExchangeFailed, providerName, "exchange", err)
	}

	profile, err := provider.UserInfo(ctx, tok)
	if err != nil {
		return nil, providerFailure(ErrUserInfoFailed, providerName, "user_info", err)
	}
	profile.Provider = cmp.Or(profile.Provider, providerName)

	session, err := f.sessions.FederatedLogin(ctx, profile.Federated())
	if err != nil {
		return nil, err
	}

	return &Result{
		Session:  session,
		Provider: providerName,
		Profile:  profile,
		Redirect: state.Redirect,
	}, nil
}

// Providers returns the registered provider names in order
func (f *Flow) Providers() []string {
	return slices.Sorted(maps.Keys(f.providers))
}

func (f *Flow) provider(name string) (Provider, error) {
	p, ok := f.providers[name]
	if !ok {
		return nil, auth.Decorate(ErrProviderNotFound, map[string]any{"provider": name})
	}
	return p, nil
}
