package social

import (
	"context"
	"strings"
	"time"

	auth "github.com/goliatone/go-session-auth"
)

// Provider is one OAuth2 identity provider. The flow only needs the consent
// URL, the code exchange and the userinfo call.
type Provider interface {
	// Name is the route segment and the prefix of the external identity
	Name() string

	// AuthCodeURL returns the consent URL carrying state
	AuthCodeURL(state string, opts ...AuthCodeOption) string

	// Exchange trades an authorization code for an access token
	Exchange(ctx context.Context, code string, opts ...ExchangeOption) (*Token, error)

	// UserInfo fetches the profile the token grants access to
	UserInfo(ctx context.Context, token *Token) (*Profile, error)
}

// AuthCodeParams are the consent URL settings a provider applies
type AuthCodeParams struct {
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
	Prompt              string
}

// AuthCodeOption adjusts AuthCodeParams
type AuthCodeOption func(*AuthCodeParams)

// NewAuthCodeParams starts from the provider scopes and applies opts
func NewAuthCodeParams(scopes []string, opts ...AuthCodeOption) AuthCodeParams {
	p := AuthCodeParams{Scopes: append([]string(nil), scopes...)}
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}
	return p
}

// WithPKCE attaches an S256 code challenge
func WithPKCE(challenge string) AuthCodeOption {
	return func(p *AuthCodeParams) {
		p.CodeChallenge = challenge
		p.CodeChallengeMethod = "S256"
	}
}

// WithPrompt sets the prompt parameter, e.g. "select_account"
func WithPrompt(prompt string) AuthCodeOption {
	return func(p *AuthCodeParams) {
		p.Prompt = prompt
	}
}

// ExchangeParams are the token exchange settings a provider applies
type ExchangeParams struct {
	CodeVerifier string
}

// ExchangeOption adjusts ExchangeParams
type ExchangeOption func(*ExchangeParams)

// NewExchangeParams applies opts
func NewExchangeParams(opts ...ExchangeOption) ExchangeParams {
	var p ExchangeParams
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}
	return p
}

// WithCodeVerifier sends the PKCE verifier with the exchange
func WithCodeVerifier(verifier string) ExchangeOption {
	return func(p *ExchangeParams) {
		p.CodeVerifier = verifier
	}
}

// Token is the part of a token response the flow keeps. It is used once for
// the userinfo call and then discarded.
type Token struct {
	AccessToken string
	TokenType   string
	Expiry      time.Time
}

// Profile is the provider's view of the user
type Profile struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Federated converts the profile into the resolver input. The subject is
// scoped by provider when the resolver builds the external identity.
func (p *Profile) Federated() auth.FederatedProfile {
	if p == nil {
		return auth.FederatedProfile{}
	}
	return auth.FederatedProfile{
		Provider:         p.Provider,
		ExternalIdentity: strings.TrimSpace(p.Subject),
		DisplayName:      strings.TrimSpace(p.Name),
		Email:            strings.ToLower(strings.TrimSpace(p.Email)),
		EmailVerified:    p.EmailVerified,
	}
}
