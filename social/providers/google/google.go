// Package google is the Google OAuth2 provider for the social flow. It uses
// the authorization code grant with PKCE and the OpenID userinfo endpoint.
package google

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/goliatone/go-session-auth/social"
)

// Name is the provider name and external identity prefix
const Name = "google"

const defaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Config holds the client registration. The endpoint URLs default to
// Google's and are overridden in tests.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string

	HTTPClient *http.Client
}

// DefaultScopes are the OpenID scopes needed for subject, name and email
func DefaultScopes() []string {
	return []string{"openid", "profile", "email"}
}

// Provider implements social.Provider for Google
type Provider struct {
	oauth       oauth2.Config
	userInfoURL string
	client      *http.Client
}

var _ social.Provider = (*Provider)(nil)

func New(cfg Config) *Provider {
	endpoint := endpoints.Google
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}

	p := &Provider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: cfg.UserInfoURL,
		client:      cfg.HTTPClient,
	}
	if p.userInfoURL == "" {
		p.userInfoURL = defaultUserInfoURL
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: 10 * time.Second}
	}
	return p
}

func (p *Provider) Name() string {
	return Name
}

// AuthCodeURL asks for online access only; sessions never use the
// provider's refresh token.
func (p *Provider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	params := social.NewAuthCodeParams(p.oauth.Scopes, opts...)

	oc := p.oauth
	oc.Scopes = params.Scopes

	extra := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	if params.CodeChallenge != "" {
		extra = append(extra,
			oauth2.SetAuthURLParam("code_challenge", params.CodeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", params.CodeChallengeMethod),
		)
	}
	if params.Prompt != "" {
		extra = append(extra, oauth2.SetAuthURLParam("prompt", params.Prompt))
	}
	return oc.AuthCodeURL(state, extra...)
}

func (p *Provider) Exchange(ctx context.Context, code string, opts ...social.ExchangeOption) (*social.Token, error) {
	var extra []oauth2.AuthCodeOption
	if v := social.NewExchangeParams(opts...).CodeVerifier; v != "" {
		extra = append(extra, oauth2.VerifierOption(v))
	}

	tok, err := p.oauth.Exchange(p.withClient(ctx), code, extra...)
	if err != nil {
		return nil, exchangeFailure(err)
	}

	return &social.Token{
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
		Expiry:      tok.Expiry,
	}, nil
}

func (p *Provider) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

func exchangeFailure(err error) error {
	perr := &social.ProviderError{Provider: Name, Operation: "exchange", Err: err}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.Response != nil {
			perr.Status = rerr.Response.StatusCode
		}
		perr.Code, perr.Detail = rerr.ErrorCode, rerr.ErrorDescription
		if perr.Code == "" && perr.Detail == "" {
			perr.Code, perr.Detail = parseError(rerr.Body)
		}
	}
	return perr
}
