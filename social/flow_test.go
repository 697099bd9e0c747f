package social

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-session-auth"
	"github.com/goliatone/go-session-auth/internal/config"
	"github.com/goliatone/go-session-auth/persistence"
)

func newStub() *stubProvider {
	return &stubProvider{
		name: "google",
		profile: &Profile{
			Subject:       "g-123",
			Email:         "G@Example.com ",
			EmailVerified: true,
			Name:          "G User",
		},
	}
}

func newFlow(t *testing.T, sessions SessionIssuer, opts ...FlowOption) *Flow {
	t.Helper()
	flow, err := NewFlow(sessions, FlowConfig{
		StateKey:    testEncKey,
		StateMACKey: testHMACKey,
		StateTTL:    time.Minute,
	}, opts...)
	require.NoError(t, err)
	return flow
}

func stateFrom(t *testing.T, redirect *Redirect) string {
	t.Helper()
	u, err := url.Parse(redirect.URL)
	require.NoError(t, err)
	assert.Equal(t, redirect.State, u.Query().Get("state"))
	assert.NotEmpty(t, u.Query().Get("code_challenge"))
	return redirect.State
}

func TestNewFlowRejectsBadKeys(t *testing.T) {
	_, err := NewFlow(&mockSessions{}, FlowConfig{StateKey: []byte("short"), StateMACKey: testHMACKey})
	assert.Error(t, err)

	_, err = NewFlow(&mockSessions{}, FlowConfig{}, WithStateCodec(newCodec(t, time.Now)))
	assert.NoError(t, err)
}

func TestCompletePassesVerifierAndProfile(t *testing.T) {
	ctx := context.Background()
	provider := newStub()
	sessions := &mockSessions{}
	sessions.On("FederatedLogin", mock.Anything, auth.FederatedProfile{
		Provider:         "google",
		ExternalIdentity: "g-123",
		DisplayName:      "G User",
		Email:            "g@example.com",
		EmailVerified:    true,
	}).Return(&auth.Session{Token: "tok", AccountID: "acc"}, nil)

	flow := newFlow(t, sessions, WithProvider(provider))

	redirect, err := flow.Begin(ctx, "google", "/after")
	require.NoError(t, err)

	result, err := flow.Complete(ctx, "google", "the-code", stateFrom(t, redirect))
	require.NoError(t, err)
	assert.Equal(t, "tok", result.Session.Token)
	assert.Equal(t, "/after", result.Redirect)
	assert.Equal(t, "google", result.Profile.Provider)
	assert.Equal(t, "the-code", provider.lastCode)
	assert.Equal(t, codeChallenge(provider.lastVerifier), provider.lastChallenge)
	sessions.AssertExpectations(t)
}

func TestBeginUsesDefaultsAndPrompt(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	provider := newStub()

	flow, err := NewFlow(&mockSessions{}, FlowConfig{
		StateKey:    testEncKey,
		StateMACKey: testHMACKey,
		Prompt:      "select_account",
	}, WithProvider(provider), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	redirect, err := flow.Begin(context.Background(), "google", "")
	require.NoError(t, err)
	assert.Equal(t, "select_account", provider.lastPrompt)
	assert.True(t, redirect.ExpiresAt.Equal(now.Add(DefaultStateTTL)))

	codec := newCodec(t, func() time.Time { return now })
	state, err := codec.Open(redirect.State)
	require.NoError(t, err)
	assert.Equal(t, "/", state.Redirect)
	assert.Equal(t, "google", state.Provider)
}

func TestCompleteRejectsExpiredState(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	flow := newFlow(t, &mockSessions{}, WithProvider(newStub()), WithClock(func() time.Time { return now }))

	redirect, err := flow.Begin(ctx, "google", "")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = flow.Complete(ctx, "google", "code", redirect.State)
	assert.ErrorIs(t, err, ErrStateExpired)
}

func TestCompleteRejectsProviderMismatch(t *testing.T) {
	ctx := context.Background()
	other := newStub()
	other.name = "other"

	flow := newFlow(t, &mockSessions{}, WithProvider(newStub()), WithProvider(other))

	redirect, err := flow.Begin(ctx, "google", "")
	require.NoError(t, err)

	_, err = flow.Complete(ctx, "other", "code", redirect.State)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, []string{"google", "other"}, flow.Providers())
}

func TestBeginUnknownProvider(t *testing.T) {
	flow := newFlow(t, &mockSessions{})

	_, err := flow.Begin(context.Background(), "nope", "")
	assert.ErrorIs(t, err, ErrProviderNotFound)
	assert.Equal(t, 404, auth.HTTPStatus(err))
}

func TestCompleteWithoutNonceStoreAllowsReplay(t *testing.T) {
	ctx := context.Background()
	sessions := &mockSessions{}
	sessions.On("FederatedLogin", mock.Anything, mock.Anything).Return(&auth.Session{Token: "tok"}, nil)

	flow := newFlow(t, sessions, WithProvider(newStub()))

	redirect, err := flow.Begin(ctx, "google", "")
	require.NoError(t, err)

	for range 2 {
		_, err = flow.Complete(ctx, "google", "code", redirect.State)
		require.NoError(t, err)
	}
	sessions.AssertNumberOfCalls(t, "FederatedLogin", 2)
}

func TestCompleteWrapsProviderErrors(t *testing.T) {
	ctx := context.Background()
	provider := newStub()
	provider.userInfoErr = &ProviderError{Provider: "google", Operation: "user_info", Status: 401, Code: "invalid_token"}

	flow := newFlow(t, &mockSessions{}, WithProvider(provider))
	redirect, err := flow.Begin(ctx, "google", "")
	require.NoError(t, err)

	_, err = flow.Complete(ctx, "google", "code", redirect.State)
	require.ErrorIs(t, err, ErrUserInfoFailed)

	rich := auth.AsError(err)
	assert.Equal(t, "user_info", rich.Metadata["operation"])
	assert.Equal(t, 401, rich.Metadata["status"])
	assert.Equal(t, "invalid_token", rich.Metadata["provider_code"])

	var perr *ProviderError
	assert.ErrorAs(t, err, &perr)
}

// TestFederatedCallbacksConverge runs two complete flows for the same
// provider identity against the real session core.
func TestFederatedCallbacksConverge(t *testing.T) {
	ctx := context.Background()

	db, err := persistence.Open(ctx, config.Database{Driver: persistence.DriverSQLite, DSN: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := auth.NewRepositoryManager(db)
	require.NoError(t, repo.EnsureSchema(ctx))

	auther := auth.NewAuthenticator(repo.Accounts(), config.Auth{
		SigningKey:    "0123456789abcdef0123456789abcdef",
		SigningMethod: "HS256",
		TokenTTL:      24 * time.Hour,
		PasswordCost:  4,
	})

	_, client := newTestRedis(t)
	flow := newFlow(t, auther, WithProvider(newStub()), WithNonceStore(NewRedisNonceStore(client, "")))

	login := func() *Result {
		redirect, err := flow.Begin(ctx, "google", "")
		require.NoError(t, err)
		result, err := flow.Complete(ctx, "google", "code", redirect.State)
		require.NoError(t, err)
		return result
	}

	first := login()
	second := login()
	assert.Equal(t, first.Session.AccountID, second.Session.AccountID)

	account, err := repo.Accounts().FindByExternalIdentity(ctx, "google:g-123")
	require.NoError(t, err)
	assert.Equal(t, first.Session.AccountID, account.ID.String())
	assert.Equal(t, "g@example.com", account.Email)

	p, err := auther.Verify(ctx, second.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), p.AccountID)
}
