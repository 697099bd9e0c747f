package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-session-auth"
)

func TestSignupTwiceConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.auther.Signup(ctx, auth.SignupRequest{LoginName: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.Token)

	_, err = h.auther.Signup(ctx, auth.SignupRequest{LoginName: "alice", Password: "other"})
	assert.ErrorIs(t, err, auth.ErrConflict)
	assert.Equal(t, 409, auth.AsError(err).Code)

	// the original account is untouched
	_, err = h.auther.Login(ctx, "alice", "pw")
	require.NoError(t, err)
}

func TestSignupRequiresLoginName(t *testing.T) {
	h := newHarness(t)

	_, err := h.auther.Signup(context.Background(), auth.SignupRequest{LoginName: "  ", Password: "pw"})
	assert.ErrorIs(t, err, auth.ErrInvalidPayload)
}

func TestSignupStoresDigestNotSecret(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := signup(t, h, "alice")

	account, err := h.auther.Profile(ctx, session.AccountID)
	require.NoError(t, err)
	assert.NotEqual(t, "pw-alice", account.PasswordDigest)
	assert.True(t, strings.HasPrefix(account.PasswordDigest, "$2"))
	assert.Equal(t, "ALICE", account.DisplayName)
	assert.Equal(t, "alice@example.com", account.Email)
}

func TestLoginRecordsActivity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := signup(t, h, "alice")

	_, err := h.auther.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	failure := h.sink.last()
	assert.Equal(t, auth.ActivityEventLoginFailure, failure.EventType)
	assert.Equal(t, "mismatch", failure.Metadata["reason"])
	assert.Empty(t, failure.AccountID)

	h.clock.Advance(time.Minute)
	_, err = h.auther.Login(ctx, "alice", "pw-alice")
	require.NoError(t, err)

	success := h.sink.last()
	assert.Equal(t, auth.ActivityEventLoginSuccess, success.EventType)
	assert.Equal(t, session.AccountID, success.AccountID)
	assert.True(t, success.OccurredAt.Equal(h.clock.Now()))

	require.NoError(t, h.auther.Logout(ctx, session.AccountID))

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventSignup,
		auth.ActivityEventLoginFailure,
		auth.ActivityEventLoginSuccess,
		auth.ActivityEventLogout,
	}, h.sink.types())
}

func TestLoginUpdatesLastSeen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := signup(t, h, "alice")

	h.clock.Advance(time.Hour)
	_, err := h.auther.Login(ctx, "alice", "pw-alice")
	require.NoError(t, err)

	account, err := h.auther.Profile(ctx, session.AccountID)
	require.NoError(t, err)
	require.NotNil(t, account.LastSeen)
	assert.True(t, account.LastSeen.Equal(h.clock.Now()))
	assert.True(t, account.SessionExpiry.Equal(h.clock.Now().Add(24*time.Hour)))
}

func TestFederatedLoginIssuesSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.auther.FederatedLogin(ctx, googleProfile("g-123"))
	require.NoError(t, err)
	second, err := h.auther.FederatedLogin(ctx, googleProfile("g-123"))
	require.NoError(t, err)

	assert.Equal(t, first.AccountID, second.AccountID)

	_, err = h.auther.Verify(ctx, first.Token)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	p, err := h.auther.Verify(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, second.AccountID, p.AccountID)

	types := h.sink.types()
	require.NotEmpty(t, types)
	assert.Contains(t, types, auth.ActivityEventFederatedLogin)
}

func TestFederatedLoginFailureRecorded(t *testing.T) {
	h := newHarness(t)

	_, err := h.auther.FederatedLogin(context.Background(), auth.FederatedProfile{Provider: "google"})
	require.ErrorIs(t, err, auth.ErrInvalidPayload)

	last := h.sink.last()
	assert.Equal(t, auth.ActivityEventFederatedFailure, last.EventType)
	assert.Equal(t, "google", last.Metadata["provider"])
}

func TestProfileUnknownAccount(t *testing.T) {
	h := newHarness(t)

	_, err := h.auther.Profile(context.Background(), "missing")
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
}

func TestAutherWithLoggerAndHasher(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	logs := &captureLogger{}
	h.auther.
		WithLogger(logs).
		WithPasswordHasher(auth.NewBcryptHasher(5))

	session := signup(t, h, "alice")
	account, err := h.auther.Profile(ctx, session.AccountID)
	require.NoError(t, err)
	assert.Contains(t, account.PasswordDigest, "$05$")

	entry, ok := logs.find("account registered")
	require.True(t, ok)
	assert.Equal(t, "info", entry.level)
	assert.Equal(t, session.AccountID, entry.attr("account_id"))

	_, err = h.auther.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	entry, ok = logs.find("login failed")
	require.True(t, ok)
	assert.Equal(t, "warn", entry.level)
	assert.Equal(t, "alice", entry.attr("login_name"))

	assert.Same(t, h.tokens, h.auther.TokenService())
	assert.NotNil(t, h.auther.Verifier())
}

func TestActivitySinkFailureDoesNotFailLogin(t *testing.T) {
	h := newHarness(t)
	h.auther.WithActivitySink(auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error {
		return assert.AnError
	}))

	_, err := h.auther.Signup(context.Background(), auth.SignupRequest{LoginName: "alice", Password: "pw"})
	assert.NoError(t, err)
}
