package auth_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-session-auth"
)

func TestAccountJSONHidesSecrets(t *testing.T) {
	account := &auth.Account{
		ID:             uuid.New(),
		LoginName:      "alice",
		PasswordDigest: "$2a$04$secret",
		SessionID:      "sid",
		DisplayName:    "Alice",
	}

	raw, err := json.Marshal(account)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.NotContains(t, string(raw), "sid")
	assert.Contains(t, string(raw), `"name":"Alice"`)
}

func TestAccountSessionLive(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	var missing *auth.Account
	assert.False(t, missing.SessionLive(now))
	assert.False(t, missing.HasLocalLogin())

	account := &auth.Account{SessionExpiry: auth.SessionEpoch}
	assert.False(t, account.SessionLive(now))

	account.SessionExpiry = now.Add(time.Second)
	assert.True(t, account.SessionLive(now))
	assert.False(t, account.SessionLive(now.Add(time.Second)), "expiry is exclusive")
}
