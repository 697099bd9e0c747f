package social

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testEncKey  = []byte("0123456789abcdef0123456789abcdef")
	testHMACKey = []byte("fedcba9876543210fedcba9876543210")
)

func newCodec(t *testing.T, now func() time.Time) *SealedStateCodec {
	t.Helper()
	codec, err := NewStateCodec(testEncKey, testHMACKey)
	require.NoError(t, err)
	return codec.WithClock(now)
}

func TestStateCodecRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	codec := newCodec(t, func() time.Time { return now })

	state := State{
		Nonce:    "n-1",
		Provider: "google",
		Verifier: "verifier",
		Redirect: "/courses",
		Expires:  now.Add(time.Minute).Unix(),
	}

	token, err := codec.Seal(state)
	require.NoError(t, err)
	assert.NotContains(t, token, "verifier")
	assert.NotContains(t, token, "=")

	opened, err := codec.Open(token)
	require.NoError(t, err)
	assert.Equal(t, state, opened)

	again, err := codec.Seal(state)
	require.NoError(t, err)
	assert.NotEqual(t, token, again, "every seal uses a fresh nonce")
}

func TestStateCodecExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	codec := newCodec(t, func() time.Time { return now })

	token, err := codec.Seal(State{Provider: "google", Expires: now.Add(time.Minute).Unix()})
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = codec.Open(token)
	assert.ErrorIs(t, err, ErrStateExpired)
}

func TestStateCodecRejectsTampering(t *testing.T) {
	codec := newCodec(t, time.Now)

	token, err := codec.Seal(State{Provider: "google", Expires: time.Now().Add(time.Minute).Unix()})
	require.NoError(t, err)

	flipped := []byte(token)
	i := len(flipped) / 2
	if flipped[i] == 'A' {
		flipped[i] = 'B'
	} else {
		flipped[i] = 'A'
	}

	for _, bad := range []string{string(flipped), "not base64 at all!", "", token[:10]} {
		_, err = codec.Open(bad)
		assert.ErrorIs(t, err, ErrInvalidState, bad)
	}

	other, err := NewStateCodec(testEncKey, []byte(strings.Repeat("x", 32)))
	require.NoError(t, err)
	_, err = other.Open(token)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestNewStateCodecValidatesKeys(t *testing.T) {
	_, err := NewStateCodec([]byte("short"), testHMACKey)
	assert.Error(t, err)

	_, err = NewStateCodec(testEncKey, []byte("short"))
	assert.Error(t, err)
}

func TestCodeChallenge(t *testing.T) {
	// RFC 7636 appendix B
	assert.Equal(t,
		"E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		codeChallenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"),
	)

	v, err := newCodeVerifier()
	require.NoError(t, err)
	assert.Len(t, v, 43)
}
