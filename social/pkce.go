package social

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// newCodeVerifier returns a 43 character verifier (RFC 7636 4.1)
func newCodeVerifier() (string, error) {
	return randomString(32)
}

func codeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
