package social

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultStateTTL bounds the time between Begin and the callback
const DefaultStateTTL = 10 * time.Minute

// stateAAD binds sealed states to this use of the keys
var stateAAD = []byte("sessionauth/oauth-state/v1")

// State is carried through the provider in the state parameter. It holds
// the PKCE verifier, so it must never travel in clear text.
type State struct {
	Nonce    string `json:"n"`
	Provider string `json:"p"`
	Verifier string `json:"v"`
	Redirect string `json:"r,omitempty"`
	Expires  int64  `json:"e"`
}

// StateCodec turns a State into an opaque URL safe token and back
type StateCodec interface {
	Seal(state State) (string, error)
	Open(token string) (State, error)
}

// SealedStateCodec encrypts states with AES-GCM and signs the ciphertext
// with HMAC-SHA256 under a separate key. Token layout is
// mac || gcm nonce || ciphertext, base64url without padding.
type SealedStateCodec struct {
	aead   cipher.AEAD
	macKey []byte
	now    func() time.Time
}

var _ StateCodec = (*SealedStateCodec)(nil)

// NewStateCodec builds a codec. key must be 16, 24 or 32 bytes; macKey at
// least 32.
func NewStateCodec(key, macKey []byte) (*SealedStateCodec, error) {
	if len(macKey) < sha256.Size {
		return nil, fmt.Errorf("state mac key must be at least %d bytes", sha256.Size)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("state cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("state cipher: %w", err)
	}

	return &SealedStateCodec{
		aead:   aead,
		macKey: append([]byte(nil), macKey...),
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source used for expiry checks
func (c *SealedStateCodec) WithClock(now func() time.Time) *SealedStateCodec {
	if now != nil {
		c.now = now
	}
	return c
}

func (c *SealedStateCodec) Seal(state State) (string, error) {
	plaintext, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("state nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, stateAAD)
	return base64.RawURLEncoding.EncodeToString(append(c.mac(sealed), sealed...)), nil
}

// Open verifies, decrypts and checks the expiry of a token. Anything short
// of a valid live state is ErrInvalidState or ErrStateExpired.
func (c *SealedStateCodec) Open(token string) (State, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < sha256.Size+c.aead.NonceSize() {
		return State{}, ErrInvalidState
	}

	sum, sealed := raw[:sha256.Size], raw[sha256.Size:]
	if !hmac.Equal(sum, c.mac(sealed)) {
		return State{}, ErrInvalidState
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, stateAAD)
	if err != nil {
		return State{}, ErrInvalidState
	}

	var state State
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return State{}, ErrInvalidState
	}

	if !c.now().Before(time.Unix(state.Expires, 0)) {
		return State{}, ErrStateExpired
	}
	return state, nil
}

func (c *SealedStateCodec) mac(b []byte) []byte {
	h := hmac.New(sha256.New, c.macKey)
	h.Write(b)
	return h.Sum(nil)
}
