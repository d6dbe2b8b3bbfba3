// Package callback signs and verifies queue-to-relay callbacks.
//
// Tokens use the QStash format: an HS256 JWT carried in the
// Upstash-Signature header, issued by "Upstash", whose subject is the
// destination URL and whose "body" claim is the base64url SHA-256 of the
// request body. Verification goes through the QStash SDK receiver. The SDK
// has no signer, so the self-hosted Redis worker signs here with the same
// format and both queue backends share one verification path.
package callback

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upstash/qstash-go"
)

const (
	// SignatureHeader carries the JWT
	SignatureHeader = "Upstash-Signature"

	// RetriedHeader carries how many times the message was already retried
	RetriedHeader = "Upstash-Retried"

	// MessageIDHeader carries the queue message ID
	MessageIDHeader = "Upstash-Message-Id"

	Issuer = "Upstash"

	defaultTTL    = 5 * time.Minute
	defaultLeeway = 30 * time.Second
)

var (
	ErrNoKeys           = errors.New("no callback signing keys configured")
	ErrMissingSignature = errors.New("missing Upstash-Signature header")
	ErrInvalidSignature = errors.New("invalid callback signature")
)

// Claims are the JWT claims of a callback token
type Claims struct {
	jwt.RegisteredClaims
	Body string `json:"body"`
}

// BodyHash returns the unpadded base64url SHA-256 of body
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Signer issues callback tokens
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSigner creates a signer for key. A zero ttl uses five minutes.
func NewSigner(key string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Signer{
		key: []byte(key),
		ttl: ttl,
		now: time.Now,
	}
}

// Sign returns a token binding url and body
func (s *Signer) Sign(url string, body []byte) (string, error) {
	if len(s.key) == 0 {
		return "", ErrNoKeys
	}
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   url,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
		Body: BodyHash(body),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signing callback token: %w", err)
	}
	return token, nil
}

// Receiver verifies callback tokens against the current key and, during rotation, the next key
type Receiver struct {
	sdk        *qstash.Receiver
	configured bool
	leeway     time.Duration
}

// NewReceiver creates a receiver. A single key fills both slots; an empty key is never used.
func NewReceiver(currentKey, nextKey string) *Receiver {
	if currentKey == "" {
		currentKey = nextKey
	}
	if nextKey == "" {
		nextKey = currentKey
	}
	return &Receiver{
		sdk:        qstash.NewReceiver(currentKey, nextKey),
		configured: currentKey != "",
		leeway:     defaultLeeway,
	}
}

// Configured reports whether at least one key is set
func (r *Receiver) Configured() bool {
	return r.configured
}

// Verify checks token against body. The subject is checked only when url is not empty.
func (r *Receiver) Verify(token string, body []byte, url string) error {
	if !r.Configured() {
		return ErrNoKeys
	}
	if token == "" {
		return ErrMissingSignature
	}

	err := r.sdk.Verify(qstash.VerifyOptions{
		Signature: token,
		Body:      string(body),
		Url:       url,
		Tolerance: r.leeway,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return nil
}
