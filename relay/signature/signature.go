package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
)

const (
	// Version is the only signature scheme Zoom emits
	Version = "v0"

	// SignatureHeader carries "v0=<hex>"
	SignatureHeader = "x-zm-signature"

	// TimestampHeader carries the unix seconds used in the signed message
	TimestampHeader = "x-zm-request-timestamp"
)

var (
	ErrNoSecret         = errors.New("webhook secret token is not configured")
	ErrMissingSignature = errors.New("missing x-zm-signature header")
	ErrMissingTimestamp = errors.New("missing x-zm-request-timestamp header")
	ErrInvalidSignature = errors.New("signature mismatch")
)

/* Policy decides what happens when no secret is configured
 * A configured secret always makes verification mandatory
 */
type Policy int

const (
	Required Policy = iota + 1
	Optional
)

// String returns the string representation of the policy
func (p Policy) String() string {
	switch p {
	case Required:
		return "required"
	case Optional:
		return "optional"
	default:
		return "unknown"
	}
}

// NewPolicy creates a Policy from a string
func NewPolicy(s string) Policy {
	switch s {
	case "optional":
		return Optional
	default:
		return Required // fail closed
	}
}

// Validate checks if the policy is valid
func (p Policy) Validate() error {
	if p != Required && p != Optional {
		return fmt.Errorf("invalid signature policy: %d", p)
	}
	return nil
}

// Outcome reports whether a request was actually checked
type Outcome int

const (
	Verified Outcome = iota + 1
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Verified:
		return "verified"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Message builds the canonical signed content: v0:{timestamp}:{rawBody}
func Message(timestamp string, rawBody []byte) []byte {
	msg := make([]byte, 0, len(Version)+len(timestamp)+len(rawBody)+2)
	msg = append(msg, Version...)
	msg = append(msg, ':')
	msg = append(msg, timestamp...)
	msg = append(msg, ':')
	msg = append(msg, rawBody...)
	return msg
}

// HexHMAC returns the lowercase hex HMAC-SHA256 of data under secret
func HexHMAC(secret string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign computes the x-zm-signature value for a raw request body
func Sign(secret, timestamp string, rawBody []byte) string {
	return Version + "=" + HexHMAC(secret, Message(timestamp, rawBody))
}

// Verify compares the supplied header value with the expected signature in constant time.
// The comparison covers the whole value, including the "v0=" prefix.
func Verify(secret, timestamp string, rawBody []byte, sig string) bool {
	expected := Sign(secret, timestamp, rawBody)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// Verifier checks inbound Zoom requests against a shared secret
type Verifier struct {
	secret string
	policy Policy
}

// NewVerifier creates a verifier. The secret may be empty; the policy then decides.
func NewVerifier(secret string, policy Policy) *Verifier {
	return &Verifier{
		secret: secret,
		policy: policy,
	}
}

// Configured reports whether a secret is set
func (v *Verifier) Configured() bool {
	return v.secret != ""
}

// Verify checks the signature headers against the raw body.
// The body is only read.
func (v *Verifier) Verify(header http.Header, rawBody []byte) (Outcome, error) {
	if v.secret == "" {
		if v.policy == Optional {
			return Skipped, nil
		}
		return 0, ErrNoSecret
	}

	sig := header.Get(SignatureHeader)
	if sig == "" {
		return 0, ErrMissingSignature
	}
	timestamp := header.Get(TimestampHeader)
	if timestamp == "" {
		return 0, ErrMissingTimestamp
	}

	if !Verify(v.secret, timestamp, rawBody, sig) {
		return 0, ErrInvalidSignature
	}
	return Verified, nil
}
