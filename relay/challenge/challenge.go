// Package challenge answers Zoom's endpoint URL validation request.
package challenge

import (
	"errors"

	"github.com/marcelsud/zoom-relay/relay/payload"
	"github.com/marcelsud/zoom-relay/relay/signature"
)

// EventURLValidation is the event Zoom sends when an endpoint URL is registered
const EventURLValidation = "endpoint.url_validation"

// ErrNoSecret means the challenge cannot be answered. Zoom deactivates endpoints that answer wrongly.
var ErrNoSecret = errors.New("cannot answer url validation: secret token is not configured")

// Response is returned verbatim to Zoom
type Response struct {
	PlainToken     string `json:"plainToken"`
	EncryptedToken string `json:"encryptedToken"`
}

// PlainToken returns the token to echo when the event is a URL validation challenge
func PlainToken(event payload.Event) (string, bool) {
	if event.Name != EventURLValidation {
		return "", false
	}
	token, ok := event.Payload()["plainToken"].(string)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// EncryptToken computes the lowercase hex HMAC-SHA256 of the plain token
func EncryptToken(secret, plainToken string) string {
	return signature.HexHMAC(secret, []byte(plainToken))
}

// Respond answers the challenge if the event is one.
// ok is false when the event is not a challenge; err is set when it is but no secret exists.
func Respond(event payload.Event, secret string) (resp Response, ok bool, err error) {
	token, isChallenge := PlainToken(event)
	if !isChallenge {
		return Response{}, false, nil
	}
	if secret == "" {
		return Response{}, true, ErrNoSecret
	}
	return Response{
		PlainToken:     token,
		EncryptedToken: EncryptToken(secret, token),
	}, true, nil
}
