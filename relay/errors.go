package relay

import (
	"errors"
	"net/http"
)

// Error taxonomy. Component errors are wrapped with one of these so the HTTP status follows the kind.
var (
	// ErrConfiguration means a secret or URL is missing; fatal for the request only
	ErrConfiguration = errors.New("relay: configuration error")

	// ErrMalformedInput means the body is not a JSON object or the task cannot be decoded
	ErrMalformedInput = errors.New("relay: malformed input")

	// ErrSignature means authentication of the caller failed
	ErrSignature = errors.New("relay: signature verification failed")

	// ErrDownstream means the destination failed or could not be reached
	ErrDownstream = errors.New("relay: downstream error")

	// ErrQueuePublish means the task could not be handed to the queue
	ErrQueuePublish = errors.New("relay: queue publish failed")
)

// HTTPStatus maps an error to the status returned to the caller.
// Downstream and publish errors are policy dependent and are not mapped here.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrSignature):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
