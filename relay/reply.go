package relay

import (
	"net/http"
	"time"
)

// Reply is the single response produced for one inbound request
type Reply struct {
	Status int
	Body   any
	State  State
	Err    error

	// Trace lists the states the request went through, ending with State
	Trace []State
}

// AckBody is returned to Zoom on /webhook
type AckBody struct {
	Success       bool      `json:"success"`
	Strategy      string    `json:"strategy"`
	RequestID     string    `json:"requestId,omitempty"`
	TrackingID    *string   `json:"trackingId,omitempty"`
	MessageID     string    `json:"messageId,omitempty"`
	Status        int       `json:"status,omitempty"`
	GASResponse   any       `json:"gasResponse,omitempty"`
	DurationMs    int64     `json:"durationMs,omitempty"`
	FailurePolicy string    `json:"failurePolicy,omitempty"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ProcessBody is returned to the queue on /process
type ProcessBody struct {
	Success    bool    `json:"success"`
	TrackingID *string `json:"trackingId"`
	Duration   int64   `json:"duration"`
	Status     int     `json:"status"`
}

// ErrorBody is the body of every rejected request
type ErrorBody struct {
	Error      string  `json:"error"`
	TrackingID *string `json:"trackingId,omitempty"`
}

// DeadLetterBody acknowledges a failure callback
type DeadLetterBody struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

// PolicySummary exposes the active delivery configuration
type PolicySummary struct {
	Strategy               string `json:"strategy"`
	FailurePolicy          string `json:"failurePolicy"`
	SignaturePolicy        string `json:"signaturePolicy"`
	QueueBackend           string `json:"queueBackend"`
	QueueRetries           int    `json:"queueRetries"`
	SecretConfigured       bool   `json:"secretConfigured"`
	DestinationConfigured  bool   `json:"destinationConfigured"`
	CallbackKeysConfigured bool   `json:"callbackKeysConfigured"`
}

func reject(state State, err error, msg string, trackingID *string) Reply {
	return Reply{
		Status: HTTPStatus(err),
		Body:   ErrorBody{Error: msg, TrackingID: trackingID},
		State:  state,
		Err:    err,
	}
}

func ok(state State, body any) Reply {
	return Reply{Status: http.StatusOK, Body: body, State: state}
}
