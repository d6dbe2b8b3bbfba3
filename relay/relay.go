package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/marcelsud/zoom-relay/relay/forwarder"
	"github.com/marcelsud/zoom-relay/relay/payload"
)

/* Small, focused interfaces following "The Go Way"
 * Each collaborator of the coordinator is one behavior, so tests can swap in mocks
 */

// Forwarder delivers a payload to the downstream processing endpoint
type Forwarder interface {
	Forward(ctx context.Context, payload any) (forwarder.Result, error)
}

// PublishRequest describes a task handed to the durable queue
type PublishRequest struct {
	// Destination is the consumer URL the queue will call (…/process)
	Destination string
	// FailureCallback is called once the retry budget is exhausted (…/failure)
	FailureCallback string
	Retries         int
	Task            payload.Task
}

// Publisher enqueues tasks on an at-least-once queue and returns the queue's message ID
type Publisher interface {
	Publish(ctx context.Context, req PublishRequest) (string, error)
}

// CallbackVerifier authenticates requests made by the queue
type CallbackVerifier interface {
	Configured() bool
	Verify(token string, body []byte, url string) error
}

// DeadLetterRecorder keeps tasks that the queue gave up on
type DeadLetterRecorder interface {
	Record(ctx context.Context, dl DeadLetter) error
}

// DeadLetterLister lists recorded dead letters, newest first
type DeadLetterLister interface {
	List(ctx context.Context, limit int) ([]DeadLetter, error)
}

// UseCase is what the HTTP layer needs from the relay
type UseCase interface {
	Receive(ctx context.Context, in Inbound) Reply
	Process(ctx context.Context, in TaskInbound) Reply
	RecordFailure(ctx context.Context, in TaskInbound) Reply
	Policy() PolicySummary
}

// DeadLetter is a task that exhausted its retries
type DeadLetter struct {
	MessageID    string          `json:"messageId"`
	RequestID    string          `json:"requestId,omitempty"`
	TrackingID   string          `json:"trackingId,omitempty"`
	Event        string          `json:"event,omitempty"`
	Destination  string          `json:"destination,omitempty"`
	LastStatus   int             `json:"lastStatus"`
	LastResponse string          `json:"lastResponse,omitempty"`
	Attempts     int             `json:"attempts"`
	MaxRetries   int             `json:"maxRetries"`
	Error        string          `json:"error,omitempty"`
	Task         json.RawMessage `json:"task,omitempty"`
	FailedAt     time.Time       `json:"failedAt"`
}
