package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrMissingWebhookData = errors.New("task has no webhookData")

/* Task is the unit of work handed to the queue
 * Field names follow the JSON contract shared with the /process consumer
 */
type Task struct {
	WebhookData json.RawMessage `json:"webhookData"`
	TrackingID  *string         `json:"trackingId"`
	ReceivedAt  time.Time       `json:"receivedAt"`
	RequestID   string          `json:"requestId"`

	// RetryNum mirrors x-zoom-retry-num; diagnostics only
	RetryNum int `json:"zoomRetryNum,omitempty"`
}

// NewTask wraps an inbound event for queueing
func NewTask(event Event, delivery Delivery, requestID string, receivedAt time.Time) Task {
	return Task{
		WebhookData: event.JSON(),
		TrackingID:  delivery.TrackingIDPtr(),
		ReceivedAt:  receivedAt.UTC(),
		RequestID:   requestID,
		RetryNum:    delivery.RetryNum,
	}
}

// Bytes returns the JSON encoding of the task
func (t Task) Bytes() ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshaling task: %w", err)
	}
	return data, nil
}

// EventName extracts the "event" field from the wrapped webhook, if any
func (t Task) EventName() string {
	var head struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(t.WebhookData, &head); err != nil {
		return ""
	}
	return head.Event
}

// Tracking returns the tracking ID or an empty string
func (t Task) Tracking() string {
	if t.TrackingID == nil {
		return ""
	}
	return *t.TrackingID
}

// ParseTask decodes a queue message body
func ParseTask(raw []byte) (Task, error) {
	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if len(task.WebhookData) == 0 || string(task.WebhookData) == "null" {
		return Task{}, ErrMissingWebhookData
	}
	return task, nil
}
