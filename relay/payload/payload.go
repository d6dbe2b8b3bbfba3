package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEmptyBody   = errors.New("request body is empty")
	ErrInvalidJSON = errors.New("request body is not valid JSON")
	ErrNotObject   = errors.New("request body must be a JSON object")
)

// Event is an inbound Zoom webhook.
// Raw is kept verbatim: signatures are computed over it and it is what gets forwarded.
type Event struct {
	// Raw holds the request body exactly as received
	Raw []byte

	// Name is the "event" field, e.g. "meeting.started"
	Name string

	// Fields is the decoded JSON object
	Fields map[string]any
}

// Parse decodes a raw body into an Event. The body must be a non-null JSON object.
func Parse(raw []byte) (Event, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Event{}, ErrEmptyBody
	}

	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	fields, ok := decoded.(map[string]any)
	if !ok {
		return Event{}, ErrNotObject
	}

	name, _ := fields["event"].(string)

	return Event{
		Raw:    raw,
		Name:   name,
		Fields: fields,
	}, nil
}

// Payload returns the "payload" object, or nil when absent or not an object
func (e Event) Payload() map[string]any {
	p, _ := e.Fields["payload"].(map[string]any)
	return p
}

// JSON returns the raw body as a json.RawMessage so it is forwarded without re-encoding the object
func (e Event) JSON() json.RawMessage {
	return json.RawMessage(e.Raw)
}
