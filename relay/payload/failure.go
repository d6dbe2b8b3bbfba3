package payload

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

/* FailureNotice is the body a queue posts to the failure callback
 * once a message has exhausted its retries. Bodies are base64 encoded.
 */
type FailureNotice struct {
	Status          int                 `json:"status"`
	Header          map[string][]string `json:"header,omitempty"`
	Body            string              `json:"body,omitempty"`
	Retried         int                 `json:"retried"`
	MaxRetries      int                 `json:"maxRetries"`
	SourceMessageID string              `json:"sourceMessageId"`
	URL             string              `json:"url"`
	Method          string              `json:"method,omitempty"`
	SourceHeader    map[string][]string `json:"sourceHeader,omitempty"`
	SourceBody      string              `json:"sourceBody,omitempty"`
	CreatedAt       int64               `json:"createdAt,omitempty"`
}

// ParseFailureNotice decodes a failure callback body
func ParseFailureNotice(raw []byte) (FailureNotice, error) {
	var n FailureNotice
	if err := json.Unmarshal(raw, &n); err != nil {
		return FailureNotice{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return n, nil
}

// ResponseBody decodes the last response body returned by the destination
func (n FailureNotice) ResponseBody() string {
	if n.Body == "" {
		return ""
	}
	b, err := base64.StdEncoding.DecodeString(n.Body)
	if err != nil {
		return n.Body
	}
	return string(b)
}

// Task rebuilds the original queued task from the source body
func (n FailureNotice) Task() (Task, error) {
	if n.SourceBody == "" {
		return Task{}, fmt.Errorf("failure notice has no source body")
	}
	raw, err := base64.StdEncoding.DecodeString(n.SourceBody)
	if err != nil {
		return Task{}, fmt.Errorf("decoding source body: %w", err)
	}
	return ParseTask(raw)
}

// NewFailureNotice builds a notice for a message that ran out of retries
func NewFailureNotice(messageID, url string, source []byte, status int, response []byte, retried, maxRetries int) FailureNotice {
	return FailureNotice{
		Status:          status,
		Body:            base64.StdEncoding.EncodeToString(response),
		Retried:         retried,
		MaxRetries:      maxRetries,
		SourceMessageID: messageID,
		URL:             url,
		Method:          "POST",
		SourceBody:      base64.StdEncoding.EncodeToString(source),
	}
}
