package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultUserAgent identifies the relay to the destination
const DefaultUserAgent = "Zoom-GAS-Relay/1.0"

// maxResponseBody caps how much of the destination's reply is kept
const maxResponseBody = 1 << 20

var ErrNoDestination = errors.New("destination URL is not set")

// Result describes a single forward attempt
type Result struct {
	Success  bool
	Status   int
	Body     any // decoded JSON, or the raw text when it is not JSON
	Duration time.Duration

	// Truncated is set when the reply exceeded maxResponseBody and Body holds only its head
	Truncated bool
}

// DurationMs returns the elapsed time in milliseconds
func (r Result) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// StatusError is returned when the destination answers with a non-2xx status
type StatusError struct {
	Status int
	Body   any
}

func (e *StatusError) Error() string {
	body, err := json.Marshal(e.Body)
	if err != nil {
		body = []byte(fmt.Sprint(e.Body))
	}
	return fmt.Sprintf("destination responded %d: %s", e.Status, body)
}

// Forwarder POSTs payloads to the downstream processing endpoint.
// It never retries; callers own retry decisions.
type Forwarder struct {
	client    *http.Client
	url       string
	userAgent string
}

// New creates a forwarder. A zero timeout means no client timeout.
func New(url, userAgent string, timeout time.Duration) *Forwarder {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Forwarder{
		client:    &http.Client{Timeout: timeout},
		url:       url,
		userAgent: userAgent,
	}
}

// URL returns the destination
func (f *Forwarder) URL() string {
	return f.url
}

// Forward sends payload as JSON. The returned Result is populated even when err is not nil,
// and always carries the measured duration.
func (f *Forwarder) Forward(ctx context.Context, payload any) (Result, error) {
	if f.url == "" {
		return Result{}, ErrNoDestination
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return Result{Duration: time.Since(start)}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	truncated := false
	if err == nil && len(raw) > maxResponseBody {
		raw, truncated = raw[:maxResponseBody], true
		// the duration covers the whole body
		_, err = io.Copy(io.Discard, resp.Body)
	}
	elapsed := time.Since(start)
	if err != nil {
		return Result{Status: resp.StatusCode, Duration: elapsed}, fmt.Errorf("reading response: %w", err)
	}

	result := Result{
		Success:   resp.StatusCode >= 200 && resp.StatusCode <= 299,
		Status:    resp.StatusCode,
		Body:      decodeBody(raw),
		Duration:  elapsed,
		Truncated: truncated,
	}
	if !result.Success {
		return result, &StatusError{Status: result.Status, Body: result.Body}
	}
	return result, nil
}

// decodeBody parses JSON and falls back to the raw text
func decodeBody(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
