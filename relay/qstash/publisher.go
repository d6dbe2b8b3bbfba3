// Package qstash publishes relay tasks to Upstash QStash.
package qstash

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	upstash "github.com/upstash/qstash-go"

	"github.com/marcelsud/zoom-relay/relay"
)

// DefaultURL is the public QStash endpoint
const DefaultURL = "https://qstash.upstash.io"

var ErrNoToken = errors.New("QSTASH_TOKEN is not set")

// Publisher implements relay.Publisher with the QStash client
type Publisher struct {
	client *upstash.Client
}

// NewPublisher creates a publisher. The publish call itself is short, so the client timeout is too.
// The QStash client ignores contexts; timeout is what bounds a publish.
func NewPublisher(baseURL, token string, timeout time.Duration) *Publisher {
	if token == "" {
		return &Publisher{}
	}
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{
		client: upstash.NewClientWith(upstash.Options{
			Url:    strings.TrimRight(baseURL, "/"),
			Token:  token,
			Client: &http.Client{Timeout: timeout},
		}),
	}
}

// Publish hands the task to QStash, which calls req.Destination with at-least-once delivery
func (p *Publisher) Publish(ctx context.Context, req relay.PublishRequest) (string, error) {
	if p.client == nil {
		return "", ErrNoToken
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	body, err := req.Task.Bytes()
	if err != nil {
		return "", err
	}

	retries := req.Retries
	opts := upstash.PublishOptions{
		Url:             req.Destination,
		Body:            string(body),
		ContentType:     "application/json",
		Retries:         &retries,
		FailureCallback: req.FailureCallback,
	}
	if req.Task.RequestID != "" {
		// sent as Upstash-Forward-X-Request-Id and forwarded to the destination
		opts.Headers = map[string]string{"X-Request-Id": req.Task.RequestID}
	}

	res, err := p.client.Publish(opts)
	if err != nil {
		return "", fmt.Errorf("publishing to qstash: %w", err)
	}
	if res.MessageId == "" {
		return "", errors.New("qstash response has no messageId")
	}
	return res.MessageId, nil
}
