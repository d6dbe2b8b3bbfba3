package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/marcelsud/zoom-relay/relay"
	"github.com/marcelsud/zoom-relay/relay/callback"
	"github.com/marcelsud/zoom-relay/relay/payload"
)

const maxCallbackResponse = 64 << 10

// DefaultClaimIdle is used when WorkerOptions.ClaimIdle is zero
const DefaultClaimIdle = 30 * time.Minute

/* Worker drains the Redis stream and plays the role QStash plays in the hosted setup:
 * it calls the task's destination with a signed request, retries a bounded number
 * of times at a constant pace, and reports exhausted tasks to the failure callback
 */
type Worker struct {
	repo              *Repository
	signer            *callback.Signer
	client            *http.Client
	retryDelay        time.Duration
	claimIdle         time.Duration
	heartbeatInterval time.Duration
	id                string
	logger            zerolog.Logger
	processed         atomic.Int64
	busy              atomic.Bool
}

// WorkerOptions configures a Worker
type WorkerOptions struct {
	ID         string
	RetryDelay time.Duration
	// ClaimIdle is how long a task read by a crashed or stopped worker waits before this one takes it over
	ClaimIdle         time.Duration
	RequestTimeout    time.Duration
	HeartbeatInterval time.Duration
	Logger            zerolog.Logger
}

// NewWorker creates a worker consuming repo
func NewWorker(repo *Repository, signer *callback.Signer, opts WorkerOptions) *Worker {
	if opts.ID == "" {
		opts.ID = "worker-" + uuid.New().String()[:8]
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 10 * time.Second
	}
	if opts.ClaimIdle <= 0 {
		opts.ClaimIdle = DefaultClaimIdle
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	return &Worker{
		repo:              repo,
		signer:            signer,
		client:            &http.Client{Timeout: opts.RequestTimeout},
		retryDelay:        opts.RetryDelay,
		claimIdle:         opts.ClaimIdle,
		heartbeatInterval: opts.HeartbeatInterval,
		id:                opts.ID,
		logger:            opts.Logger.With().Str("worker_id", opts.ID).Logger(),
	}
}

// ID returns the worker's consumer name
func (w *Worker) ID() string {
	return w.id
}

// Run consumes tasks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	var wg conc.WaitGroup
	wg.Go(func() { w.heartbeat(ctx) })
	defer wg.Wait()

	w.logger.Info().Msg("worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Int64("processed", w.processed.Load()).Msg("worker stopping")
			return nil
		default:
		}

		messages, err := w.repo.Consume(ctx, w.id, w.claimIdle)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error().Err(err).Msg("consuming tasks")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range messages {
			w.busy.Store(true)
			err := w.Handle(ctx, msg)
			w.busy.Store(false)
			if err != nil {
				// stays pending in the group until a worker claims it after claimIdle
				w.logger.Error().Err(err).Str("message_id", msg.MessageID).Msg("task not settled")
				continue
			}
			if err := w.repo.Acknowledge(ctx, msg.StreamID); err != nil {
				w.logger.Error().Err(err).Str("message_id", msg.MessageID).Msg("acknowledging task")
			}
			w.processed.Add(1)
		}
	}
}

// Handle delivers one task. A nil error means the task is settled, delivered or dead-lettered.
func (w *Worker) Handle(ctx context.Context, msg Message) error {
	logger := w.logger.With().Str("message_id", msg.MessageID).Str("destination", msg.Destination).Logger()

	var (
		attempt    int
		lastStatus int
		lastBody   []byte
	)
	operation := func() error {
		status, body, err := w.post(ctx, msg.Destination, msg.Body, msg.MessageID, attempt)
		attempt++
		lastStatus, lastBody = status, body
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("delivery attempt failed")
			return err
		}
		if status < 200 || status >= 300 {
			logger.Warn().Int("status", status).Int("attempt", attempt).Msg("delivery attempt rejected")
			return fmt.Errorf("destination responded %d", status)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(w.retryDelay), uint64(max(msg.MaxRetries, 0))),
		ctx,
	)
	err := backoff.Retry(operation, policy)
	if err == nil {
		logger.Info().Int("attempts", attempt).Msg("task delivered")
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("delivery interrupted: %w", ctx.Err())
	}

	logger.Error().Err(err).Int("attempts", attempt).Msg("task exhausted its retries")
	return w.fail(ctx, msg, lastStatus, lastBody, attempt-1, err)
}

// fail reports an exhausted task to its failure callback, or records it directly
func (w *Worker) fail(ctx context.Context, msg Message, status int, response []byte, retried int, cause error) error {
	notice := payload.NewFailureNotice(msg.MessageID, msg.Destination, msg.Body, status, response, retried, msg.MaxRetries)
	notice.CreatedAt = msg.CreatedAt.UnixMilli()

	if msg.FailureCallback != "" {
		body, err := json.Marshal(notice)
		if err != nil {
			return fmt.Errorf("marshaling failure notice: %w", err)
		}
		code, _, err := w.post(ctx, msg.FailureCallback, body, msg.MessageID, 0)
		if err == nil && code >= 200 && code < 300 {
			return nil
		}
		w.logger.Warn().Err(err).Int("status", code).Str("message_id", msg.MessageID).
			Msg("failure callback rejected, recording dead letter directly")
	}

	dl := relay.DeadLetter{
		MessageID:    msg.MessageID,
		Destination:  msg.Destination,
		LastStatus:   status,
		LastResponse: string(response),
		Attempts:     retried,
		MaxRetries:   msg.MaxRetries,
		Error:        cause.Error(),
		FailedAt:     time.Now().UTC(),
	}
	if task, err := payload.ParseTask(msg.Body); err == nil {
		dl.RequestID = task.RequestID
		dl.TrackingID = task.Tracking()
		dl.Event = task.EventName()
		dl.Task = json.RawMessage(msg.Body)
	}
	return w.repo.Record(ctx, dl)
}

func (w *Worker) post(ctx context.Context, url string, body []byte, messageID string, retried int) (int, []byte, error) {
	token, err := w.signer.Sign(url, body)
	if err != nil {
		return 0, nil, backoff.Permanent(fmt.Errorf("signing callback: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(callback.SignatureHeader, token)
	req.Header.Set(callback.MessageIDHeader, messageID)
	req.Header.Set(callback.RetriedHeader, strconv.Itoa(retried))

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxCallbackResponse))
	if err != nil && !errors.Is(err, io.EOF) {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (w *Worker) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	beat := func() {
		status := "idle"
		if w.busy.Load() {
			status = "processing"
		}
		if err := w.repo.SetWorkerHeartbeat(ctx, w.id, status, w.processed.Load()); err != nil && ctx.Err() == nil {
			w.logger.Warn().Err(err).Msg("sending heartbeat")
		}
	}

	beat()
	for {
		select {
		case <-ctx.Done():
			// ctx is done; use a short-lived one to clean up
			cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			_ = w.repo.RemoveWorkerHeartbeat(cleanup, w.id)
			cancel()
			return
		case <-ticker.C:
			beat()
		}
	}
}
