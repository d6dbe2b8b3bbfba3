package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/marcelsud/zoom-relay/relay/callback"
	"github.com/marcelsud/zoom-relay/relay/forwarder"
	"github.com/marcelsud/zoom-relay/relay/payload"
	"github.com/marcelsud/zoom-relay/relay/signature"
)

// Process forwards a queued task on behalf of the queue.
// A non-2xx reply is the only signal that makes the queue retry.
func (s *Service) Process(ctx context.Context, in TaskInbound) Reply {
	logger := s.log(ctx).With().
		Str("upstash_message_id", in.Header.Get(callback.MessageIDHeader)).
		Str("upstash_retried", in.Header.Get(callback.RetriedHeader)).
		Logger()
	ctx = logger.WithContext(ctx)

	if err := s.verifyCallback(ctx, in, ProcessPath); err != nil {
		return s.rejectCallback(ctx, err)
	}

	task, err := payload.ParseTask(in.RawBody)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrMalformedInput, err)
		logger.Warn().Err(err).Msg("rejecting queued task")
		return reject(Rejected, err, "Invalid JSON", nil)
	}

	logger = logger.With().
		Str("request_id", task.RequestID).
		Str("tracking_id", task.Tracking()).
		Str("event", task.EventName()).
		Time("received_at", task.ReceivedAt).
		Logger()
	ctx = logger.WithContext(ctx)

	if s.forwarder == nil {
		err := fmt.Errorf("%w: %w", ErrConfiguration, forwarder.ErrNoDestination)
		logger.Error().Err(err).Msg("cannot process queued task")
		return reject(Rejected, err, "GAS_ENDPOINT_URL is not set", task.TrackingID)
	}

	var body any = task.WebhookData
	if s.settings.ForwardEnvelope {
		body = task
	}

	result, err := s.forward(ctx, body)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDownstream, err)
		logger.Error().Err(err).
			Int("status", result.Status).
			Int64("duration_ms", result.DurationMs()).
			Msg("queued forward failed, queue will retry")
		return Reply{
			Status: http.StatusInternalServerError,
			Body:   ErrorBody{Error: err.Error(), TrackingID: task.TrackingID},
			State:  Rejected,
			Err:    err,
		}
	}

	logger.Info().
		Int("status", result.Status).
		Int64("duration_ms", result.DurationMs()).
		Msg("queued forward completed")

	return ok(Acked, ProcessBody{
		Success:    true,
		TrackingID: task.TrackingID,
		Duration:   result.DurationMs(),
		Status:     result.Status,
	})
}

func (s *Service) verifyCallback(ctx context.Context, in TaskInbound, path string) error {
	if s.callbacks == nil || !s.callbacks.Configured() {
		if s.settings.SignaturePolicy == signature.Optional {
			s.log(ctx).Warn().Msg("queue signature verification skipped: signing keys are not configured")
			return nil
		}
		return fmt.Errorf("%w: queue signing keys are not configured", ErrConfiguration)
	}

	url := ""
	if base := s.baseURL(in.BaseURL); base != "" {
		url = base + path
	}
	if err := s.callbacks.Verify(in.Header.Get(callback.SignatureHeader), in.RawBody, url); err != nil {
		return fmt.Errorf("%w: %w", ErrSignature, err)
	}
	return nil
}

func (s *Service) rejectCallback(ctx context.Context, err error) Reply {
	msg := "Invalid signature"
	if errors.Is(err, ErrConfiguration) {
		msg = "Queue signing keys are not configured"
	}
	s.log(ctx).Warn().Err(err).Msg("rejecting queue callback")
	return reject(Rejected, err, msg, nil)
}
