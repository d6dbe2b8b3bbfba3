package relay

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/marcelsud/zoom-relay/relay/payload"
)

// RecordFailure handles the queue's failure callback, sent once a task ran out of retries.
// Any 2xx stops the queue from calling again, so 200 is returned only once the dead letter is kept.
func (s *Service) RecordFailure(ctx context.Context, in TaskInbound) Reply {
	if err := s.verifyCallback(ctx, in, FailurePath); err != nil {
		return s.rejectCallback(ctx, err)
	}

	notice, err := payload.ParseFailureNotice(in.RawBody)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrMalformedInput, err)
		s.log(ctx).Warn().Err(err).Msg("rejecting failure callback")
		return reject(Rejected, err, "Invalid JSON", nil)
	}

	dl := s.deadLetter(notice)
	logger := s.log(ctx).With().
		Str("message_id", dl.MessageID).
		Str("request_id", dl.RequestID).
		Str("tracking_id", dl.TrackingID).
		Logger()

	if err := s.deadLetters.Record(ctx, dl); err != nil {
		logger.Error().Err(err).Msg("recording dead letter")
		return Reply{
			Status: http.StatusInternalServerError,
			Body:   ErrorBody{Error: "could not record dead letter"},
			State:  Rejected,
			Err:    err,
		}
	}
	s.observer.DeadLettered(ctx)

	logger.Error().
		Int("last_status", dl.LastStatus).
		Int("attempts", dl.Attempts).
		Msg("task exhausted its retries and was dead-lettered")

	return ok(Acked, DeadLetterBody{Success: true, MessageID: dl.MessageID})
}

func (s *Service) deadLetter(notice payload.FailureNotice) DeadLetter {
	dl := DeadLetter{
		MessageID:    notice.SourceMessageID,
		Destination:  notice.URL,
		LastStatus:   notice.Status,
		LastResponse: notice.ResponseBody(),
		Attempts:     notice.Retried,
		MaxRetries:   notice.MaxRetries,
		FailedAt:     s.now().UTC(),
	}

	task, err := notice.Task()
	if err != nil {
		dl.Error = err.Error()
		return dl
	}
	dl.RequestID = task.RequestID
	dl.TrackingID = task.Tracking()
	dl.Event = task.EventName()
	if raw, err := task.Bytes(); err == nil {
		dl.Task = raw
	}
	return dl
}

// LogDeadLetters records dead letters in the structured log only
type LogDeadLetters struct {
	logger *zerolog.Logger
}

// NewLogDeadLetters creates a recorder writing to logger
func NewLogDeadLetters(logger *zerolog.Logger) *LogDeadLetters {
	return &LogDeadLetters{logger: logger}
}

// Record logs the dead letter at error level
func (l *LogDeadLetters) Record(_ context.Context, dl DeadLetter) error {
	event := l.logger.Error().
		Str("message_id", dl.MessageID).
		Str("request_id", dl.RequestID).
		Str("tracking_id", dl.TrackingID).
		Str("event", dl.Event).
		Str("destination", dl.Destination).
		Int("last_status", dl.LastStatus).
		Str("last_response", dl.LastResponse)
	if len(dl.Task) > 0 {
		event = event.RawJSON("task", dl.Task)
	}
	event.Msg("dead letter")
	return nil
}
