package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marcelsud/zoom-relay/relay/challenge"
	"github.com/marcelsud/zoom-relay/relay/forwarder"
	"github.com/marcelsud/zoom-relay/relay/payload"
	"github.com/marcelsud/zoom-relay/relay/signature"
)

// Paths the queue calls back on, relative to the public base URL
const (
	ProcessPath = "/process"
	FailurePath = "/failure"
)

// DefaultQueueRetries is the retry budget handed to the queue
const DefaultQueueRetries = 3

// Settings is the immutable configuration of a Service
type Settings struct {
	Secret          string
	Strategy        DeliveryStrategy
	FailurePolicy   FailurePolicy
	SignaturePolicy signature.Policy
	// PublicBaseURL overrides the base derived from the request
	PublicBaseURL   string
	QueueBackend    string
	QueueRetries    int
	ForwardEnvelope bool
	// ForwardTimeout bounds background forwards, which outlive the request
	ForwardTimeout time.Duration
}

// Dependencies are the collaborators of a Service. Nil entries fall back to safe defaults.
type Dependencies struct {
	Forwarder   Forwarder
	Publisher   Publisher
	Callbacks   CallbackVerifier
	DeadLetters DeadLetterRecorder
	Observer    Observer
	Background  *Background
	Logger      *zerolog.Logger
}

// Inbound is a request received on /webhook
type Inbound struct {
	RawBody    []byte
	Header     http.Header
	BaseURL    string
	RequestID  string
	ReceivedAt time.Time
}

// TaskInbound is a request made by the queue on /process or /failure
type TaskInbound struct {
	RawBody []byte
	Header  http.Header
	BaseURL string
}

/* Service is the delivery coordinator
 * Uses pointer semantics as it's an API, not data
 */
type Service struct {
	settings    Settings
	verifier    *signature.Verifier
	forwarder   Forwarder
	publisher   Publisher
	callbacks   CallbackVerifier
	deadLetters DeadLetterRecorder
	observer    Observer
	background  *Background
	logger      *zerolog.Logger
	now         func() time.Time
}

// NewService creates a new relay service with dependency injection
func NewService(settings Settings, deps Dependencies) *Service {
	if settings.QueueRetries <= 0 {
		settings.QueueRetries = DefaultQueueRetries
	}
	if settings.Strategy.Validate() != nil {
		settings.Strategy = Queued
	}
	if settings.FailurePolicy.Validate() != nil {
		settings.FailurePolicy = AcknowledgeFailures
	}
	if settings.SignaturePolicy.Validate() != nil {
		settings.SignaturePolicy = signature.Required
	}
	settings.PublicBaseURL = strings.TrimRight(settings.PublicBaseURL, "/")

	logger := deps.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	observer := deps.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	background := deps.Background
	if background == nil {
		background = NewBackground()
	}
	deadLetters := deps.DeadLetters
	if deadLetters == nil {
		deadLetters = NewLogDeadLetters(logger)
	}

	return &Service{
		settings:    settings,
		verifier:    signature.NewVerifier(settings.Secret, settings.SignaturePolicy),
		forwarder:   deps.Forwarder,
		publisher:   deps.Publisher,
		callbacks:   deps.Callbacks,
		deadLetters: deadLetters,
		observer:    observer,
		background:  background,
		logger:      logger,
		now:         time.Now,
	}
}

// Policy reports the active strategy and policies
func (s *Service) Policy() PolicySummary {
	return PolicySummary{
		Strategy:               s.settings.Strategy.String(),
		FailurePolicy:          s.settings.FailurePolicy.String(),
		SignaturePolicy:        s.settings.SignaturePolicy.String(),
		QueueBackend:           s.settings.QueueBackend,
		QueueRetries:           s.settings.QueueRetries,
		SecretConfigured:       s.verifier.Configured(),
		DestinationConfigured:  s.forwarder != nil,
		CallbackKeysConfigured: s.callbacks != nil && s.callbacks.Configured(),
	}
}

// Background returns the runner tracking async forwards
func (s *Service) Background() *Background {
	return s.background
}

// Receive handles one Zoom delivery and returns exactly one reply
func (s *Service) Receive(ctx context.Context, in Inbound) Reply {
	delivery := payload.DeliveryFromHeader(in.Header)
	if in.RequestID == "" {
		in.RequestID = uuid.New().String()
	}
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = s.now()
	}

	logger := s.log(ctx).With().
		Str("request_id", in.RequestID).
		Str("tracking_id", delivery.TrackingID).
		Int("zoom_retry_num", delivery.RetryNum).
		Bool("retried", delivery.Retried()).
		Logger()
	ctx = logger.WithContext(ctx)

	if delivery.Retried() {
		s.observer.InboundRetried(ctx)
	}

	trace := []State{Received}
	reply := s.receive(ctx, in, delivery, &trace)
	reply.Trace = append(trace, reply.State)
	s.observer.InboundHandled(ctx, reply.State, reply.Status)

	// ctx carries the logger updated with the event name
	l := s.log(ctx)
	event := l.Info()
	if reply.Err != nil {
		event = l.Warn().Err(reply.Err)
	}
	event.Str("state", reply.State.String()).
		Strs("trace", stateNames(reply.Trace)).
		Int("status", reply.Status).
		Msg("webhook handled")

	return reply
}

func (s *Service) receive(ctx context.Context, in Inbound, delivery payload.Delivery, trace *[]State) Reply {
	tracking := delivery.TrackingIDPtr()

	outcome, err := s.verifier.Verify(in.Header, in.RawBody)
	switch {
	case errors.Is(err, signature.ErrNoSecret):
		return reject(Rejected, fmt.Errorf("%w: %w", ErrConfiguration, err), "Webhook secret is not configured", tracking)
	case err != nil:
		return reject(Rejected, fmt.Errorf("%w: %w", ErrSignature, err), "Invalid signature", tracking)
	case outcome == signature.Skipped:
		s.log(ctx).Warn().Msg("signature verification skipped: secret token is not configured")
	}

	event, err := payload.Parse(in.RawBody)
	if err != nil {
		return reject(Rejected, fmt.Errorf("%w: %w", ErrMalformedInput, err), "Invalid webhook data", tracking)
	}

	resp, isChallenge, err := challenge.Respond(event, s.settings.Secret)
	if isChallenge {
		if err != nil {
			return reject(Rejected, fmt.Errorf("%w: %w", ErrConfiguration, err), "Webhook secret is not configured", tracking)
		}
		s.log(ctx).Info().Msg("answered endpoint url validation")
		return ok(ChallengeHandled, resp)
	}

	zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("event", event.Name)
	})
	*trace = append(*trace, Validated, forwardState(s.settings.Strategy))
	s.log(ctx).Debug().Str("state", forwardState(s.settings.Strategy).String()).Msg("webhook validated")

	switch s.settings.Strategy {
	case Sync:
		return s.forwardSync(ctx, event, in, tracking)
	case Async:
		return s.forwardAsync(ctx, event, in, tracking)
	default:
		return s.enqueue(ctx, event, in, delivery)
	}
}

func (s *Service) forwardSync(ctx context.Context, event payload.Event, in Inbound, tracking *string) Reply {
	if s.forwarder == nil {
		return reject(Rejected, fmt.Errorf("%w: %w", ErrConfiguration, forwarder.ErrNoDestination), "GAS_ENDPOINT_URL is not set", tracking)
	}

	result, err := s.forward(ctx, event.JSON())
	if errors.Is(err, forwarder.ErrNoDestination) {
		return reject(Rejected, fmt.Errorf("%w: %w", ErrConfiguration, err), "GAS_ENDPOINT_URL is not set", tracking)
	}

	body := AckBody{
		Success:     err == nil,
		Strategy:    Sync.String(),
		RequestID:   in.RequestID,
		TrackingID:  tracking,
		Status:      result.Status,
		GASResponse: result.Body,
		DurationMs:  result.DurationMs(),
		Timestamp:   s.now().UTC(),
	}
	if err == nil {
		return ok(Acked, body)
	}

	err = fmt.Errorf("%w: %w", ErrDownstream, err)
	body.Error = err.Error()
	body.FailurePolicy = s.settings.FailurePolicy.String()

	if s.settings.FailurePolicy == PropagateFailures {
		return Reply{Status: propagatedStatus(err), Body: body, State: Rejected, Err: err}
	}
	return Reply{Status: http.StatusOK, Body: body, State: Acked, Err: err}
}

// propagatedStatus lets Zoom see the downstream failure so it retries
func propagatedStatus(err error) int {
	var se *forwarder.StatusError
	if errors.As(err, &se) && se.Status >= http.StatusBadRequest {
		return se.Status
	}
	return http.StatusBadGateway
}

func (s *Service) forwardAsync(ctx context.Context, event payload.Event, in Inbound, tracking *string) Reply {
	if s.forwarder == nil {
		return reject(Rejected, fmt.Errorf("%w: %w", ErrConfiguration, forwarder.ErrNoDestination), "GAS_ENDPOINT_URL is not set", tracking)
	}

	// the request context is cancelled once the ack is written
	bctx := context.WithoutCancel(ctx)
	body := event.JSON()
	s.background.Go(func() {
		fctx := bctx
		if s.settings.ForwardTimeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(bctx, s.settings.ForwardTimeout)
			defer cancel()
		}

		result, err := s.forward(fctx, body)

		logger := s.log(fctx)
		if err != nil {
			logger.Error().Err(err).
				Int("status", result.Status).
				Int64("duration_ms", result.DurationMs()).
				Msg("background forward failed, no retry path")
			return
		}
		logger.Info().
			Int("status", result.Status).
			Int64("duration_ms", result.DurationMs()).
			Msg("background forward completed")
	})

	return ok(Acked, AckBody{
		Success:    true,
		Strategy:   Async.String(),
		RequestID:  in.RequestID,
		TrackingID: tracking,
		Timestamp:  s.now().UTC(),
	})
}

func (s *Service) enqueue(ctx context.Context, event payload.Event, in Inbound, delivery payload.Delivery) Reply {
	tracking := delivery.TrackingIDPtr()
	if s.publisher == nil {
		return reject(Rejected, fmt.Errorf("%w: queue publisher is not configured", ErrConfiguration), "Queue is not configured", tracking)
	}
	base := s.baseURL(in.BaseURL)
	if base == "" {
		return reject(Rejected, fmt.Errorf("%w: public base url is unknown", ErrConfiguration), "Public base URL is not configured", tracking)
	}

	task := payload.NewTask(event, delivery, in.RequestID, in.ReceivedAt)
	messageID, err := s.publisher.Publish(ctx, PublishRequest{
		Destination:     base + ProcessPath,
		FailureCallback: base + FailurePath,
		Retries:         s.settings.QueueRetries,
		Task:            task,
	})

	body := AckBody{
		Strategy:   Queued.String(),
		RequestID:  in.RequestID,
		TrackingID: tracking,
		Timestamp:  s.now().UTC(),
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrQueuePublish, err)
		s.observer.PublishFailed(ctx)
		s.log(ctx).Error().Err(err).Msg("queue publish failed, event will not be delivered")
		body.Error = err.Error()
		return Reply{Status: http.StatusOK, Body: body, State: Acked, Err: err}
	}

	body.Success = true
	body.MessageID = messageID
	return ok(Acked, body)
}

func (s *Service) baseURL(derived string) string {
	if s.settings.PublicBaseURL != "" {
		return s.settings.PublicBaseURL
	}
	return strings.TrimRight(derived, "/")
}

// log returns the request logger when one is attached to ctx
// forward sends body to the destination and records the attempt
func (s *Service) forward(ctx context.Context, body any) (forwarder.Result, error) {
	result, err := s.forwarder.Forward(ctx, body)
	s.observer.Forwarded(ctx, result, err)
	if result.Truncated {
		s.log(ctx).Warn().Int("status", result.Status).Msg("destination reply exceeded 1MiB, body truncated")
	}
	return result, err
}

func (s *Service) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return s.logger
}
