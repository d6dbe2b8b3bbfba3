package relay_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/zoom-relay/relay"
	"github.com/marcelsud/zoom-relay/relay/challenge"
	"github.com/marcelsud/zoom-relay/relay/forwarder"
	"github.com/marcelsud/zoom-relay/relay/mocks"
	"github.com/marcelsud/zoom-relay/relay/payload"
	"github.com/marcelsud/zoom-relay/relay/signature"
)

const (
	secret  = "topsecret"
	baseURL = "https://relay.example.com"
)

var meetingStarted = `{"event":"meeting.started","payload":{"object":{"id":"123"}}}`

func signedHeader(body string) http.Header {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	h := http.Header{}
	h.Set(signature.TimestampHeader, ts)
	h.Set(signature.SignatureHeader, signature.Sign(secret, ts, []byte(body)))
	return h
}

func inbound(body string) relay.Inbound {
	return relay.Inbound{
		RawBody:   []byte(body),
		Header:    signedHeader(body),
		BaseURL:   baseURL,
		RequestID: "req-1",
	}
}

func settings(strategy relay.DeliveryStrategy) relay.Settings {
	return relay.Settings{
		Secret:          secret,
		Strategy:        strategy,
		FailurePolicy:   relay.AcknowledgeFailures,
		SignaturePolicy: signature.Required,
	}
}

func matchRaw(want string) interface{} {
	return mock.MatchedBy(func(p any) bool {
		raw, ok := p.(json.RawMessage)
		return ok && string(raw) == want
	})
}

func TestReceiveChallenge(t *testing.T) {
	ctx := context.Background()
	body := `{"event":"endpoint.url_validation","payload":{"plainToken":"abc123"}}`

	for _, strategy := range []relay.DeliveryStrategy{relay.Sync, relay.Async, relay.Queued} {
		t.Run(strategy.String(), func(t *testing.T) {
			fwd := mocks.NewForwarder(t)
			pub := mocks.NewPublisher(t)
			service := relay.NewService(settings(strategy), relay.Dependencies{Forwarder: fwd, Publisher: pub})

			reply := service.Receive(ctx, inbound(body))

			require.NoError(t, reply.Err)
			assert.Equal(t, http.StatusOK, reply.Status)
			assert.Equal(t, relay.ChallengeHandled, reply.State)
			assert.Equal(t, []relay.State{relay.Received, relay.ChallengeHandled}, reply.Trace)

			resp, ok := reply.Body.(challenge.Response)
			require.True(t, ok)
			assert.Equal(t, "abc123", resp.PlainToken)
			assert.Len(t, resp.EncryptedToken, 64)
			assert.Equal(t, challenge.EncryptToken(secret, "abc123"), resp.EncryptedToken)

			require.NoError(t, service.Background().Wait(ctx))
			fwd.AssertNotCalled(t, "Forward", mock.Anything, mock.Anything)
			pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestReceiveRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed json", func(t *testing.T) {
		fwd := mocks.NewForwarder(t)
		service := relay.NewService(settings(relay.Sync), relay.Dependencies{Forwarder: fwd})

		reply := service.Receive(ctx, inbound(`{"event":`))

		assert.Equal(t, http.StatusBadRequest, reply.Status)
		assert.Equal(t, relay.Rejected, reply.State)
		assert.ErrorIs(t, reply.Err, relay.ErrMalformedInput)
		fwd.AssertNotCalled(t, "Forward", mock.Anything, mock.Anything)
	})

	t.Run("non-object body", func(t *testing.T) {
		fwd := mocks.NewForwarder(t)
		service := relay.NewService(settings(relay.Sync), relay.Dependencies{Forwarder: fwd})

		for _, body := range []string{`null`, `[1,2]`, `"text"`, ``} {
			reply := service.Receive(ctx, inbound(body))
			assert.Equal(t, http.StatusBadRequest, reply.Status, body)
		}
	})

	t.Run("invalid signature", func(t *testing.T) {
		fwd := mocks.NewForwarder(t)
		service := relay.NewService(settings(relay.Sync), relay.Dependencies{Forwarder: fwd})

		in := inbound(meetingStarted)
		in.RawBody = []byte(`{"event":"meeting.ended"}`)

		reply := service.Receive(ctx, in)

		assert.Equal(t, http.StatusUnauthorized, reply.Status)
		assert.ErrorIs(t, reply.Err, relay.ErrSignature)
		assert.ErrorIs(t, reply.Err, signature.ErrInvalidSignature)
	})

	t.Run("missing signature", func(t *testing.T) {
		service := relay.NewService(settings(relay.Sync), relay.Dependencies{Forwarder: mocks.NewForwarder(t)})

		in := inbound(meetingStarted)
		in.Header = http.Header{}

		reply := service.Receive(ctx, in)

		assert.Equal(t, http.StatusUnauthorized, reply.Status)
		assert.ErrorIs(t, reply.Err, signature.ErrMissingSignature)
	})

	t.Run("signature checked before challenge", func(t *testing.T) {
		service := relay.NewService(settings(relay.Sync), relay.Dependencies{})

		in := inbound(`{"event":"endpoint.url_validation","payload":{"plainToken":"abc123"}}`)
		in.Header.Set(signature.SignatureHeader, "v0=deadbeef")

		reply := service.Receive(ctx, in)

		assert.Equal(t, http.StatusUnauthorized, reply.Status)
	})

	t.Run("missing secret with required policy", func(t *testing.T) {
		s := settings(relay.Sync)
		s.Secret = ""
		service := relay.NewService(s, relay.Dependencies{Forwarder: mocks.NewForwarder(t)})

		reply := service.Receive(ctx, relay.Inbound{RawBody: []byte(meetingStarted), Header: http.Header{}})

		assert.Equal(t, http.StatusInternalServerError, reply.Status)
		assert.ErrorIs(t, reply.Err, relay.ErrConfiguration)
	})

	t.Run("missing secret with optional policy still cannot answer challenge", func(t *testing.T) {
		s := settings(relay.Sync)
		s.Secret = ""
		s.SignaturePolicy = signature.Optional
		service := relay.NewService(s, relay.Dependencies{})

		reply := service.Receive(ctx, relay.Inbound{
			RawBody: []byte(`{"event":"endpoint.url_validation","payload":{"plainToken":"abc123"}}`),
			Header:  http.Header{},
		})

		assert.Equal(t, http.StatusInternalServerError, reply.Status)
		assert.ErrorIs(t, reply.Err, challenge.ErrNoSecret)
	})

	t.Run("missing destination", func(t *testing.T) {
		service := relay.NewService(settings(relay.Sync), relay.Dependencies{})

		reply := service.Receive(ctx, inbound(meetingStarted))

		assert.Equal(t, http.StatusInternalServerError, reply.Status)
		assert.ErrorIs(t, reply.Err, forwarder.ErrNoDestination)
	})
}

func TestReceiveSync(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		fwd := mocks.NewForwarder(t)
		service := relay.NewService(settings(relay.Sync), relay.Dependencies{Forwarder: fwd})

		fwd.On("Forward", mock.Anything, matchRaw(meetingStarted)).Return(forwarder.Result{
			Success:  true,
			Status:   200,
			Body:     map[string]any{"ok": true},
			Duration: 120 * time.Millisecond,
		}, nil)

		reply := service.Receive(ctx, inbound(meetingStarted))

		require.NoError(t, reply.Err)
		assert.Equal(t, http.StatusOK, reply.Status)
		assert.Equal(t, relay.Acked, reply.State)

		body, ok := reply.Body.(relay.AckBody)
		require.True(t, ok)
		assert.True(t, body.Success)
		assert.Equal(t, 200, body.Status)
		assert.Equal(t, map[string]any{"ok": true}, body.GASResponse)
		assert.Equal(t, int64(120), body.DurationMs)
		assert.Equal(t, "sync", body.Strategy)
		assert.Equal(t, []relay.State{relay.Received, relay.Validated, relay.SyncForward, relay.Acked}, reply.Trace)
	})

	failing := func(fwd *mocks.Forwarder) {
		fwd.On("Forward", mock.Anything, mock.Anything).Return(
			forwarder.Result{Status: 500, Body: map[string]any{"error": "x"}},
			&forwarder.StatusError{Status: 500, Body: map[string]any{"error": "x"}},
		)
	}

	t.Run("failure acknowledged", func(t *testing.T) {
		fwd := mocks.NewForwarder(t)
		failing(fwd)
		service := relay.NewService(settings(relay.Sync), relay.Dependencies{Forwarder: fwd})

		reply := service.Receive(ctx, inbound(meetingStarted))

		assert.Equal(t, http.StatusOK, reply.Status)
		assert.ErrorIs(t, reply.Err, relay.ErrDownstream)

		body, ok := reply.Body.(relay.AckBody)
		require.True(t, ok)
		assert.False(t, body.Success)
		assert.Equal(t, 500, body.Status)
		assert.Equal(t, map[string]any{"error": "x"}, body.GASResponse)
		assert.Equal(t, "acknowledge", body.FailurePolicy)
	})

	t.Run("failure propagated", func(t *testing.T) {
		fwd := mocks.NewForwarder(t)
		failing(fwd)
		s := settings(relay.Sync)
		s.FailurePolicy = relay.PropagateFailures
		service := relay.NewService(s, relay.Dependencies{Forwarder: fwd})

		reply := service.Receive(ctx, inbound(meetingStarted))

		assert.Equal(t, http.StatusInternalServerError, reply.Status)
		assert.Equal(t, relay.Rejected, reply.State)
		assert.ErrorIs(t, reply.Err, relay.ErrDownstream)
	})

	t.Run("network failure propagated as bad gateway", func(t *testing.T) {
		fwd := mocks.NewForwarder(t)
		fwd.On("Forward", mock.Anything, mock.Anything).Return(forwarder.Result{}, errors.New("sending request: connection refused"))
		s := settings(relay.Sync)
		s.FailurePolicy = relay.PropagateFailures
		service := relay.NewService(s, relay.Dependencies{Forwarder: fwd})

		reply := service.Receive(ctx, inbound(meetingStarted))

		assert.Equal(t, http.StatusBadGateway, reply.Status)
	})

	t.Run("retried delivery is handled like the first", func(t *testing.T) {
		fwd := mocks.NewForwarder(t)
		observer := mocks.NewObserver(t)
		service := relay.NewService(settings(relay.Sync), relay.Dependencies{Forwarder: fwd, Observer: observer})

		fwd.On("Forward", mock.Anything, matchRaw(meetingStarted)).Return(forwarder.Result{Success: true, Status: 200}, nil).Twice()
		observer.On("Forwarded", mock.Anything, mock.Anything, nil).Twice()
		observer.On("InboundHandled", mock.Anything, relay.Acked, http.StatusOK).Twice()
		observer.On("InboundRetried", mock.Anything).Once()

		first := service.Receive(ctx, inbound(meetingStarted))

		in := inbound(meetingStarted)
		in.Header.Set(payload.TrackingIDHeader, "trk-1")
		in.Header.Set(payload.RetryNumHeader, "1")
		retry := service.Receive(ctx, in)

		assert.Equal(t, first.Status, retry.Status)
		assert.Equal(t, first.State, retry.State)
	})
}

func TestReceiveAsync(t *testing.T) {
	t.Run("acks before forwarding and survives request cancellation", func(t *testing.T) {
		fwd := mocks.NewForwarder(t)
		background := relay.NewBackground()
		service := relay.NewService(settings(relay.Async), relay.Dependencies{Forwarder: fwd, Background: background})

		release := make(chan struct{})
		var forwardCtxErr error
		fwd.On("Forward", mock.Anything, matchRaw(meetingStarted)).
			Run(func(args mock.Arguments) {
				<-release
				forwardCtxErr = args.Get(0).(context.Context).Err()
			}).
			Return(forwarder.Result{Success: true, Status: 200}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		reply := service.Receive(ctx, inbound(meetingStarted))
		cancel()

		assert.Equal(t, http.StatusOK, reply.Status)
		body, ok := reply.Body.(relay.AckBody)
		require.True(t, ok)
		assert.True(t, body.Success)
		assert.Equal(t, "async", body.Strategy)

		close(release)
		require.NoError(t, background.Wait(context.Background()))
		assert.NoError(t, forwardCtxErr)
	})

	t.Run("failure is only logged", func(t *testing.T) {
		fwd := mocks.NewForwarder(t)
		service := relay.NewService(settings(relay.Async), relay.Dependencies{Forwarder: fwd})

		fwd.On("Forward", mock.Anything, mock.Anything).Return(forwarder.Result{Status: 500}, &forwarder.StatusError{Status: 500})

		reply := service.Receive(context.Background(), inbound(meetingStarted))

		assert.Equal(t, http.StatusOK, reply.Status)
		assert.NoError(t, reply.Err)
		require.NoError(t, service.Background().Wait(context.Background()))
	})

	t.Run("wait honours context", func(t *testing.T) {
		fwd := mocks.NewForwarder(t)
		service := relay.NewService(settings(relay.Async), relay.Dependencies{Forwarder: fwd})

		release := make(chan struct{})
		fwd.On("Forward", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { <-release }).
			Return(forwarder.Result{Success: true, Status: 200}, nil)

		service.Receive(context.Background(), inbound(meetingStarted))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := service.Background().Wait(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		close(release)
		require.NoError(t, service.Background().Wait(context.Background()))
	})
}

func TestReceiveQueued(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		pub := mocks.NewPublisher(t)
		service := relay.NewService(settings(relay.Queued), relay.Dependencies{Publisher: pub})

		pub.On("Publish", mock.Anything, relay.MatchPublishRequest(func(req relay.PublishRequest) bool {
			return req.Destination == baseURL+"/process" &&
				req.FailureCallback == baseURL+"/failure" &&
				req.Retries == 3 &&
				req.Task.RequestID == "req-1" &&
				req.Task.Tracking() == "trk-9" &&
				req.Task.EventName() == "meeting.started" &&
				string(req.Task.WebhookData) == meetingStarted
		})).Return("msg-123", nil)

		in := inbound(meetingStarted)
		in.Header.Set(payload.TrackingIDHeader, "trk-9")
		reply := service.Receive(ctx, in)

		require.NoError(t, reply.Err)
		assert.Equal(t, http.StatusOK, reply.Status)

		body, ok := reply.Body.(relay.AckBody)
		require.True(t, ok)
		assert.True(t, body.Success)
		assert.Equal(t, "msg-123", body.MessageID)
		assert.Equal(t, "queued", body.Strategy)
	})

	t.Run("public base url wins over request host", func(t *testing.T) {
		pub := mocks.NewPublisher(t)
		s := settings(relay.Queued)
		s.PublicBaseURL = "https://public.example.com/"
		s.QueueRetries = 5
		service := relay.NewService(s, relay.Dependencies{Publisher: pub})

		pub.On("Publish", mock.Anything, relay.MatchPublishRequest(func(req relay.PublishRequest) bool {
			return req.Destination == "https://public.example.com/process" && req.Retries == 5
		})).Return("msg-1", nil)

		reply := service.Receive(ctx, inbound(meetingStarted))
		assert.Equal(t, http.StatusOK, reply.Status)
	})

	t.Run("publish failure is acknowledged with failure flag", func(t *testing.T) {
		pub := mocks.NewPublisher(t)
		observer := mocks.NewObserver(t)
		service := relay.NewService(settings(relay.Queued), relay.Dependencies{Publisher: pub, Observer: observer})

		pub.On("Publish", mock.Anything, mock.Anything).Return("", errors.New("qstash unavailable"))
		observer.On("PublishFailed", mock.Anything).Once()
		observer.On("InboundHandled", mock.Anything, relay.Acked, http.StatusOK).Once()

		reply := service.Receive(ctx, inbound(meetingStarted))

		assert.Equal(t, http.StatusOK, reply.Status)
		assert.ErrorIs(t, reply.Err, relay.ErrQueuePublish)

		body, ok := reply.Body.(relay.AckBody)
		require.True(t, ok)
		assert.False(t, body.Success)
		assert.Contains(t, body.Error, "qstash unavailable")
	})

	t.Run("no publisher", func(t *testing.T) {
		service := relay.NewService(settings(relay.Queued), relay.Dependencies{})

		reply := service.Receive(ctx, inbound(meetingStarted))

		assert.Equal(t, http.StatusInternalServerError, reply.Status)
		assert.ErrorIs(t, reply.Err, relay.ErrConfiguration)
	})
}

func TestPolicy(t *testing.T) {
	callbacks := mocks.NewCallbackVerifier(t)
	callbacks.On("Configured").Return(true)

	s := settings(relay.Sync)
	s.FailurePolicy = relay.PropagateFailures
	s.QueueBackend = "qstash"
	service := relay.NewService(s, relay.Dependencies{Forwarder: mocks.NewForwarder(t), Callbacks: callbacks})

	summary := service.Policy()

	assert.Equal(t, relay.PolicySummary{
		Strategy:               "sync",
		FailurePolicy:          "propagate",
		SignaturePolicy:        "required",
		QueueBackend:           "qstash",
		QueueRetries:           3,
		SecretConfigured:       true,
		DestinationConfigured:  true,
		CallbackKeysConfigured: true,
	}, summary)
}

func TestReceiveLogging(t *testing.T) {
	ctx := context.Background()

	lastLine := func(t *testing.T, buf *bytes.Buffer) map[string]any {
		t.Helper()
		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		var entry map[string]any
		require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
		return entry
	}

	t.Run("handled line carries the event", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		fwd := mocks.NewForwarder(t)
		fwd.On("Forward", mock.Anything, mock.Anything).Return(forwarder.Result{Success: true, Status: 200}, nil)
		service := relay.NewService(settings(relay.Sync), relay.Dependencies{Forwarder: fwd, Logger: &logger})

		service.Receive(ctx, inbound(meetingStarted))

		entry := lastLine(t, &buf)
		assert.Equal(t, "webhook handled", entry["message"])
		assert.Equal(t, "meeting.started", entry["event"])
		assert.Equal(t, "req-1", entry["request_id"])
		assert.Equal(t, "acked", entry["state"])
		assert.Equal(t, []any{"received", "validated", "sync_forward", "acked"}, entry["trace"])
	})

	t.Run("warns about a truncated reply", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		fwd := mocks.NewForwarder(t)
		fwd.On("Forward", mock.Anything, mock.Anything).Return(forwarder.Result{Success: true, Status: 200, Body: "head", Truncated: true}, nil)
		service := relay.NewService(settings(relay.Sync), relay.Dependencies{Forwarder: fwd, Logger: &logger})

		reply := service.Receive(ctx, inbound(meetingStarted))

		require.NoError(t, reply.Err)
		assert.Contains(t, buf.String(), `"message":"destination reply exceeded 1MiB, body truncated"`)
		assert.Contains(t, buf.String(), `"level":"warn"`)
	})

	t.Run("rejected before parsing has no event", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		service := relay.NewService(settings(relay.Sync), relay.Dependencies{Forwarder: mocks.NewForwarder(t), Logger: &logger})

		in := inbound(meetingStarted)
		in.Header.Set(signature.SignatureHeader, "v0=bad")
		service.Receive(ctx, in)

		entry := lastLine(t, &buf)
		assert.Equal(t, "webhook handled", entry["message"])
		assert.Equal(t, "warn", entry["level"])
		assert.NotContains(t, entry, "event")
		assert.Equal(t, []any{"received", "rejected"}, entry["trace"])
	})
}
