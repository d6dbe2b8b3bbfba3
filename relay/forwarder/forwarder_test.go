package forwarder_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marcelsud/zoom-relay/relay/forwarder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	method      string
	contentType string
	userAgent   string
	body        []byte
}

func destination(t *testing.T, status int, body string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			got.method = r.Method
			got.contentType = r.Header.Get("Content-Type")
			got.userAgent = r.Header.Get("User-Agent")
			got.body, _ = io.ReadAll(r.Body)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestForward(t *testing.T) {
	ctx := context.Background()

	t.Run("success - JSON response", func(t *testing.T) {
		var got captured
		srv := destination(t, http.StatusOK, `{"ok":true}`, &got)
		f := forwarder.New(srv.URL, "", 5*time.Second)

		result, err := f.Forward(ctx, json.RawMessage(`{"event":"meeting.started"}`))
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, http.StatusOK, result.Status)
		assert.Equal(t, map[string]any{"ok": true}, result.Body)
		assert.GreaterOrEqual(t, result.DurationMs(), int64(0))

		assert.Equal(t, http.MethodPost, got.method)
		assert.Equal(t, "application/json", got.contentType)
		assert.Equal(t, forwarder.DefaultUserAgent, got.userAgent)
		assert.JSONEq(t, `{"event":"meeting.started"}`, string(got.body))
	})

	t.Run("success - plain text response", func(t *testing.T) {
		srv := destination(t, http.StatusOK, "plain text", nil)
		f := forwarder.New(srv.URL, "", 5*time.Second)

		result, err := f.Forward(ctx, map[string]string{"event": "x"})
		require.NoError(t, err)
		assert.Equal(t, "plain text", result.Body)
	})

	t.Run("success - oversized reply is truncated and drained", func(t *testing.T) {
		head := strings.Repeat("a", 1<<20)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(head))
			w.(http.Flusher).Flush()
			time.Sleep(100 * time.Millisecond)
			w.Write([]byte("tail that is never kept"))
		}))
		t.Cleanup(srv.Close)

		result, err := forwarder.New(srv.URL, "", 5*time.Second).Forward(ctx, map[string]string{"event": "x"})
		require.NoError(t, err)
		assert.True(t, result.Truncated)
		assert.Equal(t, head, result.Body)
		assert.GreaterOrEqual(t, result.Duration, 100*time.Millisecond)
	})

	t.Run("success - reply at the limit is kept whole", func(t *testing.T) {
		body := strings.Repeat("b", 1<<20)
		srv := destination(t, http.StatusOK, body, nil)

		result, err := forwarder.New(srv.URL, "", 5*time.Second).Forward(ctx, map[string]string{"event": "x"})
		require.NoError(t, err)
		assert.False(t, result.Truncated)
		assert.Equal(t, body, result.Body)
	})

	t.Run("success - custom user agent", func(t *testing.T) {
		var got captured
		srv := destination(t, http.StatusOK, "", &got)
		f := forwarder.New(srv.URL, "My-Relay/1.0", 5*time.Second)

		result, err := f.Forward(ctx, map[string]string{})
		require.NoError(t, err)
		assert.Equal(t, "", result.Body)
		assert.Equal(t, "My-Relay/1.0", got.userAgent)
	})

	t.Run("failure - 500 with JSON body", func(t *testing.T) {
		srv := destination(t, http.StatusInternalServerError, `{"error":"x"}`, nil)
		f := forwarder.New(srv.URL, "", 5*time.Second)

		result, err := f.Forward(ctx, map[string]string{"event": "x"})
		require.Error(t, err)

		assert.False(t, result.Success)
		assert.Equal(t, http.StatusInternalServerError, result.Status)
		assert.Equal(t, map[string]any{"error": "x"}, result.Body)

		var statusErr *forwarder.StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
		assert.Contains(t, err.Error(), `{"error":"x"}`)
	})

	t.Run("failure - network error reports duration", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		f := forwarder.New(url, "", time.Second)

		result, err := f.Forward(ctx, map[string]string{})
		require.Error(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, 0, result.Status)
		assert.Contains(t, err.Error(), "sending request")

		var statusErr *forwarder.StatusError
		assert.False(t, errors.As(err, &statusErr))
	})

	t.Run("failure - no destination", func(t *testing.T) {
		f := forwarder.New("", "", time.Second)

		_, err := f.Forward(ctx, map[string]string{})
		assert.ErrorIs(t, err, forwarder.ErrNoDestination)
	})

	t.Run("failure - unmarshalable payload", func(t *testing.T) {
		f := forwarder.New("http://127.0.0.1:1", "", time.Second)

		_, err := f.Forward(ctx, make(chan int))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "marshaling payload")
	})
}
