package chi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"

	"github.com/marcelsud/zoom-relay/metrics"
	"github.com/marcelsud/zoom-relay/relay"
)

/* HTTP layer DTOs for the relay API
 * Separate from domain entities to avoid leaking internal structure
 */

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500
)

// errorResponse is the body of errors raised by the HTTP layer itself
type errorResponse struct {
	Error string `json:"error"`
}

// deadLettersResponse represents the dead letter listing
type deadLettersResponse struct {
	Count       int                `json:"count"`
	DeadLetters []deadLetterResult `json:"deadLetters"`
}

type deadLetterResult struct {
	MessageID    string          `json:"messageId"`
	RequestID    string          `json:"requestId,omitempty"`
	TrackingID   string          `json:"trackingId,omitempty"`
	Event        string          `json:"event,omitempty"`
	Destination  string          `json:"destination,omitempty"`
	LastStatus   int             `json:"lastStatus"`
	LastResponse string          `json:"lastResponse,omitempty"`
	Attempts     int             `json:"attempts"`
	MaxRetries   int             `json:"maxRetries"`
	Error        string          `json:"error,omitempty"`
	Task         json.RawMessage `json:"task,omitempty"`
	FailedAt     time.Time       `json:"failedAt"`
}

// postWebhook handles POST /webhook
func postWebhook(relayService relay.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		reply := relayService.Receive(withLogger(r), relay.Inbound{
			RawBody:    body,
			Header:     r.Header,
			BaseURL:    baseURL(r),
			RequestID:  middleware.GetReqID(r.Context()),
			ReceivedAt: time.Now(),
		})
		writeReply(w, reply)
	})
}

// postProcess handles POST /process, called by the queue
func postProcess(relayService relay.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		reply := relayService.Process(withLogger(r), relay.TaskInbound{
			RawBody: body,
			Header:  r.Header,
			BaseURL: baseURL(r),
		})
		writeReply(w, reply)
	})
}

// postFailure handles POST /failure, called by the queue after the last retry
func postFailure(relayService relay.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		reply := relayService.RecordFailure(withLogger(r), relay.TaskInbound{
			RawBody: body,
			Header:  r.Header,
			BaseURL: baseURL(r),
		})
		writeReply(w, reply)
	})
}

// getStatus handles GET /v1/status
func getStatus(relayService relay.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, relayService.Policy())
	})
}

// getQueue handles GET /v1/queue
func getQueue(queue metrics.Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, err := queue.Collect(r.Context())
		if err != nil {
			l := httplog.LogEntry(r.Context())
			l.Error().Err(err).Msg("collecting queue metrics")
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Queue metrics unavailable"})
			return
		}
		if m.Workers == nil {
			m.Workers = []metrics.WorkerInfo{}
		}
		writeJSON(w, http.StatusOK, m)
	})
}

// getDeadLetters handles GET /v1/dead-letters?limit=N
func getDeadLetters(deadLetters relay.DeadLetterLister) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := defaultDeadLetterLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
				return
			}
			limit = min(n, maxDeadLetterLimit)
		}

		list, err := deadLetters.List(r.Context(), limit)
		if err != nil {
			l := httplog.LogEntry(r.Context())
			l.Error().Err(err).Msg("listing dead letters")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to list dead letters"})
			return
		}

		results := make([]deadLetterResult, 0, len(list))
		for _, dl := range list {
			results = append(results, deadLetterResult{
				MessageID:    dl.MessageID,
				RequestID:    dl.RequestID,
				TrackingID:   dl.TrackingID,
				Event:        dl.Event,
				Destination:  dl.Destination,
				LastStatus:   dl.LastStatus,
				LastResponse: dl.LastResponse,
				Attempts:     dl.Attempts,
				MaxRetries:   dl.MaxRetries,
				Error:        dl.Error,
				Task:         dl.Task,
				FailedAt:     dl.FailedAt,
			})
		}

		writeJSON(w, http.StatusOK, deadLettersResponse{Count: len(results), DeadLetters: results})
	})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
}

// readBody reads the raw body; signatures are computed over these exact bytes
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Failed to read request body"})
		return nil, false
	}
	return body, true
}

// withLogger attaches the request logger so the relay logs carry the request id
func withLogger(r *http.Request) context.Context {
	logger := httplog.LogEntry(r.Context())
	return logger.WithContext(r.Context())
}

// baseURL derives the externally visible origin of this deployment
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}

	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + host
}

func writeReply(w http.ResponseWriter, reply relay.Reply) {
	writeJSON(w, reply.Status, reply.Body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
