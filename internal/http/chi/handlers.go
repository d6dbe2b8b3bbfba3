package chi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"

	"github.com/marcelsud/zoom-relay/metrics"
	"github.com/marcelsud/zoom-relay/relay"
)

// Handlers sets up the relay routes.
// deadLetters, queue and metricsHandler are optional; their routes are only mounted when set.
func Handlers(ctx context.Context, relayService relay.UseCase, deadLetters relay.DeadLetterLister, queue metrics.Collector, metricsHandler http.Handler) *chi.Mux {
	logger := httplog.NewLogger("zoom-relay", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.MethodNotAllowed(methodNotAllowed)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	// Zoom inbound and queue callbacks
	r.Method(http.MethodPost, "/webhook", postWebhook(relayService))
	r.Method(http.MethodPost, relay.ProcessPath, postProcess(relayService))
	r.Method(http.MethodPost, relay.FailurePath, postFailure(relayService))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", getStatus(relayService).ServeHTTP)
		if deadLetters != nil {
			r.Get("/dead-letters", getDeadLetters(deadLetters).ServeHTTP)
		}
		if queue != nil {
			r.Get("/queue", getQueue(queue).ServeHTTP)
		}
	})

	return r
}
