package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog"

	"github.com/marcelsud/zoom-relay/config"
	"github.com/marcelsud/zoom-relay/internal/http/chi"
	"github.com/marcelsud/zoom-relay/metrics"
	"github.com/marcelsud/zoom-relay/relay"
	"github.com/marcelsud/zoom-relay/relay/callback"
	"github.com/marcelsud/zoom-relay/relay/forwarder"
	"github.com/marcelsud/zoom-relay/relay/qstash"
	"github.com/marcelsud/zoom-relay/relay/redis"
)

const publishTimeout = 30 * time.Second

/*
 * main wires the packages together: config, queue backends, metrics and the HTTP layer.
 * Imports only go downwards: the binary imports the relay, which imports its adapters' interfaces.
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	logger := httplog.NewLogger("zoom-relay", httplog.Options{
		JSON: true,
	})
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	deps := relay.Dependencies{
		Callbacks: callback.NewReceiver(cfg.QStashCurrentSigningKey, cfg.QStashNextSigningKey),
		Logger:    &logger,
	}
	if cfg.GASEndpointURL != "" {
		deps.Forwarder = forwarder.New(cfg.GASEndpointURL, cfg.UserAgent, cfg.ForwardTimeout())
	}

	var (
		collector metrics.Collector
		lister    relay.DeadLetterLister
	)
	if cfg.RedisAddr != "" {
		repo, err := redis.NewRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Error().Err(err).Msg("connecting to redis")
			return
		}
		defer repo.Close(ctx)
		deps.DeadLetters = repo
		lister = repo
		collector = metrics.NewRedisCollector(repo)
		if cfg.QueueBackend == config.BackendRedis {
			deps.Publisher = repo
		}
	}
	if cfg.QueueBackend == config.BackendQStash && cfg.QStashToken != "" {
		deps.Publisher = qstash.NewPublisher(cfg.QStashURL, cfg.QStashToken, publishTimeout)
	}

	exporter, err := metrics.NewOTelExporter(collector)
	if err != nil {
		logger.Error().Err(err).Msg("creating metrics exporter")
		return
	}
	deps.Observer = exporter

	s := relay.NewService(cfg.Settings(), deps)
	r := chi.Handlers(ctx, s, lister, collector, exporter.ServeHTTP())
	http.Handle("/", r)
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		Addr:         ":" + cfg.Port,
		Handler:      http.DefaultServeMux,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, s.Background(), exporter, cfg.ShutdownTimeout(), ctx, errShutdown)

	policy := s.Policy()
	logger.Info().
		Str("port", cfg.Port).
		Str("strategy", policy.Strategy).
		Str("failure_policy", policy.FailurePolicy).
		Str("signature_policy", policy.SignaturePolicy).
		Str("queue_backend", policy.QueueBackend).
		Msg("listening")
	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("serving")
		return
	}
	err = <-errShutdown
	if err != nil {
		logger.Error().Err(err).Msg("shutting down")
		return
	}
	logger.Info().Msg("server stopped")
}

// shutdown stops the server, then waits for async forwards still in flight
func shutdown(server *http.Server, background *relay.Background, exporter *metrics.OTelExporter, timeout time.Duration, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), timeout)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("Forcing closing the server")
		return
	default:
		errShutdown <- fmt.Errorf("Forcing closing the server: %w", err)
		return
	}

	if err := background.Wait(ctxTimeout); err != nil {
		errShutdown <- err
		return
	}
	if err := exporter.Shutdown(ctxTimeout); err != nil {
		errShutdown <- fmt.Errorf("stopping metrics: %w", err)
		return
	}
	errShutdown <- nil
}
