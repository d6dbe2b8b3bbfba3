package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/go-chi/httplog"

	"github.com/marcelsud/zoom-relay/config"
	"github.com/marcelsud/zoom-relay/relay/callback"
	"github.com/marcelsud/zoom-relay/relay/redis"
)

// worker drains the Redis stream when QUEUE_BACKEND=redis.
// Callbacks are signed with QSTASH_CURRENT_SIGNING_KEY so /process verifies them like QStash calls.
func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	logger := httplog.NewLogger("zoom-relay-worker", httplog.Options{
		JSON: true,
	})
	if cfg.RedisAddr == "" {
		logger.Error().Msg("REDIS_ADDR is not set")
		return
	}
	if cfg.QStashCurrentSigningKey == "" {
		logger.Error().Msg("QSTASH_CURRENT_SIGNING_KEY is not set: callbacks cannot be signed")
		return
	}
	if cfg.QueueBackend != config.BackendRedis {
		logger.Warn().Str("queue_backend", cfg.QueueBackend).Msg("the api is not publishing to redis")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	repo, err := redis.NewRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error().Err(err).Msg("connecting to redis")
		return
	}
	defer repo.Close(ctx)

	w := redis.NewWorker(repo, callback.NewSigner(cfg.QStashCurrentSigningKey, 0), redis.WorkerOptions{
		RetryDelay:     cfg.WorkerRetryDelay(),
		ClaimIdle:      cfg.WorkerClaimIdle(),
		RequestTimeout: cfg.ForwardTimeout(),
		Logger:         logger,
	})
	if err := w.Run(ctx); err != nil {
		logger.Error().Err(err).Str("worker_id", w.ID()).Msg("worker stopped")
	}
}
