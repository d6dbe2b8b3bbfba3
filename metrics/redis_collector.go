package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/zoom-relay/relay/redis"
)

// RedisCollector implements the Collector interface for the Redis-backed queue
type RedisCollector struct {
	repo *redis.Repository
}

// NewRedisCollector creates a new Redis metrics collector
func NewRedisCollector(repo *redis.Repository) *RedisCollector {
	return &RedisCollector{
		repo: repo,
	}
}

// Collect gathers all metrics from Redis
func (c *RedisCollector) Collect(ctx context.Context) (Metrics, error) {
	queueLength, err := c.GetQueueLength(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting queue length: %w", err)
	}

	deadLetters, err := c.GetDeadLetterCount(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting dead letter count: %w", err)
	}

	workers, err := c.GetActiveWorkers(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting active workers: %w", err)
	}

	return Metrics{
		QueueLength: queueLength,
		DeadLetters: deadLetters,
		Workers:     workers,
		Timestamp:   time.Now(),
	}, nil
}

// GetQueueLength returns the number of tasks in the stream
func (c *RedisCollector) GetQueueLength(ctx context.Context) (int64, error) {
	return c.repo.QueueLength(ctx)
}

// GetDeadLetterCount returns the number of stored dead letters
func (c *RedisCollector) GetDeadLetterCount(ctx context.Context) (int64, error) {
	return c.repo.DeadLetterCount(ctx)
}

// GetActiveWorkers returns information about active workers
func (c *RedisCollector) GetActiveWorkers(ctx context.Context) ([]WorkerInfo, error) {
	heartbeats, err := c.repo.GetActiveWorkers(ctx)
	if err != nil {
		return nil, err
	}

	workers := make([]WorkerInfo, 0, len(heartbeats))
	for _, hb := range heartbeats {
		workers = append(workers, WorkerInfo{
			WorkerID:      hb.WorkerID,
			Status:        hb.Status,
			Processed:     hb.Processed,
			LastHeartbeat: hb.LastHeartbeat,
		})
	}
	return workers, nil
}
