package metrics

import (
	"context"
	"time"
)

// Metrics represents the current state of the self-hosted queue.
type Metrics struct {
	// QueueLength is the number of tasks waiting in the stream
	QueueLength int64 `json:"queue_length"`

	// DeadLetters is the number of stored dead letters
	DeadLetters int64 `json:"dead_letters"`

	// Workers lists workers with a live heartbeat
	Workers []WorkerInfo `json:"workers"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// WorkerInfo represents information about an active worker.
type WorkerInfo struct {
	// WorkerID is a unique identifier for the worker
	WorkerID string `json:"worker_id"`

	// Status is the current status of the worker (e.g., "idle", "processing")
	Status string `json:"status"`

	// Processed is the number of tasks the worker settled since it started
	Processed int64 `json:"processed"`

	// LastHeartbeat is the timestamp of the last heartbeat
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Collector defines the interface for collecting queue metrics.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Metrics, error)

	// GetQueueLength returns the number of pending tasks
	GetQueueLength(ctx context.Context) (int64, error)

	// GetDeadLetterCount returns the number of stored dead letters
	GetDeadLetterCount(ctx context.Context) (int64, error)

	// GetActiveWorkers returns information about active workers
	GetActiveWorkers(ctx context.Context) ([]WorkerInfo, error)
}
