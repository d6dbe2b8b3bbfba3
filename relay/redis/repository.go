package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/marcelsud/zoom-relay/relay"
)

/* Redis Streams implementation of relay.Publisher
 * Uses one stream with a consumer group as the self-hosted task queue
 * Uses a capped list for dead letters (relay.DeadLetterRecorder / relay.DeadLetterLister)
 */

const (
	streamKey      = "relay:tasks"       // Stream holding queued tasks
	consumerGroup  = "relay-workers"     // Consumer group shared by every worker
	deadLetterKey  = "relay:deadletters" // List of dead letters, newest first
	maxDeadLetters = 1000                // Older dead letters are trimmed
)

// Message is a task read from the stream
type Message struct {
	StreamID        string
	MessageID       string
	Destination     string
	FailureCallback string
	MaxRetries      int
	Body            []byte
	CreatedAt       time.Time
}

type Repository struct {
	client *redis.Client
}

// NewRepository creates a new Redis repository
func NewRepository(addr, password string, db int) (*Repository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Repository{
		client: client,
	}, nil
}

// Publish adds a task to the stream and returns the generated message ID
func (r *Repository) Publish(ctx context.Context, req relay.PublishRequest) (string, error) {
	body, err := req.Task.Bytes()
	if err != nil {
		return "", err
	}

	// Create consumer group if it doesn't exist
	r.ensureGroup(ctx)

	messageID := "msg_" + uuid.New().String()
	_, err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{
			"message_id":       messageID,
			"destination":      req.Destination,
			"failure_callback": req.FailureCallback,
			"max_retries":      req.Retries,
			"body":             body,
			"created_at":       time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("adding to stream: %w", err)
	}

	return messageID, nil
}

// Consume returns the next task for the given consumer. A task another consumer read
// and left unacknowledged for claimIdle is claimed first; otherwise it blocks up to one
// second for a new one. A zero claimIdle only reads new tasks.
func (r *Repository) Consume(ctx context.Context, consumer string, claimIdle time.Duration) ([]Message, error) {
	r.ensureGroup(ctx)

	if claimIdle > 0 {
		claimed, _, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   streamKey,
			Group:    consumerGroup,
			Consumer: consumer,
			MinIdle:  claimIdle,
			Start:    "0-0",
			Count:    1,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("claiming stale tasks: %w", err)
		}
		if len(claimed) > 0 {
			return parseMessages(claimed), nil
		}
	}

	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: consumer,
		Streams:  []string{streamKey, ">"},
		Count:    1,
		Block:    1 * time.Second,
	}).Result()
	if errors.Is(err, redis.Nil) {
		// No messages available
		return []Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return []Message{}, nil
	}

	return parseMessages(streams[0].Messages), nil
}

// Acknowledge removes a handled task from the stream
func (r *Repository) Acknowledge(ctx context.Context, streamID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAck(ctx, streamKey, consumerGroup, streamID)
		pipe.XDel(ctx, streamKey, streamID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("acknowledging message: %w", err)
	}
	return nil
}

// Record stores a dead letter, keeping only the most recent ones
func (r *Repository) Record(ctx context.Context, dl relay.DeadLetter) error {
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshaling dead letter: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, deadLetterKey, data)
		pipe.LTrim(ctx, deadLetterKey, 0, maxDeadLetters-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing dead letter: %w", err)
	}
	return nil
}

// List returns up to limit dead letters, newest first
func (r *Repository) List(ctx context.Context, limit int) ([]relay.DeadLetter, error) {
	if limit <= 0 || limit > maxDeadLetters {
		limit = maxDeadLetters
	}

	items, err := r.client.LRange(ctx, deadLetterKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing dead letters: %w", err)
	}

	letters := make([]relay.DeadLetter, 0, len(items))
	for _, item := range items {
		var dl relay.DeadLetter
		if err := json.Unmarshal([]byte(item), &dl); err != nil {
			continue
		}
		letters = append(letters, dl)
	}
	return letters, nil
}

// QueueLength returns the number of tasks still in the stream
func (r *Repository) QueueLength(ctx context.Context) (int64, error) {
	n, err := r.client.XLen(ctx, streamKey).Result()
	if err != nil {
		return 0, fmt.Errorf("getting stream length: %w", err)
	}
	return n, nil
}

// DeadLetterCount returns the number of stored dead letters
func (r *Repository) DeadLetterCount(ctx context.Context) (int64, error) {
	n, err := r.client.LLen(ctx, deadLetterKey).Result()
	if err != nil {
		return 0, fmt.Errorf("getting dead letter count: %w", err)
	}
	return n, nil
}

// Close closes the Redis connection
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Close()
}

// Helper functions

func (r *Repository) ensureGroup(ctx context.Context) {
	// Ignore error if group already exists
	r.client.XGroupCreateMkStream(ctx, streamKey, consumerGroup, "0")
}

func parseMessages(msgs []redis.XMessage) []Message {
	messages := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		messages = append(messages, parseMessage(msg))
	}
	return messages
}

func parseMessage(msg redis.XMessage) Message {
	str := func(k string) string {
		s, _ := msg.Values[k].(string)
		return s
	}
	return Message{
		StreamID:        msg.ID,
		MessageID:       str("message_id"),
		Destination:     str("destination"),
		FailureCallback: str("failure_callback"),
		MaxRetries:      int(parseInt64(str("max_retries"))),
		Body:            []byte(str("body")),
		CreatedAt:       time.Unix(parseInt64(str("created_at")), 0),
	}
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
