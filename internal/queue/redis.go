package queue

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis Streams backend
type RedisConfig struct {
	URL      string // Address or redis:// URL
	Password string
	DB       int
	Stream   string // Stream key prefix, one stream per subject
	Group    string // Consumer group shared by all shells
	Consumer string // This consumer's name within the group
}

// RedisQueue maps each subject to a Redis stream and reads through a
// consumer group, so several shells can split the event feed.
type RedisQueue struct {
	client *redis.Client
	cfg    RedisConfig

	mu      sync.Mutex
	readers map[string]context.CancelFunc
}

// NewRedisQueue connects and verifies the broker is reachable
func NewRedisQueue(cfg RedisConfig) (*RedisQueue, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		opts = &redis.Options{Addr: cfg.URL, Password: cfg.Password, DB: cfg.DB}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	if cfg.Stream == "" {
		cfg.Stream = "stocksight"
	}
	if cfg.Group == "" {
		cfg.Group = "stocksight-shells"
	}
	if cfg.Consumer == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "shell-1"
		}
		cfg.Consumer = host
	}

	return &RedisQueue{
		client:  client,
		cfg:     cfg,
		readers: make(map[string]context.CancelFunc),
	}, nil
}

func (q *RedisQueue) streamKey(subject string) string {
	return q.cfg.Stream + ":" + subject
}

// Publish appends the event to the subject's stream
func (q *RedisQueue) Publish(ctx context.Context, subject string, data []byte) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streamKey(subject),
		Values: map[string]interface{}{"event": data},
	}).Err()
	if err != nil {
		return fmt.Errorf("publishing to stream %s: %w", q.streamKey(subject), err)
	}
	return nil
}

// Subscribe starts a reader on the subject's stream through the
// configured consumer group
func (q *RedisQueue) Subscribe(subject string, fn HandlerFunc) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.readers[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	stream := q.streamKey(subject)
	ctx, cancel := context.WithCancel(context.Background())

	err := q.client.XGroupCreateMkStream(ctx, stream, q.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		cancel()
		return fmt.Errorf("creating consumer group on %s: %w", stream, err)
	}

	go q.consume(ctx, stream, fn)
	q.readers[subject] = cancel
	return nil
}

// consume blocks on the stream and acknowledges events the handler
// accepts. Unacknowledged events stay pending for redelivery.
func (q *RedisQueue) consume(ctx context.Context, stream string, fn HandlerFunc) {
	for ctx.Err() == nil {
		batches, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.cfg.Group,
			Consumer: q.cfg.Consumer,
			Streams:  []string{stream, ">"},
			Count:    64,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			continue
		}

		for _, batch := range batches {
			for _, msg := range batch.Messages {
				payload, ok := msg.Values["event"].(string)
				if !ok {
					// Malformed entry, ack it away
					q.client.XAck(ctx, stream, q.cfg.Group, msg.ID)
					continue
				}
				if err := fn([]byte(payload)); err != nil {
					continue
				}
				q.client.XAck(ctx, stream, q.cfg.Group, msg.ID)
			}
		}
	}
}

// Unsubscribe stops the subject's reader
func (q *RedisQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cancel, exists := q.readers[subject]
	if !exists {
		return fmt.Errorf("no subscription for subject: %s", subject)
	}
	cancel()
	delete(q.readers, subject)
	return nil
}

// Close stops all readers and closes the connection
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for subject, cancel := range q.readers {
		cancel()
		delete(q.readers, subject)
	}
	return q.client.Close()
}
