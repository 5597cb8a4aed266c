package queue

import (
	"fmt"
	"strings"

	"github.com/stocksight/stocksight/internal/config"
)

// Supported queue backends
const (
	TypeMemory = "memory"
	TypeNATS   = "nats"
	TypeRedis  = "redis"
	TypeKafka  = "kafka"
)

// NewQueue builds the configured backend. An empty type selects the
// in-process memory bus so a bare config still runs.
func NewQueue(cfg config.QueueConfig) (Queue, error) {
	switch strings.ToLower(cfg.Type) {
	case TypeMemory, "":
		return NewMemoryQueue(), nil

	case TypeNATS:
		return NewNATSQueue(cfg.URL)

	case TypeRedis:
		return NewRedisQueue(RedisConfig{
			URL:      cfg.URL,
			Password: cfg.Password,
			DB:       cfg.RedisDB,
			Stream:   cfg.RedisStream,
			Group:    cfg.RedisGroup,
			Consumer: cfg.RedisConsumer,
		})

	case TypeKafka:
		return NewKafkaQueue(KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
		})

	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: memory, nats, redis, kafka)", cfg.Type)
	}
}
