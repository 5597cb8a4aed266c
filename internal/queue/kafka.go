package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka backend. Brokers is required; the
// group id defaults so independent shells share one consumer group.
type KafkaConfig struct {
	Brokers []string
	GroupID string
}

// KafkaQueue maps each subject to a Kafka topic. Stage events are
// low-volume, so writers flush quickly instead of batching for
// throughput.
type KafkaQueue struct {
	cfg KafkaConfig

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	readers map[string]*kafkaReader
}

type kafkaReader struct {
	reader *kafka.Reader
	cancel context.CancelFunc
}

// NewKafkaQueue validates the configuration. Connections are opened
// lazily per topic.
func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "stocksight-shells"
	}
	return &KafkaQueue{
		cfg:     cfg,
		writers: make(map[string]*kafka.Writer),
		readers: make(map[string]*kafkaReader),
	}, nil
}

func (q *KafkaQueue) writer(topic string) *kafka.Writer {
	q.mu.Lock()
	defer q.mu.Unlock()

	if w, ok := q.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(q.cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	q.writers[topic] = w
	return w
}

// Publish writes the event to the subject's topic
func (q *KafkaQueue) Publish(ctx context.Context, subject string, data []byte) error {
	err := q.writer(subject).WriteMessages(ctx, kafka.Message{
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("publishing to topic %s: %w", subject, err)
	}
	return nil
}

// Subscribe starts a group consumer on the subject's topic
func (q *KafkaQueue) Subscribe(subject string, fn HandlerFunc) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.readers[subject]; exists {
		return fmt.Errorf("already subscribed to topic: %s", subject)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  q.cfg.Brokers,
		GroupID:  q.cfg.GroupID,
		Topic:    subject,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	ctx, cancel := context.WithCancel(context.Background())
	q.readers[subject] = &kafkaReader{reader: reader, cancel: cancel}

	go q.consume(ctx, reader, fn)
	return nil
}

// consume fetches messages and commits only the ones the handler
// accepted, leaving the rest for redelivery
func (q *KafkaQueue) consume(ctx context.Context, reader *kafka.Reader, fn HandlerFunc) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if err := fn(msg.Value); err != nil {
			continue
		}
		_ = reader.CommitMessages(ctx, msg)
	}
}

// Unsubscribe stops the subject's consumer
func (q *KafkaQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	r, exists := q.readers[subject]
	if !exists {
		return fmt.Errorf("no subscription for topic: %s", subject)
	}
	r.cancel()
	_ = r.reader.Close()
	delete(q.readers, subject)
	return nil
}

// Close stops every consumer and flushes every writer
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var firstErr error
	for subject, r := range q.readers {
		r.cancel()
		if err := r.reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(q.readers, subject)
	}
	for topic, w := range q.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(q.writers, topic)
	}
	return firstErr
}
