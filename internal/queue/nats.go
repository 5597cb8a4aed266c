package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// All pipeline events land in one JetStream stream so a shell can
// replay a session's history after reconnecting.
const (
	natsStreamName    = "STOCKSIGHT_EVENTS"
	natsStreamSubject = "stocksight.>"
)

// NATSQueue is the JetStream backend. Events are persisted by the
// broker and consumers are durable, so a restarted shell resumes where
// it left off.
type NATSQueue struct {
	conn *nats.Conn
	js   nats.JetStreamContext

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NewNATSQueue connects to the broker and makes sure the event stream
// exists
func NewNATSQueue(url string) (*NATSQueue, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	q, err := NewNATSQueueWithConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return q, nil
}

// NewNATSQueueWithConn wraps an existing connection. The caller keeps
// ownership of the connection on error.
func NewNATSQueueWithConn(conn *nats.Conn) (*NATSQueue, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("opening JetStream context: %w", err)
	}
	if _, err := js.StreamInfo(natsStreamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     natsStreamName,
			Subjects: []string{natsStreamSubject},
			Storage:  nats.FileStorage,
		})
		if err != nil {
			return nil, fmt.Errorf("creating stream %s: %w", natsStreamName, err)
		}
	}
	return &NATSQueue{
		conn: conn,
		js:   js,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish appends the event to the stream. Subjects must live under
// the stocksight prefix or the broker has no stream to store them in.
func (q *NATSQueue) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := q.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// Subscribe attaches a durable consumer to the subject, replaying any
// events already in the stream
func (q *NATSQueue) Subscribe(subject string, fn HandlerFunc) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.subs[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	sub, err := q.js.Subscribe(subject, func(msg *nats.Msg) {
		if err := fn(msg.Data); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(consumerName(subject)),
		nats.ManualAck(),
		nats.AckWait(30*time.Second),
		nats.MaxDeliver(3),
		nats.MaxAckPending(256),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", subject, err)
	}

	q.subs[subject] = sub
	return nil
}

// Unsubscribe detaches the subject's consumer
func (q *NATSQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	sub, exists := q.subs[subject]
	if !exists {
		return fmt.Errorf("no subscription for subject: %s", subject)
	}
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", subject, err)
	}
	delete(q.subs, subject)
	return nil
}

// Close detaches all consumers and closes the connection
func (q *NATSQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for subject, sub := range q.subs {
		_ = sub.Unsubscribe()
		delete(q.subs, subject)
	}
	q.conn.Close()
	return nil
}

// consumerName maps a subject to a valid durable consumer name.
// Consumer names allow only A-Z, a-z, 0-9, dash and underscore.
func consumerName(subject string) string {
	out := []byte("shell-")
	for i := 0; i < len(subject); i++ {
		c := subject[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
