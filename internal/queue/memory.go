package queue

import (
	"context"
	"fmt"
	"sync"
)

// memoryBuffer is how many undelivered events one subscriber may hold
// before new ones are dropped.
const memoryBuffer = 1024

// MemoryQueue is the in-process backend, the default for tests and
// single-binary deployments. Events fan out to every subscriber of a
// subject over buffered channels; with nobody listening an event is
// dropped.
type MemoryQueue struct {
	mu     sync.Mutex
	subs   map[string][]*memorySub
	closed bool
}

type memorySub struct {
	ch   chan []byte
	stop chan struct{}
}

// NewMemoryQueue creates an empty in-process bus
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{subs: make(map[string][]*memorySub)}
}

// Publish delivers the payload to every current subscriber of the
// subject. A subscriber whose buffer is full misses the event rather
// than blocking the publisher.
func (q *MemoryQueue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue is closed")
	}
	targets := make([]*memorySub, len(q.subs[subject]))
	copy(targets, q.subs[subject])
	q.mu.Unlock()

	payload := make([]byte, len(data))
	copy(payload, data)

	for _, sub := range targets {
		select {
		case sub.ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers a handler for a subject. A subject may have any
// number of subscribers; each gets every event.
func (q *MemoryQueue) Subscribe(subject string, fn HandlerFunc) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	sub := &memorySub{
		ch:   make(chan []byte, memoryBuffer),
		stop: make(chan struct{}),
	}
	q.subs[subject] = append(q.subs[subject], sub)

	go func() {
		for {
			select {
			case <-sub.stop:
				return
			case data := <-sub.ch:
				// Handler errors are terminal here; there is no broker
				// to redeliver from
				_ = fn(data)
			}
		}
	}()

	return nil
}

// Unsubscribe drops every subscriber of the subject
func (q *MemoryQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	subs, ok := q.subs[subject]
	if !ok {
		return fmt.Errorf("no subscription for subject: %s", subject)
	}
	for _, sub := range subs {
		close(sub.stop)
	}
	delete(q.subs, subject)
	return nil
}

// Close stops all subscribers; further publishes fail
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	for subject, subs := range q.subs {
		for _, sub := range subs {
			close(sub.stop)
		}
		delete(q.subs, subject)
	}
	return nil
}
