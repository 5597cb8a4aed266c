// Package queue carries pipeline stage events out of the process.
// The pipeline publishes JSON-encoded events on a handful of subjects
// under the stocksight prefix; external shells subscribe to drive
// progress displays without polling the API. All backends share the
// same fire-and-forget contract: a slow or absent broker must never
// stall a pipeline run.
package queue

import "context"

// Publisher is the side a pipeline notifier holds.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// HandlerFunc consumes one raw event payload. Returning an error asks
// the backend to redeliver where the broker supports it.
type HandlerFunc func(data []byte) error

// Subscriber is the side an external shell holds.
type Subscriber interface {
	Subscribe(subject string, fn HandlerFunc) error
	Unsubscribe(subject string) error
	Close() error
}

// Queue is a full event bus connection.
type Queue interface {
	Publisher
	Subscriber
}
