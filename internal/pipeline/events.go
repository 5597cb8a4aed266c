package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stocksight/stocksight/internal/logging"
	"github.com/stocksight/stocksight/internal/queue"
)

// Pipeline stage names used in progress events
const (
	StageSchema   = "schema"
	StageLoad     = "load"
	StageQuality  = "quality"
	StageRepair   = "repair"
	StageCluster  = "cluster"
	StageAnomaly  = "anomaly"
	StageFeatures = "features"
	StageForecast = "forecast"
)

// Event subjects on the queue
const (
	SubjectProgress  = "stocksight.pipeline.progress"
	SubjectCompleted = "stocksight.pipeline.completed"
	SubjectFailed    = "stocksight.pipeline.failed"
)

// Event is one progress report published to the event bus. External
// shells subscribe to these instead of polling.
type Event struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier publishes stage events. A nil publisher turns the bus side
// into a no-op so engines can run without a queue wired up; an optional
// callback delivers the same events in-process.
type Notifier struct {
	sessionID string
	publisher queue.Publisher
	log       *logging.Logger
	callback  func(Event)
}

// NewNotifier creates a notifier for one session
func NewNotifier(sessionID string, publisher queue.Publisher, log *logging.Logger) *Notifier {
	return &Notifier{sessionID: sessionID, publisher: publisher, log: log}
}

// OnEvent registers an in-process observer called synchronously for
// every event, before it is published
func (n *Notifier) OnEvent(fn func(Event)) {
	n.callback = fn
}

// Progress publishes a progress event for a stage
func (n *Notifier) Progress(ctx context.Context, stage string, done, total int) {
	n.publish(ctx, SubjectProgress, Event{
		SessionID: n.sessionID,
		Stage:     stage,
		Done:      done,
		Total:     total,
		Timestamp: time.Now().UTC(),
	})
}

// Completed publishes a stage completion event
func (n *Notifier) Completed(ctx context.Context, stage, message string) {
	n.publish(ctx, SubjectCompleted, Event{
		SessionID: n.sessionID,
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// Failed publishes a stage failure event
func (n *Notifier) Failed(ctx context.Context, stage string, err error) {
	n.publish(ctx, SubjectFailed, Event{
		SessionID: n.sessionID,
		Stage:     stage,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	})
}

func (n *Notifier) publish(ctx context.Context, subject string, event Event) {
	if n == nil {
		return
	}
	if n.callback != nil {
		n.callback(event)
	}
	if n.publisher == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := n.publisher.Publish(ctx, subject, data); err != nil && n.log != nil {
		// Progress is best effort; a full or down bus must not stall a run
		n.log.Warn("Failed to publish pipeline event",
			"subject", subject,
			"stage", event.Stage,
			"error", err)
	}
}
