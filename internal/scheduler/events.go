package scheduler

import "context"

// Event is the Scheduler's outbound notification, published on every
// lifecycle transition (§4.8's ten event types). Kept generic here —
// internal/eventbus owns the typed EXECUTION_*/NODE_*/APPROVAL_* vocabulary
// and is wired in as an EventPublisher, the same narrow-interface-first
// pattern the teacher uses for its own Broadcaster.
type Event struct {
	Type        string
	ExecutionID string
	NodeID      string
	Data        map[string]interface{}
}

const (
	EventExecutionStarted   = "EXECUTION_STARTED"
	EventExecutionCompleted = "EXECUTION_COMPLETED"
	EventExecutionFailed    = "EXECUTION_FAILED"
	EventExecutionCancelled = "EXECUTION_CANCELLED"
	EventExecutionPaused    = "EXECUTION_PAUSED"
	EventExecutionResumed   = "EXECUTION_RESUMED"
	EventNodeStarted        = "NODE_STARTED"
	EventNodeCompleted      = "NODE_COMPLETED"
	EventNodeFailed         = "NODE_FAILED"
)

// EventPublisher is the Scheduler's only dependency on the Event Bus.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher discards every event; useful for tests and for running
// a scheduler with no event bus wired.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event Event) error { return nil }
