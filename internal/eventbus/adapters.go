package eventbus

import (
	"context"

	"github.com/nodeflow/engine/internal/approval"
	"github.com/nodeflow/engine/internal/scheduler"
)

// SchedulerPublisher adapts a Bus to scheduler.EventPublisher, so the
// Scheduler's EXECUTION_*/NODE_* events flow onto the bus without the
// bus importing the scheduler's internal Event shape anywhere but here.
type SchedulerPublisher struct {
	Bus *Bus
}

func (p SchedulerPublisher) Publish(ctx context.Context, e scheduler.Event) error {
	return p.Bus.Publish(ctx, Event{
		Type:        EventType(e.Type),
		ExecutionID: e.ExecutionID,
		NodeID:      e.NodeID,
		Data:        e.Data,
	})
}

// ApprovalPublisher adapts a Bus to approval.Publisher.
type ApprovalPublisher struct {
	Bus *Bus
}

func (p ApprovalPublisher) Publish(ctx context.Context, eventType, executionID, nodeID string, data map[string]interface{}) error {
	return p.Bus.Publish(ctx, Event{
		Type:        EventType(eventType),
		ExecutionID: executionID,
		NodeID:      nodeID,
		Data:        data,
	})
}

var (
	_ scheduler.EventPublisher = SchedulerPublisher{}
	_ approval.Publisher       = ApprovalPublisher{}
)
