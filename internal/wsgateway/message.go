package wsgateway

import (
	"time"

	"github.com/nodeflow/engine/internal/eventbus"
)

// wireMessage is the JSON frame pushed to subscribers, shaped after the
// teacher's ExecutionEvent but carrying the full EXECUTION_*/NODE_*/
// APPROVAL_* vocabulary instead of a fixed execution/step split.
type wireMessage struct {
	Type        eventbus.EventType     `json:"type"`
	ExecutionID string                 `json:"executionId"`
	NodeID      string                 `json:"nodeId,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

func toWireMessage(e eventbus.Event) wireMessage {
	return wireMessage{
		Type:        e.Type,
		ExecutionID: e.ExecutionID,
		NodeID:      e.NodeID,
		Data:        e.Data,
		Timestamp:   e.OccurredAt,
	}
}
