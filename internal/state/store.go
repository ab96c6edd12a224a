// Package state implements the per-execution scratch store (§4.3):
// node outputs, execution status, and branch decisions that must
// survive suspension and be visible read-your-writes within one
// execution. Grounded on the adapter-over-interface style of
// internal/executor/parallel.go and subworkflow.go.
package state

import (
	"context"

	"github.com/nodeflow/engine/internal/execmodel"
)

// Snapshot is everything the State Manager holds for one execution.
type Snapshot struct {
	Status         execmodel.ExecutionStatus
	NodeOutputs    map[string]map[string]interface{}
	SkippedNodes   map[string]bool
	BranchDecisions map[string][]string
}

// Store is the State Manager's contract (§4.3).
type Store interface {
	// InitExecution creates a scratch entry; idempotent.
	InitExecution(ctx context.Context, execID string, initial map[string]interface{}) error

	// RecordNodeOutput atomically stores nodeID's output; subsequent
	// GetNodeOutput calls within the same execution observe it
	// immediately (happens-before guarantee, §5).
	RecordNodeOutput(ctx context.Context, execID, nodeID string, output map[string]interface{}) error

	GetNodeOutput(ctx context.Context, execID, nodeID string) (map[string]interface{}, bool, error)

	// RecordBranchDecision records which outbound handles a branching
	// node selected.
	RecordBranchDecision(ctx context.Context, execID, nodeID string, branches []string) error

	GetBranchDecision(ctx context.Context, execID, nodeID string) ([]string, bool, error)

	// MarkSkipped records that a node was skipped because no selected
	// branch reaches it (§9: implicit scheduler state, not a persisted
	// NodeExecution boolean).
	MarkSkipped(ctx context.Context, execID, nodeID string) error

	IsSkipped(ctx context.Context, execID, nodeID string) (bool, error)

	UpdateExecutionStatus(ctx context.Context, execID string, status execmodel.ExecutionStatus) error

	GetExecutionStatus(ctx context.Context, execID string) (execmodel.ExecutionStatus, bool, error)

	// GetExecutionOutput returns all node outputs recorded so far, used
	// for trace/debug UI and archival.
	GetExecutionOutput(ctx context.Context, execID string) (map[string]map[string]interface{}, error)

	// CleanupExecution discards all scratch memory for execID; called
	// at archival, idempotent.
	CleanupExecution(ctx context.Context, execID string) error
}
