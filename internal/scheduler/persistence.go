package scheduler

import (
	"context"

	"github.com/nodeflow/engine/internal/execmodel"
)

// Persistence is the Scheduler's narrow view of durable storage — it
// needs to create and update Execution and NodeExecution rows, nothing
// else. internal/store implements this against Postgres; tests use an
// in-memory fake. Grounded on the teacher's narrow-interface style in
// internal/workflow/nodes/node.go (WorkflowRepository/WorkflowExecutor).
type Persistence interface {
	SaveExecution(ctx context.Context, exec *execmodel.Execution) error
	UpdateExecution(ctx context.Context, exec *execmodel.Execution) error
	SaveNodeExecution(ctx context.Context, ne *execmodel.NodeExecution) error
	UpdateNodeExecution(ctx context.Context, ne *execmodel.NodeExecution) error
}
