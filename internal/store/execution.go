// Package store is the sqlx/Postgres persistence layer backing the
// Scheduler, Approval Coordinator, Form Coordinator, and Archival
// Service, grounded on internal/flow/repository.go's sqlx pattern
// (engineerr-wrapped sql.ErrNoRows/transient errors). No function here
// sets the `app.tenant_id` GUC; ListExecutions and Stats filter on
// tenant_id, the other queries address rows by id.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nodeflow/engine/internal/engineerr"
	"github.com/nodeflow/engine/internal/execmodel"
)

// ExecutionStore implements scheduler.Persistence.
type ExecutionStore struct {
	db *sqlx.DB
}

func NewExecutionStore(db *sqlx.DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

func (s *ExecutionStore) SaveExecution(ctx context.Context, exec *execmodel.Execution) error {
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution (
			id, tenant_id, flow_id, flow_version_id, status, trigger_type, triggered_by,
			trigger_input, trigger_context, output_data, error_message, started_at,
			completed_at, duration_ms, retry_count, max_retries, retry_of,
			waiting_node_id, pause_reason, cancel_reason, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)`,
		exec.ID, exec.TenantID, exec.FlowID, exec.FlowVersionID, exec.Status, exec.TriggerType, exec.TriggeredBy,
		exec.TriggerInput, exec.TriggerContext, exec.OutputData, exec.ErrorMessage, exec.StartedAt,
		exec.CompletedAt, exec.DurationMs, exec.RetryCount, exec.MaxRetries, exec.RetryOf,
		exec.WaitingNodeID, exec.PauseReason, exec.CancelReason, exec.CreatedAt)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "insert execution", err)
	}
	return nil
}

func (s *ExecutionStore) UpdateExecution(ctx context.Context, exec *execmodel.Execution) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE execution SET
			status = $2, output_data = $3, error_message = $4, started_at = $5,
			completed_at = $6, duration_ms = $7, retry_count = $8, waiting_node_id = $9,
			pause_reason = $10, cancel_reason = $11
		WHERE id = $1`,
		exec.ID, exec.Status, exec.OutputData, exec.ErrorMessage, exec.StartedAt,
		exec.CompletedAt, exec.DurationMs, exec.RetryCount, exec.WaitingNodeID,
		exec.PauseReason, exec.CancelReason)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "update execution", err)
	}
	return requireRowAffected(res, "execution", exec.ID)
}

func (s *ExecutionStore) GetByID(ctx context.Context, executionID string) (*execmodel.Execution, error) {
	var exec execmodel.Execution
	err := s.db.GetContext(ctx, &exec, `SELECT * FROM execution WHERE id = $1`, executionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engineerr.New(engineerr.KindNotFound, "execution not found: "+executionID)
	}
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "get execution", err)
	}
	return &exec, nil
}

func (s *ExecutionStore) SaveNodeExecution(ctx context.Context, ne *execmodel.NodeExecution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO node_execution (
			id, execution_id, node_id, component_name, component_version, status,
			started_at, completed_at, duration_ms, retry_count, input_data,
			output_data, error_message, error_stack
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		ne.ID, ne.ExecutionID, ne.NodeID, ne.ComponentName, ne.ComponentVersion, ne.Status,
		ne.StartedAt, ne.CompletedAt, ne.DurationMs, ne.RetryCount, ne.InputData,
		ne.OutputData, ne.ErrorMessage, ne.ErrorStack)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "insert node_execution", err)
	}
	return nil
}

func (s *ExecutionStore) UpdateNodeExecution(ctx context.Context, ne *execmodel.NodeExecution) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE node_execution SET
			status = $3, completed_at = $4, duration_ms = $5, retry_count = $6,
			output_data = $7, error_message = $8, error_stack = $9
		WHERE execution_id = $1 AND node_id = $2`,
		ne.ExecutionID, ne.NodeID, ne.Status, ne.CompletedAt, ne.DurationMs, ne.RetryCount,
		ne.OutputData, ne.ErrorMessage, ne.ErrorStack)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "update node_execution", err)
	}
	return requireRowAffected(res, "node_execution", ne.ExecutionID+"/"+ne.NodeID)
}

// ListExecutions answers the `listExecutions(filter)` wire operation:
// a tenant-scoped, keyset-paginated query over (created_at, id), newest
// first, narrowed by the filter's optional flow/status/trigger/time
// fields.
func (s *ExecutionStore) ListExecutions(ctx context.Context, filter execmodel.ExecutionFilter) (*execmodel.ExecutionListResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, engineerr.Wrap(engineerr.KindValidation, "invalid execution filter", err)
	}
	cursor, err := execmodel.DecodePaginationCursor(filter.Cursor)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindValidation, "invalid cursor", err)
	}

	query := `SELECT * FROM execution WHERE tenant_id = $1`
	args := []interface{}{filter.TenantID}

	if filter.FlowID != "" {
		args = append(args, filter.FlowID)
		query += fmt.Sprintf(" AND flow_id = $%d", len(args))
	}
	if len(filter.Status) > 0 {
		args = append(args, pq.Array(filter.Status))
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if filter.TriggerType != "" {
		args = append(args, filter.TriggerType)
		query += fmt.Sprintf(" AND trigger_type = $%d", len(args))
	}
	if filter.StartedFrom != nil {
		args = append(args, *filter.StartedFrom)
		query += fmt.Sprintf(" AND started_at >= $%d", len(args))
	}
	if filter.StartedTo != nil {
		args = append(args, *filter.StartedTo)
		query += fmt.Sprintf(" AND started_at <= $%d", len(args))
	}
	if cursor != nil {
		args = append(args, cursor.CreatedAt, cursor.ID)
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, filter.Limit+1)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	var rows []execmodel.Execution
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "list executions", err)
	}

	result := &execmodel.ExecutionListResult{}
	hasMore := len(rows) > filter.Limit
	if hasMore {
		rows = rows[:filter.Limit]
	}
	result.Executions = rows
	result.HasMore = hasMore
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		next, err := execmodel.PaginationCursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
		if err != nil {
			return nil, engineerr.Wrap(engineerr.KindTransient, "encode next cursor", err)
		}
		result.NextCursor = next
	}
	return result, nil
}

// Stats computes the `ExecutionStats` aggregate over every Execution
// matching filter (ignoring its pagination fields).
func (s *ExecutionStore) Stats(ctx context.Context, filter execmodel.ExecutionFilter) (*execmodel.ExecutionStats, error) {
	if filter.TenantID == "" {
		return nil, engineerr.New(engineerr.KindValidation, "tenant id is required")
	}

	query := `SELECT status, duration_ms FROM execution WHERE tenant_id = $1`
	args := []interface{}{filter.TenantID}
	if filter.FlowID != "" {
		args = append(args, filter.FlowID)
		query += fmt.Sprintf(" AND flow_id = $%d", len(args))
	}

	var rows []struct {
		Status     execmodel.ExecutionStatus `db:"status"`
		DurationMs *int64                    `db:"duration_ms"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "execution stats", err)
	}

	stats := &execmodel.ExecutionStats{}
	var durationSum int64
	var durationCount int
	for _, row := range rows {
		stats.Total++
		switch row.Status {
		case execmodel.ExecutionCompleted:
			stats.Completed++
		case execmodel.ExecutionFailed:
			stats.Failed++
		case execmodel.ExecutionCancelled:
			stats.Cancelled++
		}
		if row.DurationMs != nil {
			durationSum += *row.DurationMs
			durationCount++
		}
	}
	if durationCount > 0 {
		stats.AverageDurationMs = float64(durationSum) / float64(durationCount)
	}
	return stats, nil
}

func (s *ExecutionStore) ListNodeExecutions(ctx context.Context, executionID string) ([]*execmodel.NodeExecution, error) {
	var rows []*execmodel.NodeExecution
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM node_execution WHERE execution_id = $1`, executionID)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "list node_executions", err)
	}
	return rows, nil
}

func requireRowAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "rows affected", err)
	}
	if n == 0 {
		return engineerr.New(engineerr.KindNotFound, entity+" not found: "+id)
	}
	return nil
}
