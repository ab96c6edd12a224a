package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nodeflow/engine/internal/archive"
	"github.com/nodeflow/engine/internal/engineerr"
	"github.com/nodeflow/engine/internal/execmodel"
)

// ArchiveStore implements archive.Repository.
type ArchiveStore struct {
	db *sqlx.DB
}

func NewArchiveStore(db *sqlx.DB) *ArchiveStore {
	return &ArchiveStore{db: db}
}

func (s *ArchiveStore) ListArchivable(ctx context.Context, olderThan time.Time, limit int) ([]*execmodel.Execution, error) {
	var rows []*execmodel.Execution
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM execution
		WHERE status IN ($1, $2, $3) AND completed_at IS NOT NULL AND completed_at <= $4
		ORDER BY completed_at ASC LIMIT $5`,
		execmodel.ExecutionCompleted, execmodel.ExecutionFailed, execmodel.ExecutionCancelled,
		olderThan, limit)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "list archivable executions", err)
	}
	return rows, nil
}

func (s *ArchiveStore) GetFlowInfo(ctx context.Context, flowID, flowVersionID string) (archive.FlowInfo, error) {
	var info archive.FlowInfo
	err := s.db.GetContext(ctx, &info, `
		SELECT f.name AS flow_name, fv.version AS flow_version
		FROM flow f JOIN flow_version fv ON fv.flow_id = f.id
		WHERE f.id = $1 AND fv.id = $2`, flowID, flowVersionID)
	if errors.Is(err, sql.ErrNoRows) {
		return archive.FlowInfo{}, engineerr.New(engineerr.KindNotFound, "flow version not found: "+flowVersionID)
	}
	if err != nil {
		return archive.FlowInfo{}, engineerr.Wrap(engineerr.KindTransient, "get flow info", err)
	}
	return info, nil
}

func (s *ArchiveStore) GetNodeExecutions(ctx context.Context, executionID string) ([]*execmodel.NodeExecution, error) {
	var rows []*execmodel.NodeExecution
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM node_execution WHERE execution_id = $1`, executionID)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "list node executions for archive", err)
	}
	return rows, nil
}

func (s *ArchiveStore) SaveArchive(ctx context.Context, a *execmodel.ExecutionArchive) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_archive (
			id, execution_id, tenant_id, flow_id, flow_name, flow_version, status,
			node_executions, output, trigger_input, started_at, completed_at,
			duration_ms, archived_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, a.ExecutionID, a.TenantID, a.FlowID, a.FlowName, a.FlowVersion, a.Status,
		a.NodeExecutions, a.Output, a.TriggerInput, a.StartedAt, a.CompletedAt,
		a.DurationMs, a.ArchivedAt)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "insert execution_archive", err)
	}
	return nil
}

// DeleteExecution removes the live Execution and its NodeExecutions in
// one transaction, the step immediately following a successful archive
// (§4.9).
func (s *ArchiveStore) DeleteExecution(ctx context.Context, executionID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM node_execution WHERE execution_id = $1`, executionID); err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "delete node_executions", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM execution WHERE id = $1`, executionID); err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "delete execution", err)
	}
	if err := tx.Commit(); err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "commit tx", err)
	}
	return nil
}

func (s *ArchiveStore) ListExpiredArchives(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id FROM execution_archive WHERE archived_at <= $1 ORDER BY archived_at ASC LIMIT $2`,
		olderThan, limit)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "list expired archives", err)
	}
	return ids, nil
}

func (s *ArchiveStore) DeleteArchive(ctx context.Context, archiveID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM execution_archive WHERE id = $1`, archiveID)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "delete execution_archive", err)
	}
	return nil
}
