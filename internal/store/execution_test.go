package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/engine/internal/engineerr"
	"github.com/nodeflow/engine/internal/execmodel"
)

func setupTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return sqlxDB, mock
}

func TestExecutionStore_SaveExecution(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	store := NewExecutionStore(db)
	exec := &execmodel.Execution{
		ID:          "exec-1",
		TenantID:    "tenant-1",
		FlowID:      "flow-1",
		Status:      execmodel.ExecutionRunning,
		TriggerType: execmodel.TriggerManual,
		MaxRetries:  3,
	}

	mock.ExpectExec(`INSERT INTO execution`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.SaveExecution(context.Background(), exec)
	require.NoError(t, err)
	assert.False(t, exec.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionStore_UpdateExecution_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	store := NewExecutionStore(db)
	exec := &execmodel.Execution{ID: "exec-missing", Status: execmodel.ExecutionCompleted}

	mock.ExpectExec(`UPDATE execution SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateExecution(context.Background(), exec)
	require.Error(t, err)
	assert.Equal(t, engineerr.KindNotFound, engineerr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionStore_GetByID(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	store := NewExecutionStore(db)
	now := time.Now()
	cols := []string{
		"id", "tenant_id", "flow_id", "flow_version_id", "status", "trigger_type", "triggered_by",
		"trigger_input", "trigger_context", "output_data", "error_message", "started_at",
		"completed_at", "duration_ms", "retry_count", "max_retries", "retry_of",
		"waiting_node_id", "pause_reason", "cancel_reason", "created_at",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		"exec-1", "tenant-1", "flow-1", "v1", execmodel.ExecutionCompleted, execmodel.TriggerManual, "",
		nil, nil, nil, nil, nil,
		nil, nil, 0, 3, nil,
		nil, nil, nil, now,
	)
	mock.ExpectQuery(`SELECT \* FROM execution WHERE id = \$1`).
		WithArgs("exec-1").
		WillReturnRows(rows)

	exec, err := store.GetByID(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "exec-1", exec.ID)
	assert.Equal(t, execmodel.ExecutionCompleted, exec.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionStore_GetByID_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	store := NewExecutionStore(db)
	mock.ExpectQuery(`SELECT \* FROM execution WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, engineerr.KindNotFound, engineerr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
