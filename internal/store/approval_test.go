package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/engine/internal/execmodel"
)

func TestApprovalStore_SaveApproval_GeneratesID(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	store := NewApprovalStore(db)
	a := &execmodel.ExecutionApproval{
		TenantID:          "tenant-1",
		ExecutionID:       "exec-1",
		NodeID:            "node-1",
		Status:            execmodel.ApprovalPending,
		RequiredApprovers: 2,
	}

	mock.ExpectExec(`INSERT INTO execution_approval`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.SaveApproval(context.Background(), a)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalStore_HasActed(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	store := NewApprovalStore(db)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM approval_action WHERE approval_id = \$1 AND user_id = \$2`).
		WithArgs("approval-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	acted, err := store.HasActed(context.Background(), "approval-1", "user-1")
	require.NoError(t, err)
	assert.True(t, acted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalStore_ListPendingExpiring(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	store := NewApprovalStore(db)
	cols := []string{
		"id", "tenant_id", "execution_id", "node_id", "status", "approval_mode", "approval_type",
		"required_approvers", "approved_count", "rejected_count", "expires_at", "resolved_at",
		"message", "metadata", "created_at",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		"approval-1", "tenant-1", "exec-1", "node-1", execmodel.ApprovalPending, "any", "manual",
		1, 0, 0, time.Now(), nil,
		"", nil, time.Now(),
	)
	mock.ExpectQuery(`SELECT \* FROM execution_approval WHERE status = \$1 AND expires_at <= \$2`).
		WillReturnRows(rows)

	results, err := store.ListPendingExpiring(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "approval-1", results[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
