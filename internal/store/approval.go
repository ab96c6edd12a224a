package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nodeflow/engine/internal/engineerr"
	"github.com/nodeflow/engine/internal/execmodel"
)

// ApprovalStore implements approval.Repository.
type ApprovalStore struct {
	db *sqlx.DB
}

func NewApprovalStore(db *sqlx.DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

func (s *ApprovalStore) GetApproval(ctx context.Context, approvalID string) (*execmodel.ExecutionApproval, error) {
	var a execmodel.ExecutionApproval
	err := s.db.GetContext(ctx, &a, `SELECT * FROM execution_approval WHERE id = $1`, approvalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engineerr.New(engineerr.KindNotFound, "approval not found: "+approvalID)
	}
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "get approval", err)
	}
	return &a, nil
}

func (s *ApprovalStore) SaveApproval(ctx context.Context, a *execmodel.ExecutionApproval) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_approval (
			id, tenant_id, execution_id, node_id, status, approval_mode, approval_type,
			required_approvers, approved_count, rejected_count, expires_at, message,
			metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, a.TenantID, a.ExecutionID, a.NodeID, a.Status, a.ApprovalMode, a.ApprovalType,
		a.RequiredApprovers, a.ApprovedCount, a.RejectedCount, a.ExpiresAt, a.Message,
		a.Metadata, a.CreatedAt)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "insert execution_approval", err)
	}
	return nil
}

func (s *ApprovalStore) UpdateApproval(ctx context.Context, a *execmodel.ExecutionApproval) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE execution_approval SET
			status = $2, approved_count = $3, rejected_count = $4, resolved_at = $5
		WHERE id = $1`,
		a.ID, a.Status, a.ApprovedCount, a.RejectedCount, a.ResolvedAt)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "update execution_approval", err)
	}
	return requireRowAffected(res, "execution_approval", a.ID)
}

func (s *ApprovalStore) SaveAction(ctx context.Context, a *execmodel.ApprovalAction) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approval_action (id, approval_id, user_id, action, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.ApprovalID, a.UserID, a.Action, a.Comment, a.CreatedAt)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "insert approval_action", err)
	}
	return nil
}

func (s *ApprovalStore) HasActed(ctx context.Context, approvalID, userID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM approval_action WHERE approval_id = $1 AND user_id = $2`,
		approvalID, userID)
	if err != nil {
		return false, engineerr.Wrap(engineerr.KindTransient, "check approval action", err)
	}
	return count > 0, nil
}

func (s *ApprovalStore) ListPendingExpiring(ctx context.Context, before time.Time) ([]*execmodel.ExecutionApproval, error) {
	var rows []*execmodel.ExecutionApproval
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM execution_approval WHERE status = $1 AND expires_at <= $2`,
		execmodel.ApprovalPending, before)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "list pending expiring approvals", err)
	}
	return rows, nil
}
