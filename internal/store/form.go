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

// FormStore implements form.Repository.
type FormStore struct {
	db *sqlx.DB
}

func NewFormStore(db *sqlx.DB) *FormStore {
	return &FormStore{db: db}
}

func (s *FormStore) GetByFlowNode(ctx context.Context, flowID, nodeID string) (*execmodel.FormTrigger, error) {
	var t execmodel.FormTrigger
	err := s.db.GetContext(ctx, &t, `
		SELECT * FROM form_trigger WHERE flow_id = $1 AND node_id = $2`, flowID, nodeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engineerr.New(engineerr.KindNotFound, "form trigger not found")
	}
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "get form trigger", err)
	}
	return &t, nil
}

func (s *FormStore) GetByToken(ctx context.Context, token string) (*execmodel.FormTrigger, error) {
	var t execmodel.FormTrigger
	err := s.db.GetContext(ctx, &t, `SELECT * FROM form_trigger WHERE form_token = $1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engineerr.New(engineerr.KindNotFound, "form trigger not found")
	}
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "get form trigger by token", err)
	}
	return &t, nil
}

func (s *FormStore) Save(ctx context.Context, t *execmodel.FormTrigger) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO form_trigger (
			id, tenant_id, flow_id, node_id, form_token, config, is_active,
			submission_count, max_submissions, expires_at, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.TenantID, t.FlowID, t.NodeID, t.FormToken, t.Config, t.IsActive,
		t.SubmissionCount, t.MaxSubmissions, t.ExpiresAt, t.CreatedBy, t.CreatedAt)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "insert form_trigger", err)
	}
	return nil
}

func (s *FormStore) Update(ctx context.Context, t *execmodel.FormTrigger) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE form_trigger SET
			form_token = $2, config = $3, is_active = $4, submission_count = $5,
			max_submissions = $6, expires_at = $7
		WHERE id = $1`,
		t.ID, t.FormToken, t.Config, t.IsActive, t.SubmissionCount, t.MaxSubmissions, t.ExpiresAt)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "update form_trigger", err)
	}
	return requireRowAffected(res, "form_trigger", t.ID)
}

func (s *FormStore) HasSubmission(ctx context.Context, executionID, nodeID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM form_submission WHERE execution_id = $1 AND node_id = $2`,
		executionID, nodeID)
	if err != nil {
		return false, engineerr.Wrap(engineerr.KindTransient, "check form submission", err)
	}
	return count > 0, nil
}

// ListActiveExpiring finds every active form trigger whose expiresAt
// has passed before, backing the Form Coordinator's ExpireSweep.
func (s *FormStore) ListActiveExpiring(ctx context.Context, before time.Time) ([]*execmodel.FormTrigger, error) {
	var rows []*execmodel.FormTrigger
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM form_trigger WHERE is_active = true AND expires_at IS NOT NULL AND expires_at <= $1`,
		before)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "list expiring form triggers", err)
	}
	return rows, nil
}

func (s *FormStore) SaveSubmission(ctx context.Context, sub *execmodel.FormSubmission) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO form_submission (id, execution_id, node_id, data, submitted_by, submitted_ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.ExecutionID, sub.NodeID, sub.Data, sub.SubmittedBy, sub.SubmittedIP, sub.CreatedAt)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "insert form_submission", err)
	}
	return nil
}
