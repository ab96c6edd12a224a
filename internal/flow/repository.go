package flow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nodeflow/engine/internal/engineerr"
)

// Repository is the Postgres-backed Flow/FlowVersion store. Every query
// filters on tenant_id; the transactional writes (Create, Publish) also
// set the session-local `app.tenant_id` GUC, the way the teacher's
// workflow.Repository does, while the reads and SoftDelete do not.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) setTenantContext(ctx context.Context, tx *sqlx.Tx, tenantID string) error {
	_, err := tx.ExecContext(ctx, `SELECT set_config('app.tenant_id', $1, true)`, tenantID)
	return err
}

// Create inserts a new Flow and its initial draft FlowVersion (version 1)
// in a single transaction.
func (r *Repository) Create(ctx context.Context, tenantID string, in CreateFlowInput) (*Flow, *FlowVersion, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, engineerr.Wrap(engineerr.KindTransient, "begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := r.setTenantContext(ctx, tx, tenantID); err != nil {
		return nil, nil, engineerr.Wrap(engineerr.KindTransient, "set tenant context", err)
	}

	f := &Flow{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Name:        in.Name,
		Description: in.Description,
		OwnerID:     in.OwnerID,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO flow (id, tenant_id, name, description, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.TenantID, f.Name, f.Description, f.OwnerID, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return nil, nil, engineerr.Wrap(engineerr.KindTransient, "insert flow", err)
	}

	v := &FlowVersion{
		ID:         uuid.New().String(),
		FlowID:     f.ID,
		TenantID:   tenantID,
		Version:    1,
		Definition: in.Definition,
		Status:     StatusDraft,
		CreatedAt:  time.Now().UTC(),
		CreatedBy:  in.OwnerID,
	}
	if err := v.MarshalDefinition(); err != nil {
		return nil, nil, engineerr.Wrap(engineerr.KindValidation, "marshal definition", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO flow_version (id, flow_id, tenant_id, version, definition, status, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.ID, v.FlowID, v.TenantID, v.Version, v.RawDef, v.Status, v.CreatedAt, v.CreatedBy)
	if err != nil {
		return nil, nil, engineerr.Wrap(engineerr.KindTransient, "insert flow_version", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, engineerr.Wrap(engineerr.KindTransient, "commit tx", err)
	}
	return f, v, nil
}

func (r *Repository) GetByID(ctx context.Context, tenantID, flowID string) (*Flow, error) {
	var f Flow
	err := r.db.GetContext(ctx, &f, `
		SELECT * FROM flow WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, flowID, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engineerr.New(engineerr.KindNotFound, "flow not found: "+flowID)
	}
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "get flow", err)
	}
	return &f, nil
}

// GetPublishedVersion returns the sole FlowVersion whose status is
// published, or NotFound if none exists.
func (r *Repository) GetPublishedVersion(ctx context.Context, tenantID, flowID string) (*FlowVersion, error) {
	var v FlowVersion
	err := r.db.GetContext(ctx, &v, `
		SELECT * FROM flow_version
		WHERE flow_id = $1 AND tenant_id = $2 AND status = $3
		ORDER BY version DESC LIMIT 1`, flowID, tenantID, StatusPublished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engineerr.New(engineerr.KindNotFound, "no published version for flow: "+flowID)
	}
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "get published version", err)
	}
	if err := v.UnmarshalDefinition(); err != nil {
		return nil, engineerr.Wrap(engineerr.KindValidation, "unmarshal definition", err)
	}
	return &v, nil
}

func (r *Repository) GetVersion(ctx context.Context, tenantID, flowID string, version int) (*FlowVersion, error) {
	var v FlowVersion
	err := r.db.GetContext(ctx, &v, `
		SELECT * FROM flow_version WHERE flow_id = $1 AND tenant_id = $2 AND version = $3`,
		flowID, tenantID, version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engineerr.New(engineerr.KindNotFound, fmt.Sprintf("flow %s version %d not found", flowID, version))
	}
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "get version", err)
	}
	if err := v.UnmarshalDefinition(); err != nil {
		return nil, engineerr.Wrap(engineerr.KindValidation, "unmarshal definition", err)
	}
	return &v, nil
}

// Publish marks the given version published and demotes any
// previously-published version to deprecated, atomically.
func (r *Repository) Publish(ctx context.Context, tenantID, flowID string, version int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := r.setTenantContext(ctx, tx, tenantID); err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "set tenant context", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE flow_version SET status = $1
		WHERE flow_id = $2 AND tenant_id = $3 AND status = $4`,
		StatusDeprecated, flowID, tenantID, StatusPublished)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "demote published version", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE flow_version SET status = $1
		WHERE flow_id = $2 AND tenant_id = $3 AND version = $4`,
		StatusPublished, flowID, tenantID, version)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "promote version", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engineerr.New(engineerr.KindNotFound, fmt.Sprintf("flow %s version %d not found", flowID, version))
	}

	return tx.Commit()
}

func (r *Repository) ListVersions(ctx context.Context, tenantID, flowID string) ([]FlowVersion, error) {
	var versions []FlowVersion
	err := r.db.SelectContext(ctx, &versions, `
		SELECT * FROM flow_version WHERE flow_id = $1 AND tenant_id = $2 ORDER BY version DESC`,
		flowID, tenantID)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindTransient, "list versions", err)
	}
	for i := range versions {
		if err := versions[i].UnmarshalDefinition(); err != nil {
			return nil, engineerr.Wrap(engineerr.KindValidation, "unmarshal definition", err)
		}
	}
	return versions, nil
}

func (r *Repository) SoftDelete(ctx context.Context, tenantID, flowID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE flow SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND tenant_id = $3 AND deleted_at IS NULL`,
		time.Now().UTC(), flowID, tenantID)
	if err != nil {
		return engineerr.Wrap(engineerr.KindTransient, "soft delete flow", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engineerr.New(engineerr.KindNotFound, "flow not found: "+flowID)
	}
	return nil
}
