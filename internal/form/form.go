// Package form implements the Form Coordinator (§4.7): a token-gated
// form submission mechanism that unblocks a paused execution. The
// teacher has no equivalent; grounded on internal/humantask/model.go's
// status-machine style and uuid usage, with token generation via
// crypto/rand + base64 (see DESIGN.md for why stdlib is the right tool
// for this one call).
package form

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/nodeflow/engine/internal/engineerr"
	"github.com/nodeflow/engine/internal/execmodel"
)

// Resumer is the Scheduler's narrow surface the coordinator calls on a
// successful submission.
type Resumer interface {
	Resume(execID, nodeID string, resumeData map[string]interface{}) error
}

// Repository is the durable store for form triggers and submissions.
type Repository interface {
	GetByFlowNode(ctx context.Context, flowID, nodeID string) (*execmodel.FormTrigger, error)
	GetByToken(ctx context.Context, token string) (*execmodel.FormTrigger, error)
	Save(ctx context.Context, t *execmodel.FormTrigger) error
	Update(ctx context.Context, t *execmodel.FormTrigger) error
	HasSubmission(ctx context.Context, executionID, nodeID string) (bool, error)
	SaveSubmission(ctx context.Context, s *execmodel.FormSubmission) error
	ListActiveExpiring(ctx context.Context, before time.Time) ([]*execmodel.FormTrigger, error)
}

type Coordinator struct {
	repo  Repository
	sched Resumer
}

func New(repo Repository, sched Resumer) *Coordinator {
	return &Coordinator{repo: repo, sched: sched}
}

// GenerateToken returns a 32-character URL-safe random token (§3
// FormTrigger.formToken).
func GenerateToken() (string, error) {
	buf := make([]byte, 24) // base64.RawURLEncoding of 24 bytes = 32 chars
	if _, err := rand.Read(buf); err != nil {
		return "", engineerr.Wrap(engineerr.KindTransient, "failed to generate form token", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CreateOrUpdateFormTrigger is idempotent on (flowId, nodeId): a second
// call updates the existing row's config/expiry/cap but preserves its
// token (§4.7).
func (c *Coordinator) CreateOrUpdateFormTrigger(ctx context.Context, flowID, nodeID string, config []byte, expiresInDays, maxSubmissions int, creator string) (*execmodel.FormTrigger, error) {
	existing, err := c.repo.GetByFlowNode(ctx, flowID, nodeID)
	if err != nil && engineerr.KindOf(err) != engineerr.KindNotFound {
		return nil, err
	}

	var expiresAt *time.Time
	if expiresInDays > 0 {
		t := time.Now().AddDate(0, 0, expiresInDays)
		expiresAt = &t
	}

	if existing != nil {
		existing.Config = config
		existing.MaxSubmissions = maxSubmissions
		existing.ExpiresAt = expiresAt
		existing.IsActive = true
		if err := c.repo.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}
	t := &execmodel.FormTrigger{
		FlowID:         flowID,
		NodeID:         nodeID,
		FormToken:      token,
		Config:         config,
		IsActive:       true,
		MaxSubmissions: maxSubmissions,
		ExpiresAt:      expiresAt,
		CreatedBy:      creator,
		CreatedAt:      time.Now(),
	}
	if err := c.repo.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Submit records a form submission and resumes the paused execution.
// Rejection conditions, in order (§4.7): already submitted for the
// pair, trigger inactive, trigger expired, submission cap reached.
func (c *Coordinator) Submit(ctx context.Context, executionID, nodeID string, data []byte, flowID, user, ip string) error {
	already, err := c.repo.HasSubmission(ctx, executionID, nodeID)
	if err != nil {
		return err
	}
	if already {
		return engineerr.New(engineerr.KindStateConflict, "form already submitted for this execution/node")
	}

	trigger, err := c.repo.GetByFlowNode(ctx, flowID, nodeID)
	if err != nil {
		return err
	}
	if !trigger.IsActive {
		return engineerr.New(engineerr.KindStateConflict, "form trigger is inactive")
	}
	if trigger.IsExpired(time.Now()) {
		return engineerr.New(engineerr.KindExpired, "form trigger has expired")
	}
	if trigger.AtCapacity() {
		return engineerr.New(engineerr.KindStateConflict, "form submission cap reached")
	}

	if err := c.repo.SaveSubmission(ctx, &execmodel.FormSubmission{
		ExecutionID: executionID,
		NodeID:      nodeID,
		Data:        data,
		SubmittedBy: user,
		SubmittedIP: ip,
		CreatedAt:   time.Now(),
	}); err != nil {
		return err
	}

	trigger.SubmissionCount++
	if err := c.repo.Update(ctx, trigger); err != nil {
		return err
	}

	var payload map[string]interface{}
	_ = jsonUnmarshalLenient(data, &payload)
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return c.sched.Resume(executionID, nodeID, payload)
}

// RegenerateToken replaces the token of the (flowID, nodeID) trigger
// with a fresh one and returns it (a read followed by an update).
func (c *Coordinator) RegenerateToken(ctx context.Context, flowID, nodeID string) (string, error) {
	trigger, err := c.repo.GetByFlowNode(ctx, flowID, nodeID)
	if err != nil {
		return "", err
	}
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	trigger.FormToken = token
	if err := c.repo.Update(ctx, trigger); err != nil {
		return "", err
	}
	return token, nil
}

// Deactivate flips a form trigger inactive without deleting it (the
// `deactivate(id)` operation; also how the expiration sweep retires a
// trigger on its first pass after expiresAt, per spec.md's lifecycle
// note). Submit already rejects on IsActive == false.
func (c *Coordinator) Deactivate(ctx context.Context, flowID, nodeID string) error {
	trigger, err := c.repo.GetByFlowNode(ctx, flowID, nodeID)
	if err != nil {
		return err
	}
	if !trigger.IsActive {
		return nil
	}
	trigger.IsActive = false
	return c.repo.Update(ctx, trigger)
}

// ExpireSweep deactivates every active form trigger whose ExpiresAt has
// passed, mirroring the Approval Coordinator's periodic sweep (§4.6)
// for the Form Coordinator's own deadline — "FormTrigger deactivated on
// first expiration sweep after expiresAt" per spec.md's lifecycle note.
func (c *Coordinator) ExpireSweep(ctx context.Context) (int, error) {
	now := time.Now()
	expired, err := c.repo.ListActiveExpiring(ctx, now)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, t := range expired {
		t.IsActive = false
		if err := c.repo.Update(ctx, t); err != nil {
			continue
		}
		count++
	}
	return count, nil
}
