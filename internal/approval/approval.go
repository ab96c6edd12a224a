// Package approval implements the Approval Coordinator (§4.6): a
// multi-user quorum state machine gating a suspended execution on
// human decisions. Grounded on internal/humantask/model.go's status
// machine (IsPending/IsCompleted/IsOverdue) generalized from
// single-approver to any/all/majority quorum counting, which is new
// logic written in the same plain-integer-bookkeeping style.
package approval

import (
	"context"
	"time"

	"github.com/nodeflow/engine/internal/engineerr"
	"github.com/nodeflow/engine/internal/execmodel"
)

// Resumer is the Scheduler's narrow surface the coordinator notifies on
// resolution (§4.6 "Scheduler observes [approval-resolved] to
// un-suspend the execution").
type Resumer interface {
	Resume(execID, nodeID string, resumeData map[string]interface{}) error
}

// Publisher emits approval-resolved and approval-created/action events;
// kept narrow and duck-typed against scheduler.EventPublisher so this
// package never imports internal/scheduler.
type Publisher interface {
	Publish(ctx context.Context, eventType, executionID, nodeID string, data map[string]interface{}) error
}

// Repository is the durable store for approvals and their actions.
type Repository interface {
	GetApproval(ctx context.Context, approvalID string) (*execmodel.ExecutionApproval, error)
	SaveApproval(ctx context.Context, a *execmodel.ExecutionApproval) error
	UpdateApproval(ctx context.Context, a *execmodel.ExecutionApproval) error
	SaveAction(ctx context.Context, a *execmodel.ApprovalAction) error
	HasActed(ctx context.Context, approvalID, userID string) (bool, error)
	ListPendingExpiring(ctx context.Context, before time.Time) ([]*execmodel.ExecutionApproval, error)
}

const (
	EventApprovalCreated  = "APPROVAL_CREATED"
	EventApprovalAction   = "APPROVAL_ACTION"
	EventApprovalResolved = "APPROVAL_RESOLVED"
)

// Coordinator is the Approval Coordinator component.
type Coordinator struct {
	repo  Repository
	sched Resumer
	pub   Publisher
}

func New(repo Repository, sched Resumer, pub Publisher) *Coordinator {
	return &Coordinator{repo: repo, sched: sched, pub: pub}
}

// CreateApproval persists a new pending ExecutionApproval and emits
// APPROVAL_CREATED.
func (c *Coordinator) CreateApproval(ctx context.Context, a *execmodel.ExecutionApproval) error {
	a.Status = execmodel.ApprovalPending
	a.CreatedAt = time.Now()
	if err := c.repo.SaveApproval(ctx, a); err != nil {
		return err
	}
	return c.pub.Publish(ctx, EventApprovalCreated, a.ExecutionID, a.NodeID, map[string]interface{}{"approvalId": a.ID})
}

// SubmitApproval validates and records one user's decision, per §4.6's
// rejection order: not-pending -> expired-by-side-effect -> already-acted.
func (c *Coordinator) SubmitApproval(ctx context.Context, approvalID, userID string, action execmodel.ApprovalActionKind, comment string) error {
	a, err := c.repo.GetApproval(ctx, approvalID)
	if err != nil {
		return err
	}

	if !a.IsPending() {
		return engineerr.New(engineerr.KindStateConflict, "approval is not pending: "+approvalID)
	}

	if a.IsExpired(time.Now()) {
		a.Status = execmodel.ApprovalExpired
		_ = c.repo.UpdateApproval(ctx, a)
		return engineerr.New(engineerr.KindExpired, "approval has expired: "+approvalID)
	}

	acted, err := c.repo.HasActed(ctx, approvalID, userID)
	if err != nil {
		return err
	}
	if acted {
		return engineerr.New(engineerr.KindStateConflict, "user already acted on this approval: "+userID)
	}

	if err := c.repo.SaveAction(ctx, &execmodel.ApprovalAction{
		ApprovalID: approvalID,
		UserID:     userID,
		Action:     action,
		Comment:    comment,
		CreatedAt:  time.Now(),
	}); err != nil {
		return err
	}

	if action == execmodel.ActionApprove {
		a.ApprovedCount++
	} else {
		a.RejectedCount++
	}

	_ = c.pub.Publish(ctx, EventApprovalAction, a.ExecutionID, a.NodeID, map[string]interface{}{
		"approvalId": approvalID, "userId": userID, "action": string(action),
	})

	resolution := resolve(a)
	if resolution == "" {
		return c.repo.UpdateApproval(ctx, a)
	}

	a.Status = resolution
	now := time.Now()
	a.ResolvedAt = &now
	if err := c.repo.UpdateApproval(ctx, a); err != nil {
		return err
	}
	return c.onResolved(ctx, a)
}

// resolve applies the any/all/majority rule (§4.6) and returns the
// resulting status, or "" if still pending.
func resolve(a *execmodel.ExecutionApproval) execmodel.ApprovalStatus {
	switch a.ApprovalMode {
	case execmodel.ApprovalModeAny:
		if a.ApprovedCount >= 1 {
			return execmodel.ApprovalApproved
		}
		if a.RejectedCount >= 1 {
			return execmodel.ApprovalRejected
		}
	case execmodel.ApprovalModeAll:
		if a.ApprovedCount >= a.RequiredApprovers {
			return execmodel.ApprovalApproved
		}
		if a.RejectedCount >= 1 {
			return execmodel.ApprovalRejected
		}
	case execmodel.ApprovalModeMajority:
		half := a.RequiredApprovers / 2
		if a.ApprovedCount*2 > a.RequiredApprovers || a.ApprovedCount > half {
			return execmodel.ApprovalApproved
		}
		if a.RejectedCount*2 > a.RequiredApprovers || a.RejectedCount > half {
			return execmodel.ApprovalRejected
		}
	}
	return ""
}

func (c *Coordinator) onResolved(ctx context.Context, a *execmodel.ExecutionApproval) error {
	_ = c.pub.Publish(ctx, EventApprovalResolved, a.ExecutionID, a.NodeID, map[string]interface{}{
		"approvalId": a.ID, "status": string(a.Status),
	})
	resumeData := map[string]interface{}{
		"approvalId": a.ID,
		"status":     string(a.Status),
		"approved":   a.Status == execmodel.ApprovalApproved,
	}
	return c.sched.Resume(a.ExecutionID, a.NodeID, resumeData)
}

// CancelApproval marks a still-pending approval cancelled and resumes
// the waiting execution with a non-approval payload (the
// `cancelApproval(id)` operation — the approval's status is
// `cancelled` rather than `rejected`, and no quorum is evaluated).
func (c *Coordinator) CancelApproval(ctx context.Context, approvalID string) error {
	a, err := c.repo.GetApproval(ctx, approvalID)
	if err != nil {
		return err
	}
	if !a.IsPending() {
		return engineerr.New(engineerr.KindStateConflict, "approval is not pending: "+approvalID)
	}
	a.Status = execmodel.ApprovalCancelled
	now := time.Now()
	a.ResolvedAt = &now
	if err := c.repo.UpdateApproval(ctx, a); err != nil {
		return err
	}
	_ = c.pub.Publish(ctx, EventApprovalResolved, a.ExecutionID, a.NodeID, map[string]interface{}{
		"approvalId": a.ID, "status": string(execmodel.ApprovalCancelled),
	})
	// Cancelling withdraws the request rather than leaving the
	// execution suspended forever; treated like a non-approval for the
	// waiting node's resume payload, same shape ExpireSweep uses.
	return c.sched.Resume(a.ExecutionID, a.NodeID, map[string]interface{}{
		"approvalId": a.ID, "status": string(execmodel.ApprovalCancelled), "approved": false,
	})
}

// ExpireSweep finds pending approvals past their deadline, marks them
// expired, and notifies the Scheduler — the periodic task §4.6
// describes running e.g. every minute, driven externally by a
// robfig/cron job (internal/approval/sweeper.go).
func (c *Coordinator) ExpireSweep(ctx context.Context) (int, error) {
	now := time.Now()
	pending, err := c.repo.ListPendingExpiring(ctx, now)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, a := range pending {
		a.Status = execmodel.ApprovalExpired
		a.ResolvedAt = &now
		if err := c.repo.UpdateApproval(ctx, a); err != nil {
			continue
		}
		_ = c.pub.Publish(ctx, EventApprovalResolved, a.ExecutionID, a.NodeID, map[string]interface{}{
			"approvalId": a.ID, "status": string(execmodel.ApprovalExpired),
		})
		_ = c.sched.Resume(a.ExecutionID, a.NodeID, map[string]interface{}{
			"approvalId": a.ID, "status": string(execmodel.ApprovalExpired), "approved": false,
		})
		count++
	}
	return count, nil
}
