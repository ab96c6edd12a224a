// Package execmodel holds the runtime data model: Execution,
// NodeExecution, ExecutionApproval, ApprovalAction, FormTrigger,
// FormSubmission, and ExecutionArchive, per SPEC_FULL.md §3.
package execmodel

import (
	"encoding/json"
	"time"
)

// ExecutionStatus is one state of an Execution's lifecycle.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionWaiting   ExecutionStatus = "waiting"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
	ExecutionPaused    ExecutionStatus = "paused"
)

// IsTerminal reports whether s is a sink state (§3 invariant: terminal
// states are sinks).
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionCancelled:
		return true
	default:
		return false
	}
}

// TriggerType names what kicked off an Execution.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduler TriggerType = "scheduler"
	TriggerWebhook   TriggerType = "webhook"
	TriggerError     TriggerType = "error"
)

const DefaultMaxRetries = 3

// Execution is one concrete run of a FlowVersion.
type Execution struct {
	ID              string          `db:"id" json:"id"`
	TenantID        string          `db:"tenant_id" json:"tenant_id"`
	FlowID          string          `db:"flow_id" json:"flow_id"`
	FlowVersionID   string          `db:"flow_version_id" json:"flow_version_id"`
	Status          ExecutionStatus `db:"status" json:"status"`
	TriggerType     TriggerType     `db:"trigger_type" json:"trigger_type"`
	TriggeredBy     string          `db:"triggered_by" json:"triggered_by,omitempty"`
	TriggerInput    json.RawMessage `db:"trigger_input" json:"trigger_input,omitempty"`
	TriggerContext  json.RawMessage `db:"trigger_context" json:"trigger_context,omitempty"`
	OutputData      json.RawMessage `db:"output_data" json:"output_data,omitempty"`
	ErrorMessage    *string         `db:"error_message" json:"error_message,omitempty"`
	StartedAt       *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	DurationMs      *int64          `db:"duration_ms" json:"duration_ms,omitempty"`
	RetryCount      int             `db:"retry_count" json:"retry_count"`
	MaxRetries      int             `db:"max_retries" json:"max_retries"`
	RetryOf         *string         `db:"retry_of" json:"retry_of,omitempty"`
	WaitingNodeID   *string         `db:"waiting_node_id" json:"waiting_node_id,omitempty"`
	PauseReason     *string         `db:"pause_reason" json:"pause_reason,omitempty"`
	CancelReason    *string         `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// CanRetry reports whether a user-initiated retry is legal per §5's
// retry discipline: terminal non-success status and under the budget.
func (e *Execution) CanRetry() bool {
	return (e.Status == ExecutionFailed || e.Status == ExecutionCancelled) && e.RetryCount < e.MaxRetries
}

// NodeExecutionStatus is one state of a NodeExecution's lifecycle.
type NodeExecutionStatus string

const (
	NodeExecPending   NodeExecutionStatus = "pending"
	NodeExecRunning   NodeExecutionStatus = "running"
	NodeExecCompleted NodeExecutionStatus = "completed"
	NodeExecFailed    NodeExecutionStatus = "failed"
)

// NodeExecution is one attempt of one node within an Execution.
type NodeExecution struct {
	ID               string              `db:"id" json:"id"`
	ExecutionID      string              `db:"execution_id" json:"execution_id"`
	NodeID           string              `db:"node_id" json:"node_id"`
	ComponentName    string              `db:"component_name" json:"component_name"`
	ComponentVersion string              `db:"component_version" json:"component_version,omitempty"`
	Status           NodeExecutionStatus `db:"status" json:"status"`
	StartedAt        *time.Time          `db:"started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time          `db:"completed_at" json:"completed_at,omitempty"`
	DurationMs       *int64              `db:"duration_ms" json:"duration_ms,omitempty"`
	RetryCount       int                 `db:"retry_count" json:"retry_count"`
	InputData        json.RawMessage     `db:"input_data" json:"input_data,omitempty"`
	OutputData       json.RawMessage     `db:"output_data" json:"output_data,omitempty"`
	ErrorMessage     *string             `db:"error_message" json:"error_message,omitempty"`
	ErrorStack       *string             `db:"error_stack" json:"error_stack,omitempty"`
	BranchesToFollow []string            `db:"-" json:"branches_to_follow,omitempty"`
}

// ApprovalMode is the quorum rule an ExecutionApproval resolves under.
type ApprovalMode string

const (
	ApprovalModeAny      ApprovalMode = "any"
	ApprovalModeAll      ApprovalMode = "all"
	ApprovalModeMajority ApprovalMode = "majority"
)

// ApprovalStatus is one state of an ExecutionApproval's lifecycle.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalExpired   ApprovalStatus = "expired"
	ApprovalCancelled ApprovalStatus = "cancelled"
)

// ExecutionApproval gates a paused execution on human input.
type ExecutionApproval struct {
	ID                string         `db:"id" json:"id"`
	TenantID          string         `db:"tenant_id" json:"tenant_id"`
	ExecutionID       string         `db:"execution_id" json:"execution_id"`
	NodeID            string         `db:"node_id" json:"node_id"`
	Status            ApprovalStatus `db:"status" json:"status"`
	ApprovalMode      ApprovalMode   `db:"approval_mode" json:"approval_mode"`
	ApprovalType      string         `db:"approval_type" json:"approval_type"`
	RequiredApprovers int            `db:"required_approvers" json:"required_approvers"`
	ApprovedCount     int            `db:"approved_count" json:"approved_count"`
	RejectedCount     int            `db:"rejected_count" json:"rejected_count"`
	ExpiresAt         time.Time      `db:"expires_at" json:"expires_at"`
	Message           string         `db:"message" json:"message,omitempty"`
	Metadata          json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	ResolvedAt        *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// IsPending reports whether this approval still accepts actions.
func (a *ExecutionApproval) IsPending() bool {
	return a.Status == ApprovalPending
}

// IsExpired reports whether a's deadline has passed, independent of the
// persisted status (used for the lazy check on every submit, §4.6).
func (a *ExecutionApproval) IsExpired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// ApprovalActionKind is one user's decision.
type ApprovalActionKind string

const (
	ActionApprove ApprovalActionKind = "approve"
	ActionReject  ApprovalActionKind = "reject"
)

// ApprovalAction is one user's decision on one approval. Unique per
// (ApprovalID, UserID).
type ApprovalAction struct {
	ID         string             `db:"id" json:"id"`
	ApprovalID string             `db:"approval_id" json:"approval_id"`
	UserID     string             `db:"user_id" json:"user_id"`
	Action     ApprovalActionKind `db:"action" json:"action"`
	Comment    string             `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
}

// FormTrigger is a paused-node form specification.
type FormTrigger struct {
	ID             string          `db:"id" json:"id"`
	TenantID       string          `db:"tenant_id" json:"tenant_id"`
	FlowID         string          `db:"flow_id" json:"flow_id"`
	NodeID         string          `db:"node_id" json:"node_id"`
	FormToken      string          `db:"form_token" json:"form_token"`
	Config         json.RawMessage `db:"config" json:"config,omitempty"`
	IsActive       bool            `db:"is_active" json:"is_active"`
	SubmissionCount int            `db:"submission_count" json:"submission_count"`
	MaxSubmissions int             `db:"max_submissions" json:"max_submissions"`
	ExpiresAt      *time.Time      `db:"expires_at" json:"expires_at,omitempty"`
	CreatedBy      string          `db:"created_by" json:"created_by"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// AtCapacity reports whether the trigger has reached MaxSubmissions (0
// means unlimited, enforced uniformly per DESIGN.md's Open Question
// decision).
func (t *FormTrigger) AtCapacity() bool {
	return t.MaxSubmissions > 0 && t.SubmissionCount >= t.MaxSubmissions
}

func (t *FormTrigger) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// FormSubmission is one submitted payload. Unique per (ExecutionID, NodeID).
type FormSubmission struct {
	ID          string          `db:"id" json:"id"`
	ExecutionID string          `db:"execution_id" json:"execution_id"`
	NodeID      string          `db:"node_id" json:"node_id"`
	Data        json.RawMessage `db:"data" json:"data"`
	SubmittedBy string          `db:"submitted_by" json:"submitted_by,omitempty"`
	SubmittedIP string          `db:"submitted_ip" json:"submitted_ip,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// ExecutionArchive is the compact post-completion record.
type ExecutionArchive struct {
	ID             string          `db:"id" json:"id"`
	ExecutionID    string          `db:"execution_id" json:"execution_id"`
	TenantID       string          `db:"tenant_id" json:"tenant_id"`
	FlowID         string          `db:"flow_id" json:"flow_id"`
	FlowName       string          `db:"flow_name" json:"flow_name"`
	FlowVersion    int             `db:"flow_version" json:"flow_version"`
	Status         ExecutionStatus `db:"status" json:"status"`
	NodeExecutions json.RawMessage `db:"node_executions" json:"node_executions"`
	Output         json.RawMessage `db:"output" json:"output,omitempty"`
	TriggerInput   json.RawMessage `db:"trigger_input" json:"trigger_input,omitempty"`
	StartedAt      *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	DurationMs     *int64          `db:"duration_ms" json:"duration_ms,omitempty"`
	ArchivedAt     time.Time       `db:"archived_at" json:"archived_at"`
}
