package execmodel

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// ExecutionFilter narrows a ListExecutions query. Supplemented from the
// teacher's workflow.ExecutionFilter (internal/workflow/model.go).
type ExecutionFilter struct {
	TenantID    string
	FlowID      string
	Status      []ExecutionStatus
	TriggerType TriggerType
	StartedFrom *time.Time
	StartedTo   *time.Time
	Limit       int
	Cursor      string
}

// Validate applies the same defensive defaults the teacher's
// ExecutionFilter.Validate enforces: a bounded page size.
func (f *ExecutionFilter) Validate() error {
	if f.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	return nil
}

// PaginationCursor is a base64-JSON opaque cursor over (createdAt, id)
// pairs, grounded on the teacher's PaginationCursor.
type PaginationCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

func (c PaginationCursor) Encode() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func DecodePaginationCursor(s string) (*PaginationCursor, error) {
	if s == "" {
		return nil, nil
	}
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var c PaginationCursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	return &c, nil
}

// ExecutionListResult is a single page of Executions plus a next cursor.
type ExecutionListResult struct {
	Executions []Execution `json:"executions"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
}

// ExecutionStats is an aggregate summary over a set of Executions,
// supplemented from the teacher's ExecutionStats.
type ExecutionStats struct {
	Total             int     `json:"total"`
	Completed         int     `json:"completed"`
	Failed            int     `json:"failed"`
	Cancelled         int     `json:"cancelled"`
	AverageDurationMs float64 `json:"average_duration_ms"`
}

// DryRunWarning is a non-fatal finding surfaced during dry-run validation.
type DryRunWarning struct {
	NodeID  string `json:"node_id,omitempty"`
	Message string `json:"message"`
}

// DryRunError is a fatal finding that would prevent the flow from running.
type DryRunError struct {
	NodeID  string `json:"node_id,omitempty"`
	Message string `json:"message"`
}

// DryRunResult is the outcome of validating a flow definition and
// resolving its expressions against sample input, without dispatching
// any handler — supplemented from the teacher's DryRunResult.
type DryRunResult struct {
	Valid            bool                   `json:"valid"`
	Warnings         []DryRunWarning        `json:"warnings,omitempty"`
	Errors           []DryRunError          `json:"errors,omitempty"`
	ResolvedInputs   map[string]interface{} `json:"resolved_inputs,omitempty"`
	ExecutionOrder   []string               `json:"execution_order,omitempty"`
}
