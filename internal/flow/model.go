// Package flow holds the Flow / FlowVersion identity model: addressable
// workflows and their immutable, versioned graph definitions.
package flow

import (
	"encoding/json"
	"time"
)

// Status is a FlowVersion's lifecycle status.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusPublished  Status = "published"
	StatusDeprecated Status = "deprecated"
)

// Flow is the addressable identity for a workflow: name, description,
// owner. Soft-deleted, versioned, owns many FlowVersions.
type Flow struct {
	ID          string     `db:"id" json:"id"`
	TenantID    string     `db:"tenant_id" json:"tenant_id"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	OwnerID     string     `db:"owner_id" json:"owner_id"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Position is an editor hint, ignored by the core engine.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one vertex of a flow's graph. `Type` keys into the Handler
// Registry; `Data` is a type-specific configuration map whose shape is
// described by that handler's config schema. A node may reference a
// credential by id within Data (e.g. Data["credentialId"]).
type Node struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data"`
	// Trigger marks this node as a flow entry point independent of the
	// handler registry's IsTrigger flag (§4.1 "or marked trigger:true").
	Trigger bool `json:"trigger,omitempty"`
}

// Edge is a directed link source.nodeId[:sourceHandle] ->
// target.nodeId[:targetHandle]. Named handles carry branch semantics.
type Edge struct {
	ID            string `json:"id"`
	SourceNodeID  string `json:"sourceNodeId"`
	SourceHandle  string `json:"sourceHandle,omitempty"`
	TargetNodeID  string `json:"targetNodeId"`
	TargetHandle  string `json:"targetHandle,omitempty"`
}

// Definition is the graph a FlowVersion snapshots.
type Definition struct {
	Nodes    []Node          `json:"nodes"`
	Edges    []Edge          `json:"edges"`
	Viewport json.RawMessage `json:"viewport,omitempty"`
}

// FlowVersion is an immutable snapshot of a Flow's definition. Exactly
// one version per flow may be Published.
type FlowVersion struct {
	ID         string          `db:"id" json:"id"`
	FlowID     string          `db:"flow_id" json:"flow_id"`
	TenantID   string          `db:"tenant_id" json:"tenant_id"`
	Version    int             `db:"version" json:"version"`
	Definition Definition      `db:"-" json:"definition"`
	RawDef     json.RawMessage `db:"definition" json:"-"`
	Settings   json.RawMessage `db:"settings" json:"settings,omitempty"`
	Status     Status          `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	CreatedBy  string          `db:"created_by" json:"created_by"`
}

// MarshalDefinition serializes Definition into RawDef for persistence.
func (v *FlowVersion) MarshalDefinition() error {
	b, err := json.Marshal(v.Definition)
	if err != nil {
		return err
	}
	v.RawDef = b
	return nil
}

// UnmarshalDefinition populates Definition from RawDef after a load.
func (v *FlowVersion) UnmarshalDefinition() error {
	if len(v.RawDef) == 0 {
		v.Definition = Definition{}
		return nil
	}
	return json.Unmarshal(v.RawDef, &v.Definition)
}

// CreateFlowInput is the input to create a new Flow + its first draft
// FlowVersion.
type CreateFlowInput struct {
	Name        string
	Description string
	OwnerID     string
	Definition  Definition
}

// UpdateFlowInput patches mutable Flow fields.
type UpdateFlowInput struct {
	Name        *string
	Description *string
}
