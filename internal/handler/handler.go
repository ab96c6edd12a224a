package handler

import "context"

// InterfaceField describes one named input or output slot for UI
// rendering and validation (§4.4 interfaceDefinition).
type InterfaceField struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// InterfaceDefinition lists a handler's declared inputs and outputs.
type InterfaceDefinition struct {
	Inputs  []InterfaceField
	Outputs []InterfaceField
}

// Context is everything a handler's Execute needs, post-expression
// resolution and post-credential-resolution (§4.4).
type Context struct {
	ExecutionID   string
	NodeID        string
	NodeType      string
	NodeConfig    map[string]interface{}
	InputData     map[string]interface{}
	UserID        string
	FlowID        string
	GlobalContext map[string]interface{}
}

// Handler is any Node Handler implementation (§4.4). Identity and
// capability fields are exposed as methods rather than struct fields so
// concrete handlers can be plain value types constructed at
// registration time, mirroring the teacher's Action interface in
// internal/executor/actions/action.go.
type Handler interface {
	Type() string
	DisplayName() string
	Category() string
	Icon() string
	Description() string

	IsTrigger() bool
	SupportsAsync() bool
	SupportsStreaming() bool

	ConfigSchema() map[string]interface{}
	Interface() InterfaceDefinition
	CredentialType() string // empty if the handler needs no credential

	Execute(ctx context.Context, hctx *Context) Result
}
