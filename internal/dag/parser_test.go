package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/engine/internal/flow"
)

type fakeRegistry struct {
	triggers map[string]bool
	known    map[string]bool
}

func (f *fakeRegistry) IsTrigger(t string) bool { return f.triggers[t] }
func (f *fakeRegistry) IsKnown(t string) bool   { return f.known[t] }

func linearDef() flow.Definition {
	return flow.Definition{
		Nodes: []flow.Node{
			{ID: "T", Type: "trigger:manual"},
			{ID: "A", Type: "action:echo"},
			{ID: "B", Type: "action:echo"},
		},
		Edges: []flow.Edge{
			{ID: "e1", SourceNodeID: "T", TargetNodeID: "A"},
			{ID: "e2", SourceNodeID: "A", TargetNodeID: "B"},
		},
	}
}

func registryFor(def flow.Definition, triggerType string) *fakeRegistry {
	known := make(map[string]bool)
	for _, n := range def.Nodes {
		known[n.Type] = true
	}
	return &fakeRegistry{triggers: map[string]bool{triggerType: true}, known: known}
}

func TestParse_HappyLinear(t *testing.T) {
	def := linearDef()
	res := Parse(def, registryFor(def, "trigger:manual"))
	require.True(t, res.Valid, "errors: %v", res.Errors)
	assert.Equal(t, []string{"T"}, res.EntryPoints)
	assert.Equal(t, []string{"B"}, res.ExitPoints)
	assert.Equal(t, []string{"T", "A", "B"}, res.ExecutionOrder)
	assert.Equal(t, []string{"T"}, res.Dependencies["A"])
	assert.Equal(t, []string{"A"}, res.Dependencies["B"])
}

func TestParse_CycleDetected(t *testing.T) {
	def := flow.Definition{
		Nodes: []flow.Node{{ID: "A"}, {ID: "B"}},
		Edges: []flow.Edge{
			{ID: "e1", SourceNodeID: "A", TargetNodeID: "B"},
			{ID: "e2", SourceNodeID: "B", TargetNodeID: "A"},
		},
	}
	res := Parse(def, nil)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Cycle detected")
}

func TestParse_UnknownEdgeEndpoint(t *testing.T) {
	def := flow.Definition{
		Nodes: []flow.Node{{ID: "A"}},
		Edges: []flow.Edge{{ID: "e1", SourceNodeID: "A", TargetNodeID: "ghost"}},
	}
	res := Parse(def, nil)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], "unknown target node")
}

func TestParse_DeterministicTieBreaking(t *testing.T) {
	def := flow.Definition{
		Nodes: []flow.Node{
			{ID: "T", Type: "trigger:manual"},
			{ID: "Z", Type: "action"},
			{ID: "A", Type: "action"},
		},
		Edges: []flow.Edge{
			{ID: "e1", SourceNodeID: "T", TargetNodeID: "Z"},
			{ID: "e2", SourceNodeID: "T", TargetNodeID: "A"},
		},
	}
	res := Parse(def, registryFor(def, "trigger:manual"))
	require.True(t, res.Valid)
	// Both Z and A become ready simultaneously after T; insertion order wins.
	assert.Equal(t, []string{"T", "Z", "A"}, res.ExecutionOrder)
}

func TestParse_DisconnectedIslandWarning(t *testing.T) {
	def := linearDef()
	def.Nodes = append(def.Nodes, flow.Node{ID: "Island", Type: "action:echo"})
	res := Parse(def, registryFor(def, "trigger:manual"))
	assert.True(t, res.Valid)
	found := false
	for _, w := range res.Warnings {
		if w == "node Island has no inbound edges but is not a trigger" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParse_UnknownNodeTypeWarning(t *testing.T) {
	def := linearDef()
	reg := registryFor(def, "trigger:manual")
	delete(reg.known, "action:echo")
	res := Parse(def, reg)
	assert.True(t, res.Valid)
	assert.NotEmpty(t, res.Warnings)
}
