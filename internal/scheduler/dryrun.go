package scheduler

import (
	"github.com/nodeflow/engine/internal/dag"
	"github.com/nodeflow/engine/internal/execmodel"
	"github.com/nodeflow/engine/internal/expression"
	"github.com/nodeflow/engine/internal/flow"
	"github.com/nodeflow/engine/internal/handler"
)

// DryRun validates a flow definition and resolves every node's
// expressions against sampleInput without dispatching any handler (§6
// `dryRun` wire operation). It walks ExecutionOrder so each node's
// resolution context sees the (empty, since nothing actually ran)
// outputs of its dependencies — same merge rule as
// buildResolutionContext, minus handler execution.
func (s *Scheduler) DryRun(def flow.Definition, parse *dag.ParseResult, sampleInput map[string]interface{}) *execmodel.DryRunResult {
	result := &execmodel.DryRunResult{
		Valid:          parse.Valid,
		ExecutionOrder: parse.ExecutionOrder,
	}
	for _, e := range parse.Errors {
		result.Errors = append(result.Errors, execmodel.DryRunError{Message: e})
	}
	for _, w := range parse.Warnings {
		result.Warnings = append(result.Warnings, execmodel.DryRunWarning{Message: w})
	}
	if !parse.Valid {
		return result
	}

	nodeByID := make(map[string]flow.Node, len(def.Nodes))
	for _, n := range def.Nodes {
		nodeByID[n.ID] = n
	}

	resolvedInputs := make(map[string]interface{}, len(def.Nodes))
	nodeOutputs := make(map[string]map[string]interface{})

	for _, nodeID := range parse.ExecutionOrder {
		node, ok := nodeByID[nodeID]
		if !ok || isErrorTriggerNode(node) {
			continue
		}

		merged := map[string]interface{}{}
		for _, depID := range parse.Dependencies[nodeID] {
			if out, ok := nodeOutputs[depID]; ok {
				for k, v := range out {
					merged[k] = v
				}
			}
		}

		resCtx := &expression.ResolutionContext{
			NodeInput:    merged,
			NodeOutputs:  nodeOutputs,
			TriggerInput: sampleInput,
			Env:          map[string]string{},
		}

		resolved, err := s.Evaluator.ResolveConfig(node.Data, resCtx)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, execmodel.DryRunError{NodeID: nodeID, Message: err.Error()})
			continue
		}
		resolvedInputs[nodeID] = resolved

		if s.Registry != nil {
			if h, err := s.Registry.Get(node.Type); err == nil {
				if err := handler.ValidateConfig(h.ConfigSchema(), resolved); err != nil {
					result.Warnings = append(result.Warnings, execmodel.DryRunWarning{NodeID: nodeID, Message: err.Error()})
				}
			} else {
				result.Warnings = append(result.Warnings, execmodel.DryRunWarning{NodeID: nodeID, Message: "no handler registered for type " + node.Type})
			}
		}

		// Dry runs never invoke a handler, so downstream nodes see an
		// empty output map for this node — enough to resolve $node(id)
		// references structurally without fabricating data.
		nodeOutputs[nodeID] = map[string]interface{}{}
	}

	result.ResolvedInputs = resolvedInputs
	return result
}
