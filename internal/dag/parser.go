// Package dag validates a flow definition and computes the structures
// the Scheduler needs to drive execution: entry/exit points, a
// deterministic topological order, and an immediate-dependency map.
// Grounded on internal/executor/executor.go's topologicalSort/
// buildNodeMap and internal/executor/conditional.go's findStartNodes.
package dag

import (
	"fmt"
	"sort"

	"github.com/nodeflow/engine/internal/flow"
)

// TriggerChecker answers whether a node type is a trigger handler,
// backed by the Handler Registry (§4.1: "whose handler is a trigger").
type TriggerChecker interface {
	IsTrigger(nodeType string) bool
	IsKnown(nodeType string) bool
}

// ParseResult is the DAG Parser's output.
type ParseResult struct {
	Valid          bool
	Errors         []string
	Warnings       []string
	EntryPoints    []string
	ExitPoints     []string
	ExecutionOrder []string
	Dependencies   map[string][]string
}

// Parse validates def and computes ParseResult. registry may be nil, in
// which case "unknown node type" and "trigger" warnings/entry-detection
// fall back to the explicit Node.Trigger flag only.
func Parse(def flow.Definition, registry TriggerChecker) *ParseResult {
	res := &ParseResult{
		Dependencies: make(map[string][]string),
	}

	nodeIndex := make(map[string]int, len(def.Nodes))
	for i, n := range def.Nodes {
		if _, exists := nodeIndex[n.ID]; exists {
			res.Errors = append(res.Errors, fmt.Sprintf("duplicate node id: %s", n.ID))
			continue
		}
		nodeIndex[n.ID] = i
	}

	// Every edge endpoint must reference an existing node id.
	for _, e := range def.Edges {
		if _, ok := nodeIndex[e.SourceNodeID]; !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("edge %s references unknown source node %s", e.ID, e.SourceNodeID))
		}
		if _, ok := nodeIndex[e.TargetNodeID]; !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("edge %s references unknown target node %s", e.ID, e.TargetNodeID))
		}
	}
	if len(res.Errors) > 0 {
		return res
	}

	inbound := make(map[string]int, len(def.Nodes))
	outbound := make(map[string]int, len(def.Nodes))
	deps := make(map[string][]string, len(def.Nodes))
	adjacency := make(map[string][]string, len(def.Nodes))
	for _, n := range def.Nodes {
		inbound[n.ID] = 0
		outbound[n.ID] = 0
		deps[n.ID] = nil
	}
	for _, e := range def.Edges {
		inbound[e.TargetNodeID]++
		outbound[e.SourceNodeID]++
		deps[e.TargetNodeID] = append(deps[e.TargetNodeID], e.SourceNodeID)
		adjacency[e.SourceNodeID] = append(adjacency[e.SourceNodeID], e.TargetNodeID)
	}
	res.Dependencies = deps

	// Entry points: no inbound edge AND (trigger handler OR Node.Trigger).
	for _, n := range def.Nodes {
		if inbound[n.ID] != 0 {
			continue
		}
		isTrigger := n.Trigger
		if registry != nil && registry.IsTrigger(n.Type) {
			isTrigger = true
		}
		if isTrigger {
			res.EntryPoints = append(res.EntryPoints, n.ID)
		} else {
			res.Warnings = append(res.Warnings, fmt.Sprintf("node %s has no inbound edges but is not a trigger", n.ID))
		}
	}

	// Exit points: no outbound edge.
	for _, n := range def.Nodes {
		if outbound[n.ID] == 0 {
			res.ExitPoints = append(res.ExitPoints, n.ID)
		}
	}

	if registry != nil {
		for _, n := range def.Nodes {
			if !registry.IsKnown(n.Type) {
				res.Warnings = append(res.Warnings, fmt.Sprintf("node %s has unknown type %q", n.ID, n.Type))
			}
		}
	}

	order, cycle, err := topologicalSort(def.Nodes, deps)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("Cycle detected: %v", cycle))
		return res
	}
	res.ExecutionOrder = order

	reachable := reachableFrom(res.EntryPoints, adjacency)
	for _, n := range def.Nodes {
		if !reachable[n.ID] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("node %s is unreachable from any entry point (disconnected island)", n.ID))
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// topologicalSort runs Kahn's algorithm. Ties are broken by each node's
// insertion-order position in def.Nodes so results are deterministic,
// per §4.1.
func topologicalSort(nodes []flow.Node, deps map[string][]string) ([]string, []string, error) {
	position := make(map[string]int, len(nodes))
	for i, n := range nodes {
		position[n.ID] = i
	}

	inDegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		inDegree[n.ID] = len(deps[n.ID])
	}
	for nodeID, upstream := range deps {
		for _, u := range upstream {
			dependents[u] = append(dependents[u], nodeID)
		}
	}

	var ready []string
	for _, n := range nodes {
		if inDegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return position[ready[i]] < position[ready[j]] })

	var order []string
	remaining := make(map[string]int, len(inDegree))
	for k, v := range inDegree {
		remaining[k] = v
	}

	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		var newlyReady []string
		for _, dep := range dependents[next] {
			remaining[dep]--
			if remaining[dep] == 0 {
				newlyReady = append(newlyReady, dep)
			}
		}
		sort.Slice(newlyReady, func(i, j int) bool { return position[newlyReady[i]] < position[newlyReady[j]] })
		ready = append(ready, newlyReady...)
		sort.Slice(ready, func(i, j int) bool { return position[ready[i]] < position[ready[j]] })
	}

	if len(order) != len(nodes) {
		var cycle []string
		for id, r := range remaining {
			if r > 0 {
				cycle = append(cycle, id)
			}
		}
		sort.Strings(cycle)
		return nil, cycle, fmt.Errorf("workflow contains cycles")
	}

	return order, nil, nil
}

func reachableFrom(entryPoints []string, adjacency map[string][]string) map[string]bool {
	seen := make(map[string]bool)
	queue := append([]string{}, entryPoints...)
	for _, e := range entryPoints {
		seen[e] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[cur] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}
