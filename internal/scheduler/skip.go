package scheduler

import "github.com/nodeflow/engine/internal/flow"

// computeSkipped finds every node exclusively reachable, from
// branchNodeID, only through outbound edges whose handle is NOT in
// selectedHandles — generalizing internal/executor/conditional.go's
// findNodesToSkip from a fixed true/false pair to arbitrary named
// handles (switch branchA/branchB/default, §4.5). A node with another
// live (non-skipped) parent is never marked skipped — it is a join
// point and waits for all its dependencies to resolve instead.
func computeSkipped(edges []flow.Edge, branchNodeID string, selectedHandles []string) map[string]bool {
	selected := make(map[string]bool, len(selectedHandles))
	for _, h := range selectedHandles {
		selected[h] = true
	}

	var notTakenTargets []string
	for _, e := range edges {
		if e.SourceNodeID != branchNodeID {
			continue
		}
		if selected[e.SourceHandle] {
			continue
		}
		notTakenTargets = append(notTakenTargets, e.TargetNodeID)
	}

	skipped := make(map[string]bool)
	visited := make(map[string]bool)
	queue := notTakenTargets

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		skipped[current] = true

		for _, e := range edges {
			if e.SourceNodeID != current {
				continue
			}
			hasOtherLiveParent := false
			for _, check := range edges {
				if check.TargetNodeID == e.TargetNodeID && check.SourceNodeID != current && !skipped[check.SourceNodeID] {
					hasOtherLiveParent = true
					break
				}
			}
			if !hasOtherLiveParent {
				queue = append(queue, e.TargetNodeID)
			}
		}
	}
	return skipped
}
