package archive

import (
	"encoding/json"

	"github.com/nodeflow/engine/internal/execmodel"
)

// marshalNodeExecutions denormalizes a full per-node execution history
// into the archive's single nodeExecutions blob (§3 ExecutionArchive).
func marshalNodeExecutions(nodeExecs []*execmodel.NodeExecution) (json.RawMessage, error) {
	byNodeID := make(map[string]*execmodel.NodeExecution, len(nodeExecs))
	for _, ne := range nodeExecs {
		byNodeID[ne.NodeID] = ne
	}
	return json.Marshal(byNodeID)
}
