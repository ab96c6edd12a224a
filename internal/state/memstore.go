package state

import (
	"context"
	"sync"

	"github.com/nodeflow/engine/internal/engineerr"
	"github.com/nodeflow/engine/internal/execmodel"
)

type execEntry struct {
	status      execmodel.ExecutionStatus
	nodeOutputs map[string]map[string]interface{}
	branches    map[string][]string
	skipped     map[string]bool
}

func newExecEntry(initial map[string]interface{}) *execEntry {
	e := &execEntry{
		status:      execmodel.ExecutionRunning,
		nodeOutputs: make(map[string]map[string]interface{}),
		branches:    make(map[string][]string),
		skipped:     make(map[string]bool),
	}
	if initial != nil {
		e.nodeOutputs["_trigger"] = initial
	}
	return e
}

// MemStore is the default, single-process Store (§9 Non-goals: no
// cross-instance scheduler coordination). Safe for concurrent use by
// many scheduler goroutines racing to record sibling node outputs.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]*execEntry
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]*execEntry)}
}

func (s *MemStore) get(execID string) (*execEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[execID]
	return e, ok
}

func (s *MemStore) InitExecution(ctx context.Context, execID string, initial map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[execID]; ok {
		return nil
	}
	s.data[execID] = newExecEntry(initial)
	return nil
}

func (s *MemStore) RecordNodeOutput(ctx context.Context, execID, nodeID string, output map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[execID]
	if !ok {
		return engineerr.New(engineerr.KindNotFound, "execution state not initialized: "+execID)
	}
	e.nodeOutputs[nodeID] = output
	return nil
}

func (s *MemStore) GetNodeOutput(ctx context.Context, execID, nodeID string) (map[string]interface{}, bool, error) {
	e, ok := s.get(execID)
	if !ok {
		return nil, false, engineerr.New(engineerr.KindNotFound, "execution state not initialized: "+execID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := e.nodeOutputs[nodeID]
	return out, ok, nil
}

func (s *MemStore) RecordBranchDecision(ctx context.Context, execID, nodeID string, branches []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[execID]
	if !ok {
		return engineerr.New(engineerr.KindNotFound, "execution state not initialized: "+execID)
	}
	e.branches[nodeID] = branches
	return nil
}

func (s *MemStore) GetBranchDecision(ctx context.Context, execID, nodeID string) ([]string, bool, error) {
	e, ok := s.get(execID)
	if !ok {
		return nil, false, engineerr.New(engineerr.KindNotFound, "execution state not initialized: "+execID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := e.branches[nodeID]
	return b, ok, nil
}

func (s *MemStore) MarkSkipped(ctx context.Context, execID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[execID]
	if !ok {
		return engineerr.New(engineerr.KindNotFound, "execution state not initialized: "+execID)
	}
	e.skipped[nodeID] = true
	return nil
}

func (s *MemStore) IsSkipped(ctx context.Context, execID, nodeID string) (bool, error) {
	e, ok := s.get(execID)
	if !ok {
		return false, engineerr.New(engineerr.KindNotFound, "execution state not initialized: "+execID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return e.skipped[nodeID], nil
}

func (s *MemStore) UpdateExecutionStatus(ctx context.Context, execID string, status execmodel.ExecutionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[execID]
	if !ok {
		return engineerr.New(engineerr.KindNotFound, "execution state not initialized: "+execID)
	}
	e.status = status
	return nil
}

func (s *MemStore) GetExecutionStatus(ctx context.Context, execID string) (execmodel.ExecutionStatus, bool, error) {
	e, ok := s.get(execID)
	if !ok {
		return "", false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return e.status, true, nil
}

func (s *MemStore) GetExecutionOutput(ctx context.Context, execID string) (map[string]map[string]interface{}, error) {
	e, ok := s.get(execID)
	if !ok {
		return nil, engineerr.New(engineerr.KindNotFound, "execution state not initialized: "+execID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]interface{}, len(e.nodeOutputs))
	for k, v := range e.nodeOutputs {
		out[k] = v
	}
	return out, nil
}

func (s *MemStore) CleanupExecution(ctx context.Context, execID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, execID)
	return nil
}
