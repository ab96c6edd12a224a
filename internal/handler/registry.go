package handler

import (
	"sync"

	"github.com/nodeflow/engine/internal/engineerr"
)

// Registry maps node type -> Handler. Grounded on
// internal/executor/actions/registry.go's Register/Create/IsRegistered
// trio and its sync.RWMutex-guarded map; registered handlers are
// read-mostly after startup (§9), so lookups take the read lock.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds h under h.Type(), overwriting any prior registration
// for the same type — useful for tests that swap in fakes.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
}

// Get looks up a handler by node type. Unknown type is reported via
// engineerr.KindNotFound so callers (the Scheduler) translate it
// uniformly into a node-level failure (§4.4 "Unknown type during
// execution yields a node-level failure").
func (r *Registry) Get(nodeType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[nodeType]
	if !ok {
		return nil, engineerr.New(engineerr.KindNotFound, "unknown handler type: "+nodeType)
	}
	return h, nil
}

func (r *Registry) IsRegistered(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[nodeType]
	return ok
}

// RegisteredTypes returns every registered node type, in no particular
// order. The DAG Parser does not call it; its unknown-type check goes
// through IsKnown.
func (r *Registry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

// IsTrigger reports whether nodeType is registered and flagged as a
// trigger handler — satisfies dag.TriggerChecker.
func (r *Registry) IsTrigger(nodeType string) bool {
	r.mu.RLock()
	h, ok := r.handlers[nodeType]
	r.mu.RUnlock()
	return ok && h.IsTrigger()
}

// IsKnown satisfies dag.TriggerChecker's second method, reporting
// whether nodeType is registered at all (trigger or not).
func (r *Registry) IsKnown(nodeType string) bool {
	return r.IsRegistered(nodeType)
}
