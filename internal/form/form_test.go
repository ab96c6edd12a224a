package form

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/engine/internal/engineerr"
	"github.com/nodeflow/engine/internal/execmodel"
)

type memRepo struct {
	mu          sync.Mutex
	byFlowNode  map[string]*execmodel.FormTrigger
	submissions map[string]bool
}

func newMemRepo() *memRepo {
	return &memRepo{byFlowNode: make(map[string]*execmodel.FormTrigger), submissions: make(map[string]bool)}
}

func key(flowID, nodeID string) string { return flowID + "/" + nodeID }

func (r *memRepo) GetByFlowNode(ctx context.Context, flowID, nodeID string) (*execmodel.FormTrigger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byFlowNode[key(flowID, nodeID)]
	if !ok {
		return nil, engineerr.New(engineerr.KindNotFound, "form trigger not found")
	}
	cp := *t
	return &cp, nil
}

func (r *memRepo) GetByToken(ctx context.Context, token string) (*execmodel.FormTrigger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byFlowNode {
		if t.FormToken == token {
			cp := *t
			return &cp, nil
		}
	}
	return nil, engineerr.New(engineerr.KindNotFound, "form trigger not found")
}

func (r *memRepo) Save(ctx context.Context, t *execmodel.FormTrigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byFlowNode[key(t.FlowID, t.NodeID)] = t
	return nil
}

func (r *memRepo) Update(ctx context.Context, t *execmodel.FormTrigger) error {
	return r.Save(ctx, t)
}

func (r *memRepo) HasSubmission(ctx context.Context, executionID, nodeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.submissions[key(executionID, nodeID)], nil
}

func (r *memRepo) SaveSubmission(ctx context.Context, s *execmodel.FormSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions[key(s.ExecutionID, s.NodeID)] = true
	return nil
}

type fakeResumer struct {
	mu      sync.Mutex
	resumed bool
}

func (f *fakeResumer) Resume(execID, nodeID string, resumeData map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = true
	return nil
}

func TestCreateOrUpdateFormTrigger_IdempotentTokenPreserved(t *testing.T) {
	repo := newMemRepo()
	c := New(repo, &fakeResumer{})

	first, err := c.CreateOrUpdateFormTrigger(context.Background(), "flow-1", "node-1", nil, 7, 0, "user-1")
	require.NoError(t, err)
	assert.Len(t, first.FormToken, 32)

	second, err := c.CreateOrUpdateFormTrigger(context.Background(), "flow-1", "node-1", []byte(`{"x":1}`), 14, 5, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.FormToken, second.FormToken)
	assert.Equal(t, 5, second.MaxSubmissions)
}

func TestSubmit_Success(t *testing.T) {
	repo := newMemRepo()
	resumer := &fakeResumer{}
	c := New(repo, resumer)

	_, err := c.CreateOrUpdateFormTrigger(context.Background(), "flow-1", "node-1", nil, 0, 0, "user-1")
	require.NoError(t, err)

	err = c.Submit(context.Background(), "exec-1", "node-1", []byte(`{"answer":"yes"}`), "flow-1", "user-2", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, resumer.resumed)
}

func TestSubmit_RejectsDoubleSubmission(t *testing.T) {
	repo := newMemRepo()
	c := New(repo, &fakeResumer{})
	_, err := c.CreateOrUpdateFormTrigger(context.Background(), "flow-1", "node-1", nil, 0, 0, "user-1")
	require.NoError(t, err)

	require.NoError(t, c.Submit(context.Background(), "exec-1", "node-1", nil, "flow-1", "u", "ip"))
	err = c.Submit(context.Background(), "exec-1", "node-1", nil, "flow-1", "u", "ip")
	require.Error(t, err)
}

func TestSubmit_RejectsWhenCapReached(t *testing.T) {
	repo := newMemRepo()
	c := New(repo, &fakeResumer{})
	_, err := c.CreateOrUpdateFormTrigger(context.Background(), "flow-1", "node-1", nil, 0, 1, "user-1")
	require.NoError(t, err)

	require.NoError(t, c.Submit(context.Background(), "exec-1", "node-1", nil, "flow-1", "u", "ip"))
	err = c.Submit(context.Background(), "exec-2", "node-1", nil, "flow-1", "u", "ip")
	require.Error(t, err)
}

func TestSubmit_RejectsWhenExpired(t *testing.T) {
	repo := newMemRepo()
	c := New(repo, &fakeResumer{})
	_, err := c.CreateOrUpdateFormTrigger(context.Background(), "flow-1", "node-1", nil, 0, 0, "user-1")
	require.NoError(t, err)

	trigger, _ := repo.GetByFlowNode(context.Background(), "flow-1", "node-1")
	past := time.Now().Add(-time.Hour)
	trigger.ExpiresAt = &past
	require.NoError(t, repo.Update(context.Background(), trigger))

	err = c.Submit(context.Background(), "exec-1", "node-1", nil, "flow-1", "u", "ip")
	require.Error(t, err)
}

func TestRegenerateToken_Rotates(t *testing.T) {
	repo := newMemRepo()
	c := New(repo, &fakeResumer{})
	first, err := c.CreateOrUpdateFormTrigger(context.Background(), "flow-1", "node-1", nil, 0, 0, "user-1")
	require.NoError(t, err)

	newToken, err := c.RegenerateToken(context.Background(), "flow-1", "node-1")
	require.NoError(t, err)
	assert.NotEqual(t, first.FormToken, newToken)
}
