package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/engine/internal/execmodel"
)

type memRepo struct {
	mu        sync.Mutex
	approvals map[string]*execmodel.ExecutionApproval
	actions   map[string]map[string]bool // approvalID -> userID -> acted
}

func newMemRepo() *memRepo {
	return &memRepo{
		approvals: make(map[string]*execmodel.ExecutionApproval),
		actions:   make(map[string]map[string]bool),
	}
}

func (r *memRepo) GetApproval(ctx context.Context, approvalID string) (*execmodel.ExecutionApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.approvals[approvalID]
	if !ok {
		return nil, assertErr{"not found"}
	}
	cp := *a
	return &cp, nil
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }

func (r *memRepo) SaveApproval(ctx context.Context, a *execmodel.ExecutionApproval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approvals[a.ID] = a
	return nil
}

func (r *memRepo) UpdateApproval(ctx context.Context, a *execmodel.ExecutionApproval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approvals[a.ID] = a
	return nil
}

func (r *memRepo) SaveAction(ctx context.Context, a *execmodel.ApprovalAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.actions[a.ApprovalID] == nil {
		r.actions[a.ApprovalID] = make(map[string]bool)
	}
	r.actions[a.ApprovalID][a.UserID] = true
	return nil
}

func (r *memRepo) HasActed(ctx context.Context, approvalID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.actions[approvalID][userID], nil
}

func (r *memRepo) ListPendingExpiring(ctx context.Context, before time.Time) ([]*execmodel.ExecutionApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*execmodel.ExecutionApproval
	for _, a := range r.approvals {
		if a.Status == execmodel.ApprovalPending && before.After(a.ExpiresAt) {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeResumer struct {
	mu     sync.Mutex
	resumes []map[string]interface{}
}

func (f *fakeResumer) Resume(execID, nodeID string, resumeData map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes = append(f.resumes, resumeData)
	return nil
}

type fakePublisher struct{}

func (fakePublisher) Publish(ctx context.Context, eventType, executionID, nodeID string, data map[string]interface{}) error {
	return nil
}

func TestSubmitApproval_AnyModeResolvesOnFirstApprove(t *testing.T) {
	repo := newMemRepo()
	resumer := &fakeResumer{}
	c := New(repo, resumer, fakePublisher{})

	a := &execmodel.ExecutionApproval{
		ID: "a1", ExecutionID: "e1", NodeID: "n1",
		ApprovalMode: execmodel.ApprovalModeAny, RequiredApprovers: 3,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, c.CreateApproval(context.Background(), a))

	require.NoError(t, c.SubmitApproval(context.Background(), "a1", "user1", execmodel.ActionApprove, ""))

	got, err := repo.GetApproval(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, execmodel.ApprovalApproved, got.Status)
	assert.Len(t, resumer.resumes, 1)
}

func TestSubmitApproval_AllModeRequiresEveryApprover(t *testing.T) {
	repo := newMemRepo()
	resumer := &fakeResumer{}
	c := New(repo, resumer, fakePublisher{})

	a := &execmodel.ExecutionApproval{
		ID: "a2", ExecutionID: "e2", NodeID: "n2",
		ApprovalMode: execmodel.ApprovalModeAll, RequiredApprovers: 2,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, c.CreateApproval(context.Background(), a))

	require.NoError(t, c.SubmitApproval(context.Background(), "a2", "user1", execmodel.ActionApprove, ""))
	got, _ := repo.GetApproval(context.Background(), "a2")
	assert.Equal(t, execmodel.ApprovalPending, got.Status)

	require.NoError(t, c.SubmitApproval(context.Background(), "a2", "user2", execmodel.ActionApprove, ""))
	got, _ = repo.GetApproval(context.Background(), "a2")
	assert.Equal(t, execmodel.ApprovalApproved, got.Status)
}

func TestSubmitApproval_MajorityMode(t *testing.T) {
	repo := newMemRepo()
	resumer := &fakeResumer{}
	c := New(repo, resumer, fakePublisher{})

	a := &execmodel.ExecutionApproval{
		ID: "a3", ExecutionID: "e3", NodeID: "n3",
		ApprovalMode: execmodel.ApprovalModeMajority, RequiredApprovers: 3,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, c.CreateApproval(context.Background(), a))

	require.NoError(t, c.SubmitApproval(context.Background(), "a3", "user1", execmodel.ActionApprove, ""))
	got, _ := repo.GetApproval(context.Background(), "a3")
	assert.Equal(t, execmodel.ApprovalPending, got.Status)

	require.NoError(t, c.SubmitApproval(context.Background(), "a3", "user2", execmodel.ActionApprove, ""))
	got, _ = repo.GetApproval(context.Background(), "a3")
	assert.Equal(t, execmodel.ApprovalApproved, got.Status)
}

func TestSubmitApproval_RejectsDoubleVote(t *testing.T) {
	repo := newMemRepo()
	resumer := &fakeResumer{}
	c := New(repo, resumer, fakePublisher{})

	a := &execmodel.ExecutionApproval{
		ID: "a4", ExecutionID: "e4", NodeID: "n4",
		ApprovalMode: execmodel.ApprovalModeAll, RequiredApprovers: 3,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, c.CreateApproval(context.Background(), a))
	require.NoError(t, c.SubmitApproval(context.Background(), "a4", "user1", execmodel.ActionApprove, ""))

	err := c.SubmitApproval(context.Background(), "a4", "user1", execmodel.ActionApprove, "")
	require.Error(t, err)
}

func TestSubmitApproval_RejectsAfterExpiry(t *testing.T) {
	repo := newMemRepo()
	resumer := &fakeResumer{}
	c := New(repo, resumer, fakePublisher{})

	a := &execmodel.ExecutionApproval{
		ID: "a5", ExecutionID: "e5", NodeID: "n5",
		ApprovalMode: execmodel.ApprovalModeAny, RequiredApprovers: 1,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, c.CreateApproval(context.Background(), a))

	err := c.SubmitApproval(context.Background(), "a5", "user1", execmodel.ActionApprove, "")
	require.Error(t, err)

	got, _ := repo.GetApproval(context.Background(), "a5")
	assert.Equal(t, execmodel.ApprovalExpired, got.Status)
}

func TestExpireSweep_MarksExpiredAndResumes(t *testing.T) {
	repo := newMemRepo()
	resumer := &fakeResumer{}
	c := New(repo, resumer, fakePublisher{})

	a := &execmodel.ExecutionApproval{
		ID: "a6", ExecutionID: "e6", NodeID: "n6",
		ApprovalMode: execmodel.ApprovalModeAny, RequiredApprovers: 1,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, c.CreateApproval(context.Background(), a))

	n, err := c.ExpireSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, resumer.resumes, 1)
}
