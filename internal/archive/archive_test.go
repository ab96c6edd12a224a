package archive

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/engine/internal/execmodel"
)

type memRepo struct {
	mu         sync.Mutex
	executions map[string]*execmodel.Execution
	nodeExecs  map[string][]*execmodel.NodeExecution
	archives   map[string]*execmodel.ExecutionArchive
	flowInfo   FlowInfo
}

func newMemRepo() *memRepo {
	return &memRepo{
		executions: make(map[string]*execmodel.Execution),
		nodeExecs:  make(map[string][]*execmodel.NodeExecution),
		archives:   make(map[string]*execmodel.ExecutionArchive),
		flowInfo:   FlowInfo{FlowName: "test-flow", FlowVersion: 1},
	}
}

func (r *memRepo) ListArchivable(ctx context.Context, olderThan time.Time, limit int) ([]*execmodel.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*execmodel.Execution
	for _, e := range r.executions {
		if e.Status.IsTerminal() && e.CompletedAt != nil && !e.CompletedAt.After(olderThan) {
			out = append(out, e)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) GetFlowInfo(ctx context.Context, flowID, flowVersionID string) (FlowInfo, error) {
	return r.flowInfo, nil
}

func (r *memRepo) GetNodeExecutions(ctx context.Context, executionID string) ([]*execmodel.NodeExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nodeExecs[executionID], nil
}

func (r *memRepo) SaveArchive(ctx context.Context, a *execmodel.ExecutionArchive) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.archives[a.ID] = a
	return nil
}

func (r *memRepo) DeleteExecution(ctx context.Context, executionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.executions, executionID)
	return nil
}

func (r *memRepo) ListExpiredArchives(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id, a := range r.archives {
		if !a.ArchivedAt.After(olderThan) {
			out = append(out, id)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) DeleteArchive(ctx context.Context, archiveID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.archives, archiveID)
	return nil
}

type fakeStateCleaner struct {
	mu     sync.Mutex
	called []string
}

func (f *fakeStateCleaner) CleanupExecution(ctx context.Context, executionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = append(f.called, executionID)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchiveBatch_ArchivesEligibleExecutionsAndCleansState(t *testing.T) {
	repo := newMemRepo()
	state := &fakeStateCleaner{}
	completed := time.Now().Add(-time.Hour)
	repo.executions["exec-1"] = &execmodel.Execution{
		ID: "exec-1", TenantID: "t1", FlowID: "f1", FlowVersionID: "fv1",
		Status: execmodel.ExecutionCompleted, CompletedAt: &completed,
	}
	repo.nodeExecs["exec-1"] = []*execmodel.NodeExecution{{ID: "ne1", ExecutionID: "exec-1", NodeID: "n1", Status: execmodel.NodeExecCompleted}}

	svc := New(repo, state, testLogger(), DefaultConfig())
	n, err := svc.ArchiveBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, stillLive := repo.executions["exec-1"]
	assert.False(t, stillLive)
	assert.Len(t, repo.archives, 1)
	assert.Contains(t, state.called, "exec-1")
}

func TestArchiveBatch_SkipsTooRecentExecutions(t *testing.T) {
	repo := newMemRepo()
	state := &fakeStateCleaner{}
	recent := time.Now()
	repo.executions["exec-2"] = &execmodel.Execution{
		ID: "exec-2", Status: execmodel.ExecutionCompleted, CompletedAt: &recent,
	}

	svc := New(repo, state, testLogger(), DefaultConfig())
	n, err := svc.ArchiveBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, repo.executions, 1)
}

func TestPurgeExpired_DeletesArchivesPastRetention(t *testing.T) {
	repo := newMemRepo()
	repo.archives["a1"] = &execmodel.ExecutionArchive{ID: "a1", ArchivedAt: time.Now().AddDate(0, 0, -40)}
	repo.archives["a2"] = &execmodel.ExecutionArchive{ID: "a2", ArchivedAt: time.Now()}

	svc := New(repo, &fakeStateCleaner{}, testLogger(), DefaultConfig())
	n, err := svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, repo.archives, 1)
	_, stillThere := repo.archives["a2"]
	assert.True(t, stillThere)
}
