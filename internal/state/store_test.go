package state

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/engine/internal/execmodel"
)

func newRedisStoreForTest(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, time.Minute)
}

func runStoreContract(t *testing.T, newStore func() Store) {
	ctx := context.Background()

	t.Run("init then record then get round-trips", func(t *testing.T) {
		s := newStore()
		require.NoError(t, s.InitExecution(ctx, "exec-1", map[string]interface{}{"foo": "bar"}))

		require.NoError(t, s.RecordNodeOutput(ctx, "exec-1", "nodeA", map[string]interface{}{"x": float64(1)}))
		out, ok, err := s.GetNodeOutput(ctx, "exec-1", "nodeA")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, float64(1), out["x"])

		_, ok, err = s.GetNodeOutput(ctx, "exec-1", "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("branch decisions and skipped nodes", func(t *testing.T) {
		s := newStore()
		require.NoError(t, s.InitExecution(ctx, "exec-2", nil))
		require.NoError(t, s.RecordBranchDecision(ctx, "exec-2", "switch1", []string{"true"}))
		branches, ok, err := s.GetBranchDecision(ctx, "exec-2", "switch1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{"true"}, branches)

		require.NoError(t, s.MarkSkipped(ctx, "exec-2", "nodeB"))
		skipped, err := s.IsSkipped(ctx, "exec-2", "nodeB")
		require.NoError(t, err)
		assert.True(t, skipped)

		skipped, err = s.IsSkipped(ctx, "exec-2", "nodeC")
		require.NoError(t, err)
		assert.False(t, skipped)
	})

	t.Run("execution status transitions and cleanup", func(t *testing.T) {
		s := newStore()
		require.NoError(t, s.InitExecution(ctx, "exec-3", nil))
		status, ok, err := s.GetExecutionStatus(ctx, "exec-3")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, execmodel.ExecutionRunning, status)

		require.NoError(t, s.UpdateExecutionStatus(ctx, "exec-3", execmodel.ExecutionCompleted))
		status, ok, err = s.GetExecutionStatus(ctx, "exec-3")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, execmodel.ExecutionCompleted, status)

		require.NoError(t, s.RecordNodeOutput(ctx, "exec-3", "nodeA", map[string]interface{}{"y": "z"}))
		outputs, err := s.GetExecutionOutput(ctx, "exec-3")
		require.NoError(t, err)
		assert.Contains(t, outputs, "nodeA")

		require.NoError(t, s.CleanupExecution(ctx, "exec-3"))
		_, ok, err = s.GetExecutionStatus(ctx, "exec-3")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMemStore_Contract(t *testing.T) {
	runStoreContract(t, func() Store { return NewMemStore() })
}

func TestRedisStore_Contract(t *testing.T) {
	runStoreContract(t, func() Store { return newRedisStoreForTest(t) })
}
