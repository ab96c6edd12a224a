package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/engine/internal/scheduler"
)

func TestBus_PublishFansOutToGlobalAndPerExecutionTopics(t *testing.T) {
	bus := New(0)
	global := bus.Subscribe(GlobalTopic)
	scoped := bus.Subscribe(PerExecutionTopic("exec-1"))
	other := bus.Subscribe(PerExecutionTopic("exec-2"))

	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventNodeStarted, ExecutionID: "exec-1", NodeID: "n1"}))

	select {
	case e := <-global.Events():
		assert.Equal(t, "exec-1", e.ExecutionID)
	case <-time.After(time.Second):
		t.Fatal("global subscriber received nothing")
	}

	select {
	case e := <-scoped.Events():
		assert.Equal(t, EventNodeStarted, e.Type)
	case <-time.After(time.Second):
		t.Fatal("scoped subscriber received nothing")
	}

	select {
	case <-other.Events():
		t.Fatal("unrelated execution topic should not receive the event")
	default:
	}
}

func TestBus_OverflowDropsOldestAndMarksBackpressure(t *testing.T) {
	const depth = 8
	bus := New(depth)
	sub := bus.Subscribe(GlobalTopic)

	for i := 0; i < depth+10; i++ {
		require.NoError(t, bus.Publish(context.Background(), Event{Type: EventNodeCompleted, ExecutionID: "exec-1"}))
	}

	assert.Equal(t, 10, sub.Backpressure())
	assert.Len(t, sub.Events(), depth)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New(0)
	sub := bus.Subscribe(GlobalTopic)
	bus.Unsubscribe(sub)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventNodeStarted, ExecutionID: "exec-1"}))

	select {
	case <-sub.Events():
		t.Fatal("unsubscribed subscriber should not receive events")
	default:
	}
}

func TestSchedulerPublisher_SatisfiesInterfaceAndForwards(t *testing.T) {
	bus := New(0)
	sub := bus.Subscribe(PerExecutionTopic("exec-9"))
	pub := SchedulerPublisher{Bus: bus}

	require.NoError(t, pub.Publish(context.Background(), scheduler.Event{
		Type: scheduler.EventExecutionCompleted, ExecutionID: "exec-9",
	}))

	select {
	case e := <-sub.Events():
		assert.Equal(t, EventType(scheduler.EventExecutionCompleted), e.Type)
	case <-time.After(time.Second):
		t.Fatal("expected forwarded event")
	}
}

func TestApprovalPublisher_SatisfiesInterfaceAndForwards(t *testing.T) {
	bus := New(0)
	sub := bus.Subscribe(PerExecutionTopic("exec-7"))
	pub := ApprovalPublisher{Bus: bus}

	require.NoError(t, pub.Publish(context.Background(), "APPROVAL_RESOLVED", "exec-7", "node-1", map[string]interface{}{"approved": true}))

	select {
	case e := <-sub.Events():
		assert.Equal(t, EventApprovalResolved, e.Type)
		assert.Equal(t, true, e.Data["approved"])
	case <-time.After(time.Second):
		t.Fatal("expected forwarded event")
	}
}
