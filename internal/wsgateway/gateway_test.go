package wsgateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/engine/internal/eventbus"
)

func newTestServer(t *testing.T) (*httptest.Server, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New(0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := New(bus, logger)

	r := chi.NewRouter()
	gw.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, bus
}

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func TestGateway_GlobalTopicStreamsEvents(t *testing.T) {
	srv, bus := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, "/topic/executions"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, bus.Publish(context.Background(), eventbus.Event{
		Type: eventbus.EventExecutionStarted, ExecutionID: "exec-1",
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg wireMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	require.Equal(t, eventbus.EventExecutionStarted, msg.Type)
	require.Equal(t, "exec-1", msg.ExecutionID)
}

func TestGateway_ExecutionTopicScopesToOneExecution(t *testing.T) {
	srv, bus := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, "/topic/executions/exec-42"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, bus.Publish(context.Background(), eventbus.Event{
		Type: eventbus.EventNodeCompleted, ExecutionID: "exec-other",
	}))
	require.NoError(t, bus.Publish(context.Background(), eventbus.Event{
		Type: eventbus.EventNodeCompleted, ExecutionID: "exec-42", NodeID: "n1",
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg wireMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	require.Equal(t, "exec-42", msg.ExecutionID)
	require.Equal(t, "n1", msg.NodeID)
}
