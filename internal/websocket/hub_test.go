package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"robokin/internal/infrastructure"
)

func newTestHub(t *testing.T, opts ...HubOption) *Hub {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(ServeWS(hub, NewUpgrader(0, 0, nil)))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_ConnectAndBroadcast(t *testing.T) {
	hub := newTestHub(t)
	conn := dial(t, hub)

	hello := readMessage(t, conn)
	assert.Equal(t, EventConnection, hello.Type)
	assert.Equal(t, "connected", hello.Status)

	require.Eventually(t, func() bool { return hub.Stats().ActiveClients == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastUpdate("operation:snapshot", "op-1", "running", map[string]int{"progress": 50})

	msg := readMessage(t, conn)
	assert.Equal(t, "operation:snapshot", msg.Type)
	assert.Equal(t, "op-1", msg.Step)
	assert.Equal(t, "running", msg.Status)
	assert.Equal(t, map[string]interface{}{"progress": float64(50)}, msg.Data)
	assert.False(t, msg.Timestamp.IsZero())

	stats := hub.Stats()
	assert.EqualValues(t, 1, stats.TotalConnections)
	assert.EqualValues(t, 2, stats.MessagesSent)
}

func TestHub_BroadcastMessageTraceID(t *testing.T) {
	hub := newTestHub(t)
	conn := dial(t, hub)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.Stats().ActiveClients == 1 }, time.Second, 5*time.Millisecond)

	ctx := infrastructure.WithTraceID(context.Background(), "trace-7")
	hub.BroadcastMessage(ctx, Message{Type: "operation:snapshot"})

	assert.Equal(t, "trace-7", readMessage(t, conn).TraceID)
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub := newTestHub(t)
	conn := dial(t, hub)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.Stats().ActiveClients == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Stats().ActiveClients == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub := newTestHub(t)

	// No WritePump drains this client, so its queue fills up.
	client := NewClient(hub, &mockConnection{}, "")
	require.True(t, hub.Register(client))

	for i := 0; i < sendBuffer+2; i++ {
		hub.BroadcastUpdate("operation:snapshot", "op", "running", i)
	}

	require.Eventually(t, func() bool { return hub.Stats().ActiveClients == 0 }, time.Second, 5*time.Millisecond)
	assert.Positive(t, hub.Stats().MessagesDropped)
}

func TestHub_StoppedHubNeverBlocks(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	hub.Stop()
	hub.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.BroadcastUpdate("operation:snapshot", "op", "running", nil)
		}
		assert.False(t, hub.Register(NewClient(hub, &mockConnection{}, "")))
		hub.Unregister(&Client{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a stopped hub")
	}
	assert.EqualValues(t, broadcastBuffer*2, hub.Stats().MessagesDropped)
}

func TestHub_UnstartedHubDropsWhenFull(t *testing.T) {
	hub := NewHub(nil)
	for i := 0; i < broadcastBuffer+3; i++ {
		hub.BroadcastUpdate("operation:snapshot", "op", "running", nil)
	}
	assert.EqualValues(t, 3, hub.Stats().MessagesDropped)
}

func TestClient_ReadPump(t *testing.T) {
	hub := newTestHub(t)
	conn := &mockConnection{reads: [][]byte{heartbeat, []byte(" {\"type\":\"noise\"} ")}}
	client := NewClient(hub, conn, "trace-1")
	require.True(t, hub.Register(client))
	require.Eventually(t, func() bool { return hub.Stats().ActiveClients == 1 }, time.Second, 5*time.Millisecond)

	client.ReadPump()

	assert.True(t, conn.isClosed())
	require.Eventually(t, func() bool { return hub.Stats().ActiveClients == 0 }, time.Second, 5*time.Millisecond)
}

func TestClient_WritePump(t *testing.T) {
	hub := NewHub(nil)
	conn := &mockConnection{}
	client := NewClient(hub, conn, "")

	client.send <- []byte(`{"type":"a"}`)
	client.send <- []byte(`{"type":"b"}`)
	close(client.send)
	client.WritePump()

	require.Len(t, conn.written, 3, "two messages and the close frame")
	assert.Equal(t, `{"type":"a"}`, string(conn.written[0]))
	assert.Empty(t, conn.written[2])
	assert.True(t, conn.isClosed())
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", []string{"ui.local"}, "", true},
		{"allow all", nil, "http://anything", true},
		{"wildcard", []string{"*"}, "http://anything", true},
		{"full origin", []string{"http://ui.local:3000"}, "http://ui.local:3000", true},
		{"host only", []string{"ui.local:3000"}, "http://ui.local:3000", true},
		{"rejected", []string{"ui.local"}, "http://evil.local", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, NewUpgrader(0, 0, tt.allowed).CheckOrigin(r))
		})
	}
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter(infrastructure.MeterName))
	require.NoError(t, err)

	hub := newTestHub(t, WithMetrics(m))
	conn := dial(t, hub)
	readMessage(t, conn)

	require.Eventually(t, func() bool {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(context.Background(), &rm); err != nil {
			return false
		}
		for _, sm := range rm.ScopeMetrics {
			for _, metric := range sm.Metrics {
				if metric.Name != "websocket_connections_total" {
					continue
				}
				sum, ok := metric.Data.(metricdata.Sum[int64])
				return ok && len(sum.DataPoints) == 1 && sum.DataPoints[0].Value == 1
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}
