// Package websocket pushes operation snapshots to browser clients over
// gorilla/websocket connections.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"robokin/internal/infrastructure"
)

// EventConnection is sent to each client right after it registers
const EventConnection = "connection"

const broadcastBuffer = 256

// Message is the JSON envelope of every frame the hub sends
type Message struct {
	Type      string      `json:"type"`
	Step      string      `json:"step,omitempty"`
	Status    string      `json:"status,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// HubStats is a point-in-time view of the hub counters
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

// Hub maintains the set of active clients and fans broadcasts out to them.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	done       chan struct{}

	mu       sync.RWMutex
	running  bool
	stopOnce sync.Once

	logger  *slog.Logger
	metrics *Metrics

	activeClients    atomic.Int64
	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	messagesDropped  atomic.Int64
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithMetrics records hub activity on m
func WithMetrics(m *Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a new Hub. Call Start before serving clients.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start launches the hub loop. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop ends the hub loop and closes every client's send queue
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
		h.mu.RLock()
		running := h.running
		h.mu.RUnlock()
		if running {
			<-h.done
		}
	})
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.activeClients.Store(0)
			h.logger.Info("hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.activeClients.Store(int64(len(h.clients)))
			h.totalConnections.Add(1)
			ctx := client.context()
			h.metrics.recordConnect(ctx)
			h.logger.InfoContext(ctx, "client registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", len(h.clients)))

			h.sendTo(client, Message{
				Type:      EventConnection,
				Status:    "connected",
				Data:      map[string]string{"client_id": client.id},
				Timestamp: time.Now(),
				TraceID:   client.traceID,
			})

		case client := <-h.unregister:
			if _, ok := h.clients[client]; !ok {
				continue
			}
			delete(h.clients, client)
			close(client.send)
			h.activeClients.Store(int64(len(h.clients)))
			ctx := client.context()
			lifetime := time.Since(client.connectedAt)
			h.metrics.recordDisconnect(ctx, lifetime)
			h.logger.InfoContext(ctx, "client unregistered",
				slog.String("client_id", client.id),
				slog.Duration("connection_duration", lifetime),
				slog.Int("total_clients", len(h.clients)))

		case payload := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- payload:
					h.messagesSent.Add(1)
				default:
					// A client that cannot keep up is disconnected rather than
					// allowed to stall every other client.
					delete(h.clients, client)
					close(client.send)
					h.activeClients.Store(int64(len(h.clients)))
					h.messagesDropped.Add(1)
					h.metrics.recordDropped(client.context(), "client_buffer_full")
					h.metrics.recordDisconnect(client.context(), time.Since(client.connectedAt))
					h.logger.Warn("client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}
		}
	}
}

func (h *Hub) sendTo(client *Client, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal message", slog.String("error", err.Error()))
		return
	}
	select {
	case client.send <- payload:
		h.messagesSent.Add(1)
	default:
		h.messagesDropped.Add(1)
	}
}

// BroadcastUpdate queues an event for every connected client. It never
// blocks: when the queue is full or the hub is stopped the message is
// dropped and counted.
func (h *Hub) BroadcastUpdate(eventType, step, status string, data interface{}) {
	h.BroadcastMessage(context.Background(), Message{
		Type:   eventType,
		Step:   step,
		Status: status,
		Data:   data,
	})
}

// BroadcastMessage queues msg, stamping its time and the context trace ID
func (h *Hub) BroadcastMessage(ctx context.Context, msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.TraceID == "" {
		msg.TraceID = infrastructure.GetTraceID(ctx)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal message",
			slog.String("type", msg.Type),
			slog.String("error", err.Error()))
		return
	}

	select {
	case <-h.quit:
		h.messagesDropped.Add(1)
		return
	default:
	}

	select {
	case h.broadcast <- payload:
	default:
		h.messagesDropped.Add(1)
		h.metrics.recordDropped(ctx, "broadcast_queue_full")
		h.logger.WarnContext(ctx, "broadcast queue full, message dropped",
			slog.String("type", msg.Type))
	}
}

// Register adds a client. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client; it is safe after Stop
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Stats returns the current counters
func (h *Hub) Stats() HubStats {
	return HubStats{
		ActiveClients:    int(h.activeClients.Load()),
		TotalConnections: h.totalConnections.Load(),
		MessagesSent:     h.messagesSent.Load(),
		MessagesDropped:  h.messagesDropped.Load(),
	}
}
