// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Control message types. Change notifications use the kinds in models.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

const (
	DefaultBufferSize       = 256
	DefaultClientBufferSize = 256
)

// Message is the frame written to every client: {"type": ..., "data": ...}.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Broadcaster fans a committed change out to connected viewers. It never
// blocks the caller and never reports delivery failures.
type Broadcaster interface {
	Broadcast(ctx context.Context, kind string, data interface{})
}

// Hub maintains the set of active clients and broadcasts messages to them.
// The run loop serializes registration and delivery; mu guards the client
// set for readers outside the loop.
type Hub struct {
	clients      map[*Client]bool
	broadcast    chan Message
	Register     chan *Client
	Unregister   chan *Client
	mu           sync.RWMutex
	clientBuffer int

	// stopped is closed while no run loop is accepting registrations after
	// one has returned. A new run replaces it.
	runMu   sync.Mutex
	stopped chan struct{}
}

// NewHub creates a hub whose broadcast queue holds bufferSize messages and
// whose clients each buffer clientBufferSize frames. Non-positive sizes
// fall back to the defaults.
func NewHub(bufferSize, clientBufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if clientBufferSize <= 0 {
		clientBufferSize = DefaultClientBufferSize
	}
	return &Hub{
		broadcast:    make(chan Message, bufferSize),
		Register:     make(chan *Client),
		Unregister:   make(chan *Client),
		clients:      make(map[*Client]bool),
		clientBuffer: clientBufferSize,
		stopped:      make(chan struct{}),
	}
}

// RegisterClient hands client to the run loop. It reports false, without
// blocking, once the loop has stopped.
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.stoppedCh():
		return false
	}
}

// UnregisterClient removes client through the run loop. After the loop
// has stopped it returns at once; shutdown already closed every client.
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.stoppedCh():
	}
}

func (h *Hub) stoppedCh() <-chan struct{} {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	return h.stopped
}

func (h *Hub) markRunning() {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	select {
	case <-h.stopped:
		h.stopped = make(chan struct{})
	default:
	}
}

func (h *Hub) markStopped() {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	select {
	case <-h.stopped:
	default:
		close(h.stopped)
	}
}

// RunWithContext runs the hub until ctx is canceled, then closes every
// client and returns ctx.Err().
//
// Selection is priority based: shutdown first, then client lifecycle,
// then broadcasts. A client registered before a broadcast is enqueued
// therefore always receives it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.markRunning()
	defer h.markStopped()
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client, "")
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client, "")
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Uint64("ws_client_id", client.id).Int("total_clients", total).Msg("websocket client connected")
}

// removeClient closes the client's queue exactly once. reason is empty for
// a normal disconnect.
func (h *Hub) removeClient(client *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	metrics.WSConnections.Set(float64(total))
	if reason != "" {
		metrics.WSClientsDropped.WithLabelValues(reason).Inc()
	}
	logging.Info().Uint64("ws_client_id", client.id).Int("total_clients", total).Msg("websocket client disconnected")
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()
	h.closeAllClients()

	// ctx.Err() is expected here and is not logged as an error.
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients returns the clients in id order. Caller holds h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients encodes message once and queues the frame on every
// client in id order. A client whose queue is full is removed.
func (h *Hub) broadcastToClients(message Message) {
	frame, err := json.Marshal(message)
	if err != nil {
		logging.Error().Err(err).Str("message_type", message.Type).Msg("failed to encode websocket message")
		return
	}

	h.mu.Lock()
	var toRemove []*Client
	delivered := 0
	for _, client := range h.sortedClients() {
		select {
		case client.send <- frame:
			delivered++
		default:
			toRemove = append(toRemove, client)
		}
	}
	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSMessagesSent.WithLabelValues(message.Type).Add(float64(delivered))
	if len(toRemove) > 0 {
		metrics.WSClientsDropped.WithLabelValues("buffer_full").Add(float64(len(toRemove)))
		metrics.WSConnections.Set(float64(total))
		logging.Warn().Int("dropped", len(toRemove)).Str("message_type", message.Type).Msg("removed slow websocket clients")
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

// Broadcast queues a change notification for every connected client.
// When the hub queue is full the notification is dropped and logged.
func (h *Hub) Broadcast(ctx context.Context, kind string, data interface{}) {
	h.enqueue(ctx, Message{Type: kind, Data: data})
}

// BroadcastJSON queues an arbitrary typed message.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	h.enqueue(context.Background(), Message{Type: messageType, Data: data})
}

// BroadcastRaw relays an already encoded {"type","data"} frame, as
// received from the changefeed. The data payload is forwarded untouched.
func (h *Hub) BroadcastRaw(raw []byte) {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Type == "" {
		logging.Warn().Err(err).Msg("discarding malformed raw websocket message")
		return
	}
	h.enqueue(context.Background(), Message{Type: envelope.Type, Data: envelope.Data})
}

func (h *Hub) enqueue(ctx context.Context, message Message) {
	select {
	case h.broadcast <- message:
		logging.Ctx(ctx).Debug().Str("message_type", message.Type).Int("clients", h.ClientCount()).Msg("broadcast queued")
	default:
		logging.Ctx(ctx).Warn().Str("message_type", message.Type).Msg("broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
