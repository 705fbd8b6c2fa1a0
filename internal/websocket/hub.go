// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/vigil/internal/eventbus"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path
	// (SIGTERM, supervisor stop).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was
	// exceeded, which may point at a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Hub maintains the set of connected clients and fans broadcasts out to
// them. Clients register through the exported channels; the run loop owns
// all map mutation.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub. Run must be started before clients register.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Run services registrations and broadcasts until ctx is canceled, then
// closes every client and returns ctx.Err(). Designed to run under the
// supervision tree.
//
// Selection is priority ordered so behavior stays predictable when several
// channels are ready at once: shutdown first, then client lifecycle, then
// broadcasts. The lifecycle-before-broadcast ordering means the client set
// is settled before a message fans out.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

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

	metrics.TrackWSConnection(true)
	logging.Info().
		Str("component", "websocket-hub").
		Int("total_clients", total).
		Msg("Websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
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
	metrics.TrackWSConnection(false)
	logging.Info().
		Str("component", "websocket-hub").
		Int("total_clients", total).
		Msg("Websocket client disconnected")
}

// shutdown closes all clients and logs the reason. ctx.Err() is not logged
// as an error field; cancellation here is expected behavior.
func (h *Hub) shutdown(ctx context.Context) {
	closed := h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(shutdownReason(ctx))).
		Int("clients_closed", closed).
		Msg("Websocket hub stopped")
}

func shutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// broadcastToClients delivers a message to every connected client in ID
// order. Map iteration order is randomized, so the sort keeps delivery
// order reproducible. A client whose send buffer is full is evicted; a
// stalled reader must not back up the hub.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var evicted []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.RecordWSMessageSent()
		default:
			evicted = append(evicted, client)
		}
	}

	for _, client := range evicted {
		close(client.send)
		delete(h.clients, client)
		metrics.TrackWSConnection(false)
		metrics.RecordWSError("slow_client")
		logging.Warn().
			Str("component", "websocket-hub").
			Uint64("client_id", client.id).
			Msg("Evicted slow websocket client")
	}
}

// closeAllClients closes every connected client in ID order and returns
// how many were closed.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
		metrics.TrackWSConnection(false)
	}
	return len(clients)
}

// BroadcastLiveEvent pushes a captured transport event to all clients.
// This is the hot path; drops are counted but only logged at debug to
// keep a flooded hub from flooding the log too.
func (h *Hub) BroadcastLiveEvent(env *eventbus.Envelope) {
	message := Message{
		Type: MessageTypeLiveEvent,
		Data: env,
	}

	select {
	case h.broadcast <- message:
	default:
		metrics.RecordWSError("queue_full")
		logging.Debug().
			Str("component", "websocket-hub").
			Str("handle", env.Handle).
			Msg("Broadcast queue full, dropping live event")
	}
}

// BroadcastNotification pushes a monitoring state transition to all clients.
func (h *Hub) BroadcastNotification(n *eventbus.Notification) {
	message := Message{
		Type: MessageTypeNotification,
		Data: n,
	}

	select {
	case h.broadcast <- message:
		logging.Debug().
			Str("component", "websocket-hub").
			Str("kind", string(n.Kind)).
			Str("handle", n.Handle).
			Int("clients", h.GetClientCount()).
			Msg("Broadcast notification")
	default:
		metrics.RecordWSError("queue_full")
		logging.Warn().
			Str("component", "websocket-hub").
			Str("kind", string(n.Kind)).
			Msg("Broadcast queue full, dropping notification")
	}
}

// BroadcastJSON pushes an arbitrary typed message to all clients.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	message := Message{
		Type: messageType,
		Data: data,
	}

	select {
	case h.broadcast <- message:
	default:
		metrics.RecordWSError("queue_full")
		logging.Warn().
			Str("component", "websocket-hub").
			Str("message_type", messageType).
			Msg("Broadcast queue full, dropping message")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
