// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package livefeed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/metrics"
)

const (
	// clientSendBuffer is the per-client outbound queue. A client whose
	// queue is full is dropped rather than allowed to stall the relay.
	clientSendBuffer = 32

	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Hub fans admission events out to connected websocket clients. It runs as
// a supervised service consuming the bus subscription.
type Hub struct {
	bus      *Bus
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

// feedClient is one connected dashboard.
type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub over the given bus.
func NewHub(bus *Bus) *Hub {
	return &Hub{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The feed is read-only public dashboard data; origin
			// enforcement happens at the CORS layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*feedClient]struct{}),
	}
}

// Serve implements suture.Service: it consumes the bus subscription and
// broadcasts every event until the context is canceled.
func (h *Hub) Serve(ctx context.Context) error {
	msgs, err := h.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				h.closeAll()
				return nil
			}
			h.broadcast(msg.Payload)
			msg.Ack()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (h *Hub) String() string {
	return "live-feed-hub"
}

// HandleFeed upgrades the request to a websocket and streams admission
// events until the client goes away.
func (h *Hub) HandleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug().Err(err).Msg("Live feed upgrade failed")
		return
	}

	client := &feedClient{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	metrics.LiveFeedClients.Set(float64(count))

	logging.Debug().Int("clients", count).Msg("Live feed client connected")

	go h.writePump(client)
	h.readPump(client)
}

// broadcast queues payload to every client, dropping clients whose queue
// is full. Slow consumers never block the relay.
func (h *Hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			delete(h.clients, client)
			close(client.send)
			metrics.LiveFeedClients.Set(float64(len(h.clients)))
			logging.Debug().Msg("Dropped slow live feed client")
		}
	}
}

// removeClient unregisters a client and closes its queue once.
func (h *Hub) removeClient(client *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		metrics.LiveFeedClients.Set(float64(len(h.clients)))
	}
}

// closeAll disconnects every client, used at shutdown.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	metrics.LiveFeedClients.Set(0)
}

// writePump drains the client's queue onto the wire and keeps the
// connection alive with pings.
func (h *Hub) writePump(client *feedClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames (the feed is one-way) and detects
// disconnects.
func (h *Hub) readPump(client *feedClient) {
	defer h.removeClient(client)
	client.conn.SetReadLimit(512)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
