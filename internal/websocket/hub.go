// Package websocket maps connection IDs to live websocket connections and
// implements the transport primitive the broadcast sender needs.
package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/andyjduncan/eurosight/internal/domain"
	"github.com/andyjduncan/eurosight/internal/metrics"
)

const (
	writeTimeout    = 5 * time.Second
	sendBufferSize  = 16
	hubCommandDepth = 256
)

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	connectionID string
	conn         *websocket.Conn
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	connectionID string
	conn         *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdSend struct {
	connectionID string
	payload      []byte
	errCh        chan error
}

func (cmdSend) hubCmd() {}

type cmdCount struct {
	replyCh chan int
}

func (cmdCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	conn   *websocket.Conn
	clock  clockwork.Clock
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn, clock clockwork.Clock) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		clock:  clock,
		sendCh: make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case payload, ok := <-cw.sendCh:
			if !ok {
				return
			}
			_ = cw.conn.SetWriteDeadline(cw.clock.Now().Add(writeTimeout))
			if err := cw.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	_ = cw.conn.Close()
}

// --- Hub ---

// Hub owns the connectionID to connection mapping behind a single actor
// goroutine. It implements the sender's Transport: sends to unknown IDs
// report the connection as gone, and slow clients are evicted by closing
// their connection, which unwinds through the server's read loop.
type Hub struct {
	cmdCh   chan hubCmd
	clock   clockwork.Clock
	clients map[string]*clientWriter
}

func NewHub(clock clockwork.Clock) *Hub {
	h := &Hub{
		cmdCh:   make(chan hubCmd, hubCommandDepth),
		clock:   clock,
		clients: make(map[string]*clientWriter),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	// The actor keeps answering after stop. Callers racing a shutdown get
	// domain.ErrConnectionGone instead of blocking on an abandoned channel.
	stopped := false
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			if stopped {
				_ = c.conn.Close()
				continue
			}
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.connectionID, c.conn)
		case cmdSend:
			c.errCh <- h.handleSend(c)
		case cmdCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			stopped = true
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if old, exists := h.clients[c.connectionID]; exists {
		old.stop()
	}
	h.clients[c.connectionID] = newClientWriter(c.conn, h.clock)
	metrics.ConnectedClients.Set(float64(len(h.clients)))
	slog.Info("Client registered", "connection_id", c.connectionID, "total_clients", len(h.clients))
}

func (h *Hub) handleUnregister(connectionID string, conn *websocket.Conn) {
	cw, exists := h.clients[connectionID]
	if !exists {
		return
	}
	// A stale unregister for a replaced connection must not tear down the
	// writer that superseded it.
	if conn != nil && cw.conn != conn {
		return
	}
	cw.stop()
	delete(h.clients, connectionID)
	metrics.ConnectedClients.Set(float64(len(h.clients)))
	slog.Info("Client unregistered", "connection_id", connectionID, "remaining_clients", len(h.clients))
}

func (h *Hub) handleSend(c cmdSend) error {
	cw, exists := h.clients[c.connectionID]
	if !exists {
		return domain.ErrConnectionGone
	}

	select {
	case cw.sendCh <- c.payload:
		return nil
	default:
		// Buffer full: the client is too slow to keep. Closing the
		// connection unwinds its read loop, which deregisters it.
		metrics.SlowClientsEvicted.Inc()
		slog.Warn("Evicting slow client", "connection_id", c.connectionID)
		h.handleUnregister(c.connectionID, cw.conn)
		return domain.ErrConnectionGone
	}
}

func (h *Hub) handleStop() {
	for id, cw := range h.clients {
		cw.stop()
		delete(h.clients, id)
	}
	metrics.ConnectedClients.Set(0)
}

// --- Public API ---

// Register adds a connection under connectionID, replacing any writer
// already registered for that ID.
func (h *Hub) Register(connectionID string, conn *websocket.Conn) {
	h.cmdCh <- cmdRegister{connectionID: connectionID, conn: conn}
}

// Unregister removes a connection and closes it. A non-nil conn restricts
// removal to that exact connection, protecting a replacement writer
// registered under the same ID.
func (h *Hub) Unregister(connectionID string, conn *websocket.Conn) {
	h.cmdCh <- cmdUnregister{connectionID: connectionID, conn: conn}
}

// Send queues payload for delivery to connectionID. Returns
// domain.ErrConnectionGone when the connection is unknown or evicted.
func (h *Hub) Send(_ context.Context, connectionID string, payload []byte) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdSend{connectionID: connectionID, payload: payload, errCh: errCh}
	return <-errCh
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdCount{replyCh: replyCh}
	return <-replyCh
}

// Stop shuts down the hub, closing all client connections.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
}
