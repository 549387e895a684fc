package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marcus-qen/synapse/internal/protocol"
)

const writeTimeout = 10 * time.Second

// ErrConnClosed is returned by Send once a connection has been torn down.
// A removed connection id is never reused and never written to again.
var ErrConnClosed = errors.New("connection closed")

// Conn represents one connected client. The WebSocket handle is owned
// exclusively by this struct; every outbound frame (broadcast, heartbeat,
// stream chunk, reply) goes through Send so interleaved writers cannot
// corrupt frame ordering.
type Conn struct {
	ID        string
	CreatedAt time.Time

	ws *websocket.Conn

	mu           sync.Mutex
	closed       bool
	lastActivity time.Time
}

// Send encodes and writes one frame. Concurrent callers serialize on the
// per-connection mutex.
func (c *Conn) Send(msgType protocol.MessageType, payload any) error {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Touch records inbound activity for liveness tracking.
func (c *Conn) Touch() {
	c.mu.Lock()
	c.lastActivity = time.Now().UTC()
	c.mu.Unlock()
}

// LastActivity returns the time of the most recent inbound message.
func (c *Conn) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Close marks the connection dead and closes the transport. Idempotent;
// any Send after Close returns ErrConnClosed instead of touching the
// socket.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.ws.Close()
}

// setLastActivity is a test hook for forcing staleness.
func (c *Conn) setLastActivity(t time.Time) {
	c.mu.Lock()
	c.lastActivity = t
	c.mu.Unlock()
}
