// internal/chathub/connection.go
// Per-socket goroutines, grounded on the teacher's internal/messaging/client.go.

package chathub

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the largest frame accepted from a peer.
	maxMessageSize = 512 * 1024

	// authHandshakeTimeout is spec.md §4.5's 5-second post-upgrade window.
	authHandshakeTimeout = 5 * time.Second
)

// connection wraps one physical socket. It carries no auth state itself —
// the hub's indices are the single source of truth for that, per spec.md §9.
type connection struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

func newConnection(id string, conn *websocket.Conn, hub *Hub) *connection {
	return &connection{id: id, conn: conn, send: make(chan []byte, 256), hub: hub}
}

func (c *connection) start() {
	go c.writePump()
	go c.readPump()
}

func (c *connection) readPump() {
	defer func() {
		c.hub.remove(c.id)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.markAlive(c.id)
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("chathub: websocket read error on %s: %v", c.id, err)
			}
			return
		}
		c.hub.dispatcher.Dispatch(c.hub, c.id, data)
	}
}

// writePump drains the connection's send queue. Liveness pings are driven
// by the hub's single heartbeat ticker (spec.md §4.5), not from here.
func (c *connection) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))

		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)

		if err := w.Close(); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ping sends a liveness ping directly on the control channel; called from
// the hub's heartbeat goroutine while holding no connection-specific lock.
func (c *connection) ping() error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// enqueue is a non-blocking best-effort write; a stuck recipient never
// stalls the sender (spec.md §5).
func (c *connection) enqueue(frame OutboundFrame) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("chathub: marshal frame: %v", err)
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *connection) closeWithCode(code int, reason string) {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	close(c.send)
}
