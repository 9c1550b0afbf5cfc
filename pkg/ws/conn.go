package ws

import (
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"

	"spotrace-backend/pkg/auth"
)

const (
	// writeWait bounds a single outbound write.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may stay silent.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// sendQueueSize buffers outbound frames per connection.
	sendQueueSize = 64
)

// Conn is one authenticated client connection. Reads are processed serially
// by the read pump; writes go through a buffered queue drained by the write
// pump so broadcasts never block on a slow socket.
type Conn struct {
	id        string
	principal auth.Principal

	hub  *Hub
	sock *websocket.Conn
	log  slog.Logger

	send      chan []byte
	closeOnce sync.Once
}

func newConn(id string, principal auth.Principal, hub *Hub, sock *websocket.Conn, log slog.Logger) *Conn {
	return &Conn{
		id:        id,
		principal: principal,
		hub:       hub,
		sock:      sock,
		log:       log,
		send:      make(chan []byte, sendQueueSize),
	}
}

// Principal returns the authenticated identity behind the connection.
func (c *Conn) Principal() auth.Principal {
	return c.principal
}

// trySend queues a frame without blocking. It reports false when the queue
// is full or already closed.
func (c *Conn) trySend(data []byte) bool {
	defer func() { recover() }() // send on closed channel loses the race, not the process
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend shuts the outbound queue, which ends the write pump.
func (c *Conn) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump consumes inbound frames and hands them to the handler until the
// peer goes away or violates the message size limit.
func (c *Conn) readPump(maxMessageBytes int64, handle func(*Conn, []byte)) {
	defer func() {
		c.hub.Unregister(c)
		c.sock.Close()
	}()

	c.sock.SetReadLimit(maxMessageBytes)
	c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		c.sock.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			if err == websocket.ErrReadLimit {
				c.log.Warnf("Connection %s exceeded message size limit", c.id)
				deadline := time.Now().Add(writeWait)
				c.sock.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseMessageTooBig, "payload too large"),
					deadline)
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debugf("Connection %s read error: %v", c.id, err)
			}
			return
		}
		handle(c, data)
	}
}

// writePump drains the outbound queue and keeps the connection alive with
// pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
