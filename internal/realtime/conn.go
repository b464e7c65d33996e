package realtime

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/minglehq/mingle/internal/tokens"
	"github.com/minglehq/mingle/pkg/logger"
	"github.com/minglehq/mingle/pkg/metrics"
)

// Connection lifecycle states.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Conn is one transport connection. The server owns its lifecycle; the
// write pump is the only goroutine writing to the socket after the
// handshake, and other connections reach it solely through the outbound
// send channel.
type Conn struct {
	id  uuid.UUID
	ws  *websocket.Conn
	srv *Server

	// claims is set once during the handshake, before the pumps start.
	claims *tokens.Claims

	state    atomic.Int32
	failures atomic.Int32

	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func (c *Conn) ID() uuid.UUID         { return c.id }
func (c *Conn) State() State          { return State(c.state.Load()) }
func (c *Conn) Claims() *tokens.Claims { return c.claims }

// enqueue places an already-encoded frame on the outbound queue without
// blocking. A full queue counts as a delivery failure; after
// maxSendFailures consecutive failures the connection is force-closed so a
// stalled socket cannot pin buffers forever.
func (c *Conn) enqueue(b []byte) bool {
	if c.State() != StateAuthenticated {
		return false
	}
	select {
	case c.send <- b:
		c.failures.Store(0)
		return true
	case <-c.done:
		return false
	default:
		metrics.DeliveriesDropped.Inc()
		if int(c.failures.Add(1)) >= c.srv.maxSendFailures {
			metrics.ForcedDisconnects.Inc()
			logger.Warnf("connection %s: outbound queue stalled, forcing disconnect", c.id)
			go c.Close()
		}
		return false
	}
}

// sendFrame encodes and enqueues a frame for this connection.
func (c *Conn) sendFrame(f *Frame) bool {
	b, err := json.Marshal(f)
	if err != nil {
		return false
	}
	return c.enqueue(b)
}

func (c *Conn) sendError(reason string) {
	c.sendFrame(&Frame{Event: EventError, Error: reason})
}

// Close transitions the connection to Closed, synchronously removes it
// from every room and from the live-connection table, discards queued
// outbound messages and closes the transport. Safe to call from any
// goroutine, any number of times, in any state.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
		c.srv.detach(c)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

// readPump reads inbound frames and dispatches them until the transport
// errors or closes. It runs in the connection's own goroutine; exiting
// tears the connection down.
func (c *Conn) readPump() {
	defer c.Close()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("connection %s: read error: %v", c.id, err)
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.sendError(ReasonBadFrame)
			continue
		}
		c.srv.dispatch(c, &f)
	}
}

// writePump owns all writes to the socket: queued frames, keepalive pings
// and the final close message.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
