package fanout

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Role identifies which of the three connection roles a connection
// has (spec.md §4.C).
type Role string

const (
	RoleController  Role = "controller"
	RoleBigScreen   Role = "bigscreen"
	RoleParticipant Role = "participant"
)

// Connection is one live WebSocket connection attached to a session.
// It is intentionally dumb: reading raw frames off the wire and handing
// decoded messages to Inbound, writing whatever lands on Send. Message
// interpretation lives in internal/handler.
type Connection struct {
	ID            string
	SessionID     string
	Role          Role
	ParticipantID string // empty for controller/bigscreen

	conn    *websocket.Conn
	Send    chan []byte
	Inbound chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger

	lastPingNs int64 // unix nanoseconds, written by WritePump, read by the pong handler
	latencyNs  int64 // most recent ping/pong round trip, read by internal/metrics
}

func NewConnection(id, sessionID string, role Role, participantID string, conn *websocket.Conn, log *zap.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		ID:            id,
		SessionID:     sessionID,
		Role:          role,
		ParticipantID: participantID,
		conn:          conn,
		Send:          make(chan []byte, 256),
		Inbound:       make(chan []byte, 64),
		ctx:           ctx,
		cancel:        cancel,
		log:           log,
	}
}

func (c *Connection) Context() context.Context { return c.ctx }
func (c *Connection) Close()                   { c.cancel() }

// LatencyMs returns the most recently measured ping/pong round trip, or
// 0 before the first pong arrives.
func (c *Connection) LatencyMs() float64 {
	return float64(atomic.LoadInt64(&c.latencyNs)) / float64(time.Millisecond)
}

// ReadPump pumps inbound frames from the socket to Inbound until the
// connection drops, then closes Inbound and cancels the connection.
func (c *Connection) ReadPump() {
	defer func() {
		close(c.Inbound)
		c.cancel()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if sent := atomic.LoadInt64(&c.lastPingNs); sent > 0 {
			atomic.StoreInt64(&c.latencyNs, time.Now().UnixNano()-sent)
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("websocket read error", zap.Error(err), zap.String("connectionId", c.ID))
			}
			return
		}
		select {
		case c.Inbound <- message:
		case <-c.ctx.Done():
			return
		}
	}
}

// WritePump pumps outbound frames from Send to the socket and keeps the
// connection alive with periodic pings.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			atomic.StoreInt64(&c.lastPingNs, time.Now().UnixNano())
		case <-c.ctx.Done():
			return
		}
	}
}

// trySend is a non-blocking send that drops a connection whose buffer is
// full rather than block the fan-out loop on one slow client.
func trySend(c *Connection, payload []byte) (dropped bool) {
	select {
	case c.Send <- payload:
		return false
	default:
		return true
	}
}
