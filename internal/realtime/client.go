package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/obbylee/chatify/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
	sendQueueSize  = 64
)

// Client represents one authenticated websocket connection.
//
// send is intentionally never closed; a full queue drops the event
// instead of blocking the broadcaster. done signals the pumps to stop
// and Close is idempotent.
type Client struct {
	ID     string // connection identifier
	UserID string

	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger zerolog.Logger

	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, userID string, logger zerolog.Logger) *Client {
	return &Client{
		ID:     ulid.Make().String(),
		UserID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Close signals the client pumps to stop (idempotent). It does not
// close send, so concurrent broadcasters stay safe.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// trySend queues a payload without blocking. A slow or hung connection
// loses the event rather than stalling broadcasts to others.
func (c *Client) trySend(event string, payload []byte) {
	select {
	case c.send <- payload:
	case <-c.done:
	default:
		metrics.RealtimeEventsDropped.WithLabelValues(event).Inc()
		c.logger.Warn().
			Str("conn_id", c.ID).
			Str("user_id", c.UserID).
			Str("event", event).
			Msg("send queue full, dropping event")
	}
}

// readPump consumes the connection until it errors or closes, then
// unregisters the client. Inbound frames carry no protocol meaning;
// the channel is server-push only.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the send queue and keeps the connection alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}
