package chatify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Envelope is the wire format for events pushed by the server.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Event names pushed by the server.
const (
	EventOnlineUsers = "getOnlineUsers"
	EventNewMessage  = "newMessage"
)

type wsConn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

func (w *wsConn) close() {
	w.closeOnce.Do(func() {
		w.conn.Close()
	})
}

// Connect opens the realtime channel, authenticated by the session
// cookie already held in the client's jar, and starts dispatching
// inbound events. It returns once the connection is established.
func (s *ChatSession) Connect(ctx context.Context) error {
	wsURL, err := websocketURL(s.client.BaseURL)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{
		Jar:              s.client.HTTPClient.Jar,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dialing realtime channel: %w", err)
	}

	s.mu.Lock()
	if s.conn != nil {
		s.conn.close()
	}
	s.conn = &wsConn{conn: conn}
	s.mu.Unlock()

	go s.readLoop(conn)
	return nil
}

// Close tears down the realtime channel.
func (s *ChatSession) Close() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.close()
	}
}

// readLoop dispatches inbound envelopes until the connection drops.
func (s *ChatSession) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}

		switch env.Event {
		case EventNewMessage:
			var msg Message
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				continue
			}
			s.handleNewMessage(msg)
		case EventOnlineUsers:
			var users []string
			if err := json.Unmarshal(env.Data, &users); err != nil {
				continue
			}
			s.handleOnlineUsers(users)
		}
	}
}

// websocketURL converts the REST base URL into the ws endpoint.
func websocketURL(baseURL string) (string, error) {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://") + "/ws", nil
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://") + "/ws", nil
	default:
		return "", fmt.Errorf("unsupported base URL scheme: %s", baseURL)
	}
}
