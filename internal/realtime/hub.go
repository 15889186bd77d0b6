// Package realtime implements the online-presence registry and the
// websocket delivery channel that pushes newly persisted messages to
// their receiver's live connection.
package realtime

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/obbylee/chatify/internal/metrics"
	"github.com/obbylee/chatify/internal/models"
)

// Notifier routes a newly persisted message to the receiver's live
// connection, if any. Delivery is best-effort; a durable queue could be
// substituted without touching the message store contract.
type Notifier interface {
	Deliver(receiverID string, msg *models.Message)
}

// Hub is the in-memory presence registry. It maps each user identifier
// to at most one active connection; a new connection for the same user
// replaces the prior one (last-connect-wins). State is process-local
// and cleared on restart.
type Hub struct {
	mu     sync.RWMutex
	byUser map[string]*Client
	logger zerolog.Logger
}

// NewHub creates an empty presence registry.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		byUser: make(map[string]*Client),
		logger: logger,
	}
}

// register records the client as its user's active connection,
// superseding and closing any prior connection, and broadcasts the
// updated online set to every connection.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	prev := h.byUser[c.UserID]
	h.byUser[c.UserID] = c
	h.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	h.logger.Info().
		Str("user_id", c.UserID).
		Str("conn_id", c.ID).
		Msg("user connected")

	h.broadcastOnlineUsers()
}

// unregister removes the client's presence entry, but only if it is
// still the current entry for its user. A stale disconnect from a
// superseded connection must not evict a newer registration.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	current := h.byUser[c.UserID] == c
	if current {
		delete(h.byUser, c.UserID)
	}
	h.mu.Unlock()

	c.Close()

	if !current {
		return
	}

	h.logger.Info().
		Str("user_id", c.UserID).
		Str("conn_id", c.ID).
		Msg("user disconnected")

	h.broadcastOnlineUsers()
}

// Lookup returns the connection identifier registered for the user.
func (h *Hub) Lookup(userID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.byUser[userID]
	if !ok {
		return "", false
	}
	return c.ID, true
}

// OnlineUsers returns the sorted identifiers of all users with an
// active connection.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onlineUsersLocked()
}

func (h *Hub) onlineUsersLocked() []string {
	users := make([]string, 0, len(h.byUser))
	for userID := range h.byUser {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// broadcastOnlineUsers fans the full online set out to every connected
// client. Clients filter membership themselves; a slow connection drops
// the event rather than delaying the rest.
func (h *Hub) broadcastOnlineUsers() {
	h.mu.RLock()
	users := h.onlineUsersLocked()
	targets := make([]*Client, 0, len(h.byUser))
	for _, c := range h.byUser {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	metrics.OnlineUsers.Set(float64(len(users)))

	payload, err := encodeEvent(EventOnlineUsers, users)
	if err != nil {
		h.logger.Error().Err(err).Msg("encoding online users event")
		return
	}

	for _, c := range targets {
		c.trySend(EventOnlineUsers, payload)
	}
}

// Deliver pushes a newMessage event to the receiver's connection only.
// If the receiver is offline the message is not delivered in realtime;
// they will see it on their next history fetch.
func (h *Hub) Deliver(receiverID string, msg *models.Message) {
	h.mu.RLock()
	c, ok := h.byUser[receiverID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	payload, err := encodeEvent(EventNewMessage, msg)
	if err != nil {
		h.logger.Error().Err(err).Str("message_id", msg.ID).Msg("encoding message event")
		return
	}

	c.trySend(EventNewMessage, payload)
	metrics.MessagesDelivered.Inc()
}
