package realtime

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/obbylee/chatify/internal/store"
	"github.com/obbylee/chatify/internal/token"
)

// WSHandler authenticates and upgrades websocket connections. A
// connection moves Connecting → Authenticated → Closed; one that fails
// authentication is rejected before the upgrade and never registers.
type WSHandler struct {
	hub      *Hub
	tokens   *token.Service
	store    store.DataStore
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewWSHandler creates the websocket endpoint handler. Cross-origin
// upgrades are only accepted from clientURL.
func NewWSHandler(hub *Hub, tokens *token.Service, dataStore store.DataStore, clientURL string, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		tokens: tokens,
		store:  dataStore,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == clientURL
			},
		},
		logger: logger,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Same session token as the REST surface, validated before upgrade
	cookie, err := r.Cookie("jwt")
	if err != nil || cookie.Value == "" {
		jsonError(w, http.StatusUnauthorized, "Unauthorized - No token provided")
		return
	}

	userIDStr, ok := h.tokens.Validate(cookie.Value)
	if !ok {
		jsonError(w, http.StatusUnauthorized, "Unauthorized - Invalid token")
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		jsonError(w, http.StatusUnauthorized, "Unauthorized - Invalid token")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("looking up websocket user")
		jsonError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "User not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(h.hub, conn, user.ID.String(), h.logger)
	h.hub.register(client)

	go client.writePump()
	go client.readPump()
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
