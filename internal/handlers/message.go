package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/obbylee/chatify/internal/api/middleware"
	"github.com/obbylee/chatify/internal/metrics"
	"github.com/obbylee/chatify/internal/models"
	"github.com/obbylee/chatify/internal/upload"
)

// SendMessageRequest represents the send message request body. At
// least one of text and image must be set.
type SendMessageRequest struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"` // base64 data URL
}

// GetContacts lists all users except the caller.
func (h *Handler) GetContacts(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "Unauthorized - No token provided")
		return
	}

	contacts, err := h.store.ListContacts(r.Context(), user.ID)
	if err != nil {
		h.internalError(w, "listing contacts", err)
		return
	}

	h.JSON(w, http.StatusOK, contacts)
}

// GetChatPartners lists the distinct users the caller has exchanged at
// least one message with.
func (h *Handler) GetChatPartners(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "Unauthorized - No token provided")
		return
	}

	partners, err := h.store.ListChatPartners(r.Context(), user.ID)
	if err != nil {
		h.internalError(w, "listing chat partners", err)
		return
	}

	h.JSON(w, http.StatusOK, partners)
}

// GetConversation returns the full conversation with the user in the
// URL, oldest first.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "Unauthorized - No token provided")
		return
	}

	otherID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	messages, err := h.store.ListConversation(r.Context(), user.ID, otherID)
	if err != nil {
		h.internalError(w, "listing conversation", err)
		return
	}

	h.JSON(w, http.StatusOK, messages)
}

// SendMessage persists a message to the user in the URL and pushes it
// to their live connection, if any.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sender := middleware.UserFromContext(r.Context())
	if sender == nil {
		h.Error(w, http.StatusUnauthorized, "Unauthorized - No token provided")
		return
	}

	receiverID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)

	if req.Text == "" && req.Image == "" {
		h.Error(w, http.StatusBadRequest, "Text or image is required.")
		return
	}
	if sender.ID == receiverID {
		h.Error(w, http.StatusBadRequest, "Cannot send messages to yourself.")
		return
	}

	receiver, err := h.store.GetUserByID(r.Context(), receiverID)
	if err != nil {
		h.internalError(w, "looking up receiver", err)
		return
	}
	if receiver == nil {
		h.Error(w, http.StatusNotFound, "Receiver not found.")
		return
	}

	var imageURL string
	if req.Image != "" {
		imageURL, err = h.uploads.Save(r.Context(), req.Image)
		if err != nil {
			if errors.Is(err, upload.ErrInvalidImage) {
				h.Error(w, http.StatusBadRequest, "Invalid image payload")
				return
			}
			h.internalError(w, "storing message image", err)
			return
		}
	}

	msg := &models.Message{
		SenderID:   sender.ID.String(),
		ReceiverID: receiverID.String(),
		Text:       req.Text,
		Image:      imageURL,
	}
	if err := h.store.CreateMessage(r.Context(), msg); err != nil {
		h.internalError(w, "persisting message", err)
		return
	}

	metrics.MessagesSent.Inc()

	// Best-effort realtime push; an offline receiver catches up on the
	// next history fetch.
	h.notifier.Deliver(msg.ReceiverID, msg)

	h.JSON(w, http.StatusCreated, msg)
}
