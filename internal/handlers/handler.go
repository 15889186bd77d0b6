package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/obbylee/chatify/internal/email"
	"github.com/obbylee/chatify/internal/realtime"
	"github.com/obbylee/chatify/internal/store"
	"github.com/obbylee/chatify/internal/token"
	"github.com/obbylee/chatify/internal/upload"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

const minPasswordLen = 6

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store    store.DataStore
	redis    *store.RedisStore
	tokens   *token.Service
	notifier realtime.Notifier
	uploads  upload.Store
	mailer   email.Sender
	logger   zerolog.Logger
	devMode  bool
}

// NewHandler creates a new Handler with the given dependencies. redis
// may be nil.
func NewHandler(
	dataStore store.DataStore,
	redisStore *store.RedisStore,
	tokens *token.Service,
	notifier realtime.Notifier,
	uploads upload.Store,
	mailer email.Sender,
	logger zerolog.Logger,
	devMode bool,
) *Handler {
	return &Handler{
		store:    dataStore,
		redis:    redisStore,
		tokens:   tokens,
		notifier: notifier,
		uploads:  uploads,
		mailer:   mailer,
		logger:   logger,
		devMode:  devMode,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"message": message})
}

// internalError logs the cause and collapses it to a generic response.
func (h *Handler) internalError(w http.ResponseWriter, scope string, err error) {
	h.logger.Error().Err(err).Str("scope", scope).Msg("request failed")
	h.Error(w, http.StatusInternalServerError, "Internal server error")
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
