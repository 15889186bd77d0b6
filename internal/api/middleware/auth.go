package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/obbylee/chatify/internal/models"
	"github.com/obbylee/chatify/internal/store"
	"github.com/obbylee/chatify/internal/token"
)

type contextKey string

const userContextKey contextKey = "user"

// SessionMiddleware resolves the session cookie to a user identity for
// identity-dependent endpoints.
type SessionMiddleware struct {
	tokens *token.Service
	store  store.DataStore
	logger zerolog.Logger
}

// NewSessionMiddleware creates a new session middleware.
func NewSessionMiddleware(tokens *token.Service, dataStore store.DataStore, logger zerolog.Logger) *SessionMiddleware {
	return &SessionMiddleware{tokens: tokens, store: dataStore, logger: logger}
}

// RequireSession validates the jwt cookie, resolves the user, and
// attaches a sanitized identity (no password hash) to the request
// context. An expired or tampered token is treated exactly like an
// absent one.
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("jwt")
		if err != nil || cookie.Value == "" {
			jsonError(w, http.StatusUnauthorized, "Unauthorized - No token provided")
			return
		}

		userIDStr, ok := m.tokens.Validate(cookie.Value)
		if !ok {
			jsonError(w, http.StatusUnauthorized, "Unauthorized - Invalid token")
			return
		}

		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "Unauthorized - Invalid token")
			return
		}

		user, err := m.store.GetUserByID(r.Context(), userID)
		if err != nil {
			m.logger.Error().Err(err).Msg("resolving session user")
			jsonError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if user == nil {
			jsonError(w, http.StatusNotFound, "User not found")
			return
		}

		user.Password = ""

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext retrieves the authenticated user from the request
// context. Returns nil outside RequireSession.
func UserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
