package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/obbylee/chatify/internal/api/middleware"
	"github.com/obbylee/chatify/internal/metrics"
	"github.com/obbylee/chatify/internal/store"
	"github.com/obbylee/chatify/internal/token"
	"github.com/obbylee/chatify/internal/upload"
)

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest represents the profile update request body.
type UpdateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
}

// Register handles user registration and starts a session.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.FullName == "" || req.Email == "" || req.Password == "" {
		h.Error(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if !isValidEmail(req.Email) {
		h.Error(w, http.StatusBadRequest, "Invalid email format")
		return
	}
	if len(req.Password) < minPasswordLen {
		h.Error(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalError(w, "hashing password", err)
		return
	}

	user, err := h.store.CreateUser(r.Context(), req.FullName, req.Email, string(hash))
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			h.Error(w, http.StatusConflict, "Email already exists")
			return
		}
		h.internalError(w, "creating user", err)
		return
	}

	if err := h.startSession(w, user.ID.String()); err != nil {
		h.internalError(w, "issuing session token", err)
		return
	}

	metrics.UsersRegistered.Inc()

	// Welcome email is best-effort; registration already succeeded
	if err := h.mailer.SendWelcome(r.Context(), user.Email, user.FullName); err != nil {
		h.logger.Warn().Err(err).Str("email", user.Email).Msg("sending welcome email")
	}

	h.JSON(w, http.StatusCreated, user)
}

// Login handles credential verification and starts a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		h.Error(w, http.StatusBadRequest, "All fields are required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		h.internalError(w, "looking up user", err)
		return
	}
	if user == nil {
		h.Error(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	if err := h.startSession(w, user.ID.String()); err != nil {
		h.internalError(w, "issuing session token", err)
		return
	}

	user.Password = ""
	h.JSON(w, http.StatusOK, user)
}

// Logout clears the session cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   !h.devMode,
	})
	h.JSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// UpdateProfile stores a new profile picture for the session user.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "Unauthorized - No token provided")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.ProfilePic == "" {
		h.Error(w, http.StatusBadRequest, "Profile pic is required")
		return
	}

	url, err := h.uploads.Save(r.Context(), req.ProfilePic)
	if err != nil {
		if errors.Is(err, upload.ErrInvalidImage) {
			h.Error(w, http.StatusBadRequest, "Invalid image payload")
			return
		}
		h.internalError(w, "storing profile picture", err)
		return
	}

	updated, err := h.store.UpdateProfilePic(r.Context(), user.ID, url)
	if err != nil {
		h.internalError(w, "updating profile", err)
		return
	}

	updated.Password = ""
	h.JSON(w, http.StatusOK, updated)
}

// Check returns the current session identity.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "Unauthorized - No token provided")
		return
	}
	h.JSON(w, http.StatusOK, user)
}

// startSession issues a token for the user and sets the session cookie.
func (h *Handler) startSession(w http.ResponseWriter, userID string) error {
	tok, err := h.tokens.Issue(userID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    tok,
		Path:     "/",
		MaxAge:   int(token.SessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   !h.devMode,
	})
	return nil
}
