package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/obbylee/chatify/internal/models"
)

// ErrDuplicateEmail is returned by CreateUser when the email is taken.
var ErrDuplicateEmail = errors.New("store: email already registered")

// DataStore defines the interface for persistent storage of users and
// messages. Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, fullName, email, passwordHash string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfilePic(ctx context.Context, id uuid.UUID, profilePic string) (*models.User, error)

	// Contact queries; returned users never carry a password hash.
	ListContacts(ctx context.Context, excludeID uuid.UUID) ([]models.User, error)
	ListChatPartners(ctx context.Context, userID uuid.UUID) ([]models.User, error)

	// Message operations. ListConversation returns every message whose
	// {sender, receiver} pair is {a, b} in either direction, oldest
	// first. The ascending order is a hard contract for chat rendering.
	ListConversation(ctx context.Context, a, b uuid.UUID) ([]models.Message, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
}
