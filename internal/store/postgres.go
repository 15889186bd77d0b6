package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/obbylee/chatify/internal/models"
)

const userColumns = "id, full_name, email, password, profile_pic, created_at, updated_at"

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser creates a new user record with the given bcrypt hash.
func (s *PostgresStore) CreateUser(ctx context.Context, fullName, email, passwordHash string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (full_name, email, password)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns+`
	`, fullName, email, passwordHash).Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.Password,
		&user.ProfilePic,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email, including the password hash.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1
	`, email))
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id))
}

// UpdateProfilePic replaces the user's profile picture URL.
func (s *PostgresStore) UpdateProfilePic(ctx context.Context, id uuid.UUID, profilePic string) (*models.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		UPDATE users SET profile_pic = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns+`
	`, id, profilePic))
}

// ListContacts retrieves all users except the given one, without
// password hashes.
func (s *PostgresStore) ListContacts(ctx context.Context, excludeID uuid.UUID) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, full_name, email, profile_pic, created_at, updated_at
		FROM users
		WHERE id <> $1
		ORDER BY full_name, id
	`, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPublicUsers(rows)
}

// ListChatPartners retrieves the distinct users who share at least one
// message with userID, without password hashes.
func (s *PostgresStore) ListChatPartners(ctx context.Context, userID uuid.UUID) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, full_name, email, profile_pic, created_at, updated_at
		FROM users
		WHERE id IN (
			SELECT CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END
			FROM messages m
			WHERE m.sender_id = $1 OR m.receiver_id = $1
		)
		ORDER BY full_name, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPublicUsers(rows)
}

// ListConversation retrieves all messages between a and b, oldest first.
func (s *PostgresStore) ListConversation(ctx context.Context, a, b uuid.UUID) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, text, image, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC
	`, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.Text,
			&msg.Image,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CreateMessage persists a new message, assigning its identifier and
// creation timestamp.
func (s *PostgresStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, text, image, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.Image, msg.CreatedAt)
	return err
}

func (s *PostgresStore) scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.Password,
		&user.ProfilePic,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func collectPublicUsers(rows pgx.Rows) ([]models.User, error) {
	users := make([]models.User, 0)
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID,
			&user.FullName,
			&user.Email,
			&user.ProfilePic,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
