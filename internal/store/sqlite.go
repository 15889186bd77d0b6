package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/obbylee/chatify/internal/models"
)

// SQLiteStore handles SQLite database operations. It serves as the
// development and test fallback when no DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chatify.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chatify.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		profile_pic TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL REFERENCES users(id),
		receiver_id TEXT NOT NULL REFERENCES users(id),
		text TEXT DEFAULT '',
		image TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record with the given bcrypt hash.
func (s *SQLiteStore) CreateUser(ctx context.Context, fullName, email, passwordHash string) (*models.User, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, full_name, email, password, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id.String(), fullName, email, passwordHash, now, now)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByEmail retrieves a user by email, including the password hash.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, password, profile_pic, created_at, updated_at
		FROM users WHERE email = ?
	`, email))
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, password, profile_pic, created_at, updated_at
		FROM users WHERE id = ?
	`, id.String()))
}

// UpdateProfilePic replaces the user's profile picture URL.
func (s *SQLiteStore) UpdateProfilePic(ctx context.Context, id uuid.UUID, profilePic string) (*models.User, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET profile_pic = ?, updated_at = ? WHERE id = ?
	`, profilePic, time.Now().UTC(), id.String())
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

// ListContacts retrieves all users except the given one, without
// password hashes.
func (s *SQLiteStore) ListContacts(ctx context.Context, excludeID uuid.UUID) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_name, email, profile_pic, created_at, updated_at
		FROM users
		WHERE id <> ?
		ORDER BY full_name, id
	`, excludeID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectPublicUsers(rows)
}

// ListChatPartners retrieves the distinct users who share at least one
// message with userID, without password hashes.
func (s *SQLiteStore) ListChatPartners(ctx context.Context, userID uuid.UUID) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_name, email, profile_pic, created_at, updated_at
		FROM users
		WHERE id IN (
			SELECT CASE WHEN m.sender_id = ? THEN m.receiver_id ELSE m.sender_id END
			FROM messages m
			WHERE m.sender_id = ? OR m.receiver_id = ?
		)
		ORDER BY full_name, id
	`, userID.String(), userID.String(), userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectPublicUsers(rows)
}

// ListConversation retrieves all messages between a and b, oldest first.
func (s *SQLiteStore) ListConversation(ctx context.Context, a, b uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, text, image, created_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?)
		   OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ASC, id ASC
	`, a.String(), b.String(), b.String(), a.String())
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
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, text, image, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.Image, msg.CreatedAt)
	return err
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var idStr string
	err := row.Scan(
		&idStr,
		&user.FullName,
		&user.Email,
		&user.Password,
		&user.ProfilePic,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SQLiteStore) collectPublicUsers(rows *sql.Rows) ([]models.User, error) {
	users := make([]models.User, 0)
	for rows.Next() {
		var user models.User
		var idStr string
		if err := rows.Scan(
			&idStr,
			&user.FullName,
			&user.Email,
			&user.ProfilePic,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, err
		}
		user.ID = id
		users = append(users, user)
	}
	return users, rows.Err()
}
