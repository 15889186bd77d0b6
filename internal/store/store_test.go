package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/obbylee/chatify/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func createTestUser(t *testing.T, s *SQLiteStore, name, email string) *models.User {
	t.Helper()
	user, err := s.CreateUser(context.Background(), name, email, "hash-"+email)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func sendTestMessage(t *testing.T, s *SQLiteStore, from, to uuid.UUID, text string) *models.Message {
	t.Helper()
	msg := &models.Message{
		SenderID:   from.String(),
		ReceiverID: to.String(),
		Text:       text,
	}
	require.NoError(t, s.CreateMessage(context.Background(), msg))
	return msg
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	createTestUser(t, s, "Alice", "alice@example.com")

	_, err := s.CreateUser(context.Background(), "Alice Again", "alice@example.com", "hash")
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestGetUserByEmail(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	created := createTestUser(t, s, "Alice", "alice@example.com")

	user, err := s.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Equal(t, created.ID, user.ID)
	require.NotEmpty(t, user.Password, "login needs the hash")

	missing, err := s.GetUserByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestListContactsExcludesCaller(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	alice := createTestUser(t, s, "Alice", "alice@example.com")
	bob := createTestUser(t, s, "Bob", "bob@example.com")
	carol := createTestUser(t, s, "Carol", "carol@example.com")

	contacts, err := s.ListContacts(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	ids := []uuid.UUID{contacts[0].ID, contacts[1].ID}
	require.ElementsMatch(t, []uuid.UUID{bob.ID, carol.ID}, ids)

	for _, c := range contacts {
		require.Empty(t, c.Password, "contact listings must not carry password hashes")
	}
}

func TestListChatPartnersDeduplicates(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	alice := createTestUser(t, s, "Alice", "alice@example.com")
	bob := createTestUser(t, s, "Bob", "bob@example.com")
	carol := createTestUser(t, s, "Carol", "carol@example.com")
	createTestUser(t, s, "Dave", "dave@example.com")

	// multiple messages in both directions with bob, one from carol
	sendTestMessage(t, s, alice.ID, bob.ID, "hi bob")
	sendTestMessage(t, s, bob.ID, alice.ID, "hi alice")
	sendTestMessage(t, s, alice.ID, bob.ID, "again")
	sendTestMessage(t, s, carol.ID, alice.ID, "hello")

	partners, err := s.ListChatPartners(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, partners, 2)

	ids := []uuid.UUID{partners[0].ID, partners[1].ID}
	require.ElementsMatch(t, []uuid.UUID{bob.ID, carol.ID}, ids)

	for _, p := range partners {
		require.Empty(t, p.Password)
	}
}

func TestListConversationSymmetricAndOrdered(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	alice := createTestUser(t, s, "Alice", "alice@example.com")
	bob := createTestUser(t, s, "Bob", "bob@example.com")
	carol := createTestUser(t, s, "Carol", "carol@example.com")

	m1 := sendTestMessage(t, s, alice.ID, bob.ID, "first")
	time.Sleep(5 * time.Millisecond)
	m2 := sendTestMessage(t, s, bob.ID, alice.ID, "second")
	time.Sleep(5 * time.Millisecond)
	m3 := sendTestMessage(t, s, alice.ID, bob.ID, "third")

	// unrelated conversation must not leak in
	sendTestMessage(t, s, alice.ID, carol.ID, "other thread")

	fromAlice, err := s.ListConversation(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	fromBob, err := s.ListConversation(context.Background(), bob.ID, alice.ID)
	require.NoError(t, err)

	require.Equal(t, fromAlice, fromBob, "conversation must be caller-symmetric")
	require.Len(t, fromAlice, 3)
	require.Equal(t, []string{m1.ID, m2.ID, m3.ID},
		[]string{fromAlice[0].ID, fromAlice[1].ID, fromAlice[2].ID},
		"messages must be oldest first")
}

func TestCreateMessageAssignsIDAndTimestamp(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	alice := createTestUser(t, s, "Alice", "alice@example.com")
	bob := createTestUser(t, s, "Bob", "bob@example.com")

	msg := sendTestMessage(t, s, alice.ID, bob.ID, "hello")
	require.NotEmpty(t, msg.ID)
	require.False(t, msg.CreatedAt.IsZero())
}
