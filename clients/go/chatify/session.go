package chatify

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ChatSession holds the client-side chat state for one logged-in user:
// the visible message list for the open conversation, the optimistic
// entries awaiting confirmation, and the subscription filtering inbound
// realtime events.
type ChatSession struct {
	client *Client
	self   User

	// OnSendFailure, when set, is invoked after a failed send has been
	// rolled back. It runs on the sending goroutine.
	OnSendFailure func(tempID string, err error)

	mu        sync.Mutex
	partnerID string
	messages  []Message
	handler   func(Message)
	online    map[string]struct{}

	conn *wsConn
}

// NewSession creates a chat session for the authenticated user. The
// client must already hold a session cookie.
func NewSession(client *Client, self User) *ChatSession {
	return &ChatSession{
		client: client,
		self:   self,
		online: make(map[string]struct{}),
	}
}

// Open loads the conversation with partnerID and makes it the active
// one. The previous conversation's messages are discarded.
func (s *ChatSession) Open(ctx context.Context, partnerID string) error {
	history, err := s.client.Conversation(ctx, partnerID)
	if err != nil {
		// a failed refresh leaves prior state untouched
		return err
	}

	s.mu.Lock()
	s.partnerID = partnerID
	s.messages = history
	s.mu.Unlock()
	return nil
}

// Messages returns a snapshot of the visible message list.
func (s *ChatSession) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SendMessage appends an optimistic pending message to the visible
// list, then persists it. On success the pending entry is replaced in
// place by the server record, matched strictly by its temporary
// identifier so concurrent sends reconcile correctly even when
// responses arrive out of order. On failure the entry is removed and
// OnSendFailure is invoked.
func (s *ChatSession) SendMessage(ctx context.Context, text, image string) (*Message, error) {
	s.mu.Lock()
	partnerID := s.partnerID
	tempID := "temp-" + ulid.Make().String()
	s.messages = append(s.messages, Message{
		ID:         tempID,
		SenderID:   s.self.ID,
		ReceiverID: partnerID,
		Text:       text,
		Image:      image,
		CreatedAt:  time.Now(),
		Pending:    true,
	})
	s.mu.Unlock()

	confirmed, err := s.client.SendMessage(ctx, partnerID, text, image)

	s.mu.Lock()
	if err != nil {
		s.removeMessage(tempID)
		s.mu.Unlock()
		if s.OnSendFailure != nil {
			s.OnSendFailure(tempID, err)
		}
		return nil, err
	}
	s.replaceMessage(tempID, *confirmed)
	s.mu.Unlock()

	return confirmed, nil
}

// replaceMessage swaps the entry with the given id for the confirmed
// record. Callers hold s.mu.
func (s *ChatSession) replaceMessage(id string, confirmed Message) {
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i] = confirmed
			return
		}
	}
	// The conversation was switched while the send was in flight; the
	// confirmed record belongs to a list that no longer exists.
}

// removeMessage drops the entry with the given id. Callers hold s.mu.
func (s *ChatSession) removeMessage(id string) {
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// Subscribe registers the handler for inbound messages from partnerID,
// replacing any previous subscription so a stale handler can never
// double-deliver. Pushes from other senders are dropped, not buffered.
func (s *ChatSession) Subscribe(partnerID string, handler func(Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partnerID = partnerID
	s.handler = handler
}

// Unsubscribe removes the active handler.
func (s *ChatSession) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = nil
}

// IsOnline reports whether the user currently holds a realtime
// connection, per the last presence broadcast.
func (s *ChatSession) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.online[userID]
	return ok
}

// OnlineUsers returns the users in the last presence broadcast.
func (s *ChatSession) OnlineUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.online))
	for id := range s.online {
		out = append(out, id)
	}
	return out
}

// handleNewMessage applies an inbound push event. Events outside the
// active conversation are dropped.
func (s *ChatSession) handleNewMessage(msg Message) {
	s.mu.Lock()
	if s.partnerID == "" || msg.SenderID != s.partnerID {
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages, msg)
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		handler(msg)
	}
}

// handleOnlineUsers replaces the presence set.
func (s *ChatSession) handleOnlineUsers(users []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = make(map[string]struct{}, len(users))
	for _, id := range users {
		s.online[id] = struct{}{}
	}
}
