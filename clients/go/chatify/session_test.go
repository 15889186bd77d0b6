package chatify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/obbylee/chatify/internal/api"
	"github.com/obbylee/chatify/internal/email"
	"github.com/obbylee/chatify/internal/realtime"
	"github.com/obbylee/chatify/internal/store"
	"github.com/obbylee/chatify/internal/token"
	"github.com/obbylee/chatify/internal/upload"
)

// fakeServer gives per-test control over the send endpoint so failure
// and latency paths can be exercised deterministically.
func fakeServer(t *testing.T, send http.HandlerFunc) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/message/send/", send)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	return client
}

func confirmMessage(w http.ResponseWriter, id, senderID, receiverID, text string) {
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		CreatedAt:  time.Now(),
	})
}

func TestSendMessageReplacesPendingEntry(t *testing.T) {
	t.Parallel()

	client := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req SendMessageRequest
		json.NewDecoder(r.Body).Decode(&req)
		confirmMessage(w, "01SERVER", "alice", "bob", req.Text)
	})

	session := NewSession(client, User{ID: "alice"})
	session.Subscribe("bob", nil)

	confirmed, err := session.SendMessage(context.Background(), "hello", "")
	require.NoError(t, err)
	require.Equal(t, "01SERVER", confirmed.ID)

	messages := session.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, "01SERVER", messages[0].ID, "pending entry must be replaced by the server record")
	require.False(t, messages[0].Pending)
	require.Equal(t, "hello", messages[0].Text)
}

func TestSendMessageFailureRollsBack(t *testing.T) {
	t.Parallel()

	client := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "Receiver not found."})
	})

	session := NewSession(client, User{ID: "alice"})
	session.Subscribe("bob", nil)

	var failedTempID string
	var failedErr error
	session.OnSendFailure = func(tempID string, err error) {
		failedTempID = tempID
		failedErr = err
	}

	_, err := session.SendMessage(context.Background(), "hello", "")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "Receiver not found.", apiErr.Message)

	require.Empty(t, session.Messages(), "failed send must not leave a pending entry behind")
	require.NotEmpty(t, failedTempID)
	require.Equal(t, err, failedErr)
}

func TestConcurrentSendsReconcileOutOfOrder(t *testing.T) {
	t.Parallel()

	// The first request to arrive is held until the second completes, so
	// confirmations come back in reverse order of dispatch.
	var once sync.Once
	release := make(chan struct{})
	var counter sync.Mutex
	n := 0

	client := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req SendMessageRequest
		json.NewDecoder(r.Body).Decode(&req)

		counter.Lock()
		n++
		first := n == 1
		counter.Unlock()

		if first {
			<-release
		} else {
			defer once.Do(func() { close(release) })
		}
		confirmMessage(w, "srv-"+req.Text, "alice", "bob", req.Text)
	})

	session := NewSession(client, User{ID: "alice"})
	session.Subscribe("bob", nil)

	var wg sync.WaitGroup
	for _, text := range []string{"first", "second"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			_, err := session.SendMessage(context.Background(), text, "")
			require.NoError(t, err)
		}(text)
	}
	wg.Wait()

	messages := session.Messages()
	require.Len(t, messages, 2)

	byText := map[string]Message{}
	for _, m := range messages {
		require.False(t, m.Pending)
		byText[m.Text] = m
	}
	require.Equal(t, "srv-first", byText["first"].ID, "each pending entry must reconcile with its own confirmation")
	require.Equal(t, "srv-second", byText["second"].ID)
}

func TestSendFailureKeepsOtherMessages(t *testing.T) {
	t.Parallel()

	fail := false
	client := fakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req SendMessageRequest
		json.NewDecoder(r.Body).Decode(&req)
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"message": "Internal server error"})
			return
		}
		confirmMessage(w, "srv-"+req.Text, "alice", "bob", req.Text)
	})

	session := NewSession(client, User{ID: "alice"})
	session.Subscribe("bob", nil)

	_, err := session.SendMessage(context.Background(), "kept", "")
	require.NoError(t, err)

	fail = true
	_, err = session.SendMessage(context.Background(), "dropped", "")
	require.Error(t, err)

	messages := session.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, "srv-kept", messages[0].ID)
}

func TestHandleNewMessageFiltersByPartner(t *testing.T) {
	t.Parallel()

	session := NewSession(&Client{}, User{ID: "alice"})

	var received []Message
	session.Subscribe("bob", func(m Message) { received = append(received, m) })

	session.handleNewMessage(Message{ID: "m1", SenderID: "carol", ReceiverID: "alice", Text: "ignore me"})
	require.Empty(t, session.Messages(), "pushes from outside the open conversation are dropped")
	require.Empty(t, received)

	session.handleNewMessage(Message{ID: "m2", SenderID: "bob", ReceiverID: "alice", Text: "hi"})
	require.Len(t, session.Messages(), 1)
	require.Len(t, received, 1)
	require.Equal(t, "m2", received[0].ID)
}

func TestSubscribeReplacesHandler(t *testing.T) {
	t.Parallel()

	session := NewSession(&Client{}, User{ID: "alice"})

	var old, current int
	session.Subscribe("bob", func(Message) { old++ })
	session.Subscribe("bob", func(Message) { current++ })

	session.handleNewMessage(Message{ID: "m1", SenderID: "bob", ReceiverID: "alice", Text: "hi"})
	require.Zero(t, old, "a replaced handler must never fire again")
	require.Equal(t, 1, current)

	session.Unsubscribe()
	session.handleNewMessage(Message{ID: "m2", SenderID: "bob", ReceiverID: "alice", Text: "again"})
	require.Equal(t, 1, current)
	require.Len(t, session.Messages(), 2, "messages still accumulate without a handler")
}

func TestHandleOnlineUsersReplacesSet(t *testing.T) {
	t.Parallel()

	session := NewSession(&Client{}, User{ID: "alice"})

	session.handleOnlineUsers([]string{"bob", "carol"})
	require.True(t, session.IsOnline("bob"))
	require.True(t, session.IsOnline("carol"))

	session.handleOnlineUsers([]string{"carol"})
	require.False(t, session.IsOnline("bob"), "each broadcast is the full set, not a delta")
	require.True(t, session.IsOnline("carol"))
	require.Equal(t, []string{"carol"}, session.OnlineUsers())
}

func newChatServer(t *testing.T) *httptest.Server {
	t.Helper()

	dataStore, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(dataStore.Close)

	uploads, err := upload.NewLocalStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	logger := zerolog.Nop()
	srv := httptest.NewServer(api.NewRouter(api.Deps{
		Logger:    logger,
		Store:     dataStore,
		Tokens:    token.NewService("test-secret"),
		Hub:       realtime.NewHub(logger),
		Uploads:   uploads,
		Mailer:    email.NewLogSender(logger),
		ClientURL: "http://localhost:3000",
		DevMode:   true,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEndToEndRealtimeChat(t *testing.T) {
	t.Parallel()

	srv := newChatServer(t)
	ctx := context.Background()

	aliceClient, err := NewClient(srv.URL)
	require.NoError(t, err)
	alice, err := aliceClient.Register(ctx, "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	bobClient, err := NewClient(srv.URL)
	require.NoError(t, err)
	bob, err := bobClient.Register(ctx, "Bob", "bob@example.com", "secret1")
	require.NoError(t, err)

	bobSession := NewSession(bobClient, *bob)
	require.NoError(t, bobSession.Connect(ctx))
	t.Cleanup(bobSession.Close)

	inbound := make(chan Message, 1)
	bobSession.Subscribe(alice.ID, func(m Message) { inbound <- m })

	aliceSession := NewSession(aliceClient, *alice)
	require.NoError(t, aliceSession.Open(ctx, bob.ID))

	sent, err := aliceSession.SendMessage(ctx, "hello bob", "")
	require.NoError(t, err)
	require.Equal(t, alice.ID, sent.SenderID)

	select {
	case got := <-inbound:
		require.Equal(t, sent.ID, got.ID)
		require.Equal(t, "hello bob", got.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("receiver never got the realtime push")
	}

	require.Len(t, bobSession.Messages(), 1)

	// presence propagated to bob's session
	require.Eventually(t, func() bool {
		return bobSession.IsOnline(bob.ID)
	}, 5*time.Second, 20*time.Millisecond)

	// history is the source of truth after reconnect
	history, err := bobClient.Conversation(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, sent.ID, history[0].ID)
}
