package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/obbylee/chatify/internal/models"
)

func newTestClient(hub *Hub, userID string) *Client {
	return &Client{
		ID:     ulid.Make().String(),
		UserID: userID,
		hub:    hub,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		logger: zerolog.Nop(),
	}
}

// lastEvent drains a client's send queue and decodes the final envelope.
func lastEvent(t *testing.T, c *Client) *Envelope {
	t.Helper()
	var last []byte
	for {
		select {
		case payload := <-c.send:
			last = payload
		default:
			if last == nil {
				return nil
			}
			var env Envelope
			require.NoError(t, json.Unmarshal(last, &env))
			return &env
		}
	}
}

func TestRegisterLastConnectWins(t *testing.T) {
	t.Parallel()

	hub := NewHub(zerolog.Nop())
	c1 := newTestClient(hub, "alice")
	c2 := newTestClient(hub, "alice")

	hub.register(c1)
	hub.register(c2)

	connID, ok := hub.Lookup("alice")
	require.True(t, ok)
	require.Equal(t, c2.ID, connID)
	require.Equal(t, []string{"alice"}, hub.OnlineUsers())

	// the superseded connection is told to shut down
	select {
	case <-c1.done:
	case <-time.After(time.Second):
		t.Fatal("superseded client was not closed")
	}
}

func TestStaleUnregisterDoesNotEvict(t *testing.T) {
	t.Parallel()

	hub := NewHub(zerolog.Nop())
	c1 := newTestClient(hub, "alice")
	c2 := newTestClient(hub, "alice")

	hub.register(c1)
	hub.register(c2)

	// delayed disconnect from the replaced connection
	hub.unregister(c1)

	connID, ok := hub.Lookup("alice")
	require.True(t, ok)
	require.Equal(t, c2.ID, connID)

	hub.unregister(c2)
	_, ok = hub.Lookup("alice")
	require.False(t, ok)
	require.Empty(t, hub.OnlineUsers())
}

func TestBroadcastOnlineUsersToAll(t *testing.T) {
	t.Parallel()

	hub := NewHub(zerolog.Nop())
	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")

	hub.register(alice)
	hub.register(bob)

	for _, c := range []*Client{alice, bob} {
		env := lastEvent(t, c)
		require.NotNil(t, env)
		require.Equal(t, EventOnlineUsers, env.Event)

		var users []string
		require.NoError(t, json.Unmarshal(env.Data, &users))
		require.Equal(t, []string{"alice", "bob"}, users)
	}
}

func TestDeliverRoutesToReceiverOnly(t *testing.T) {
	t.Parallel()

	hub := NewHub(zerolog.Nop())
	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")

	hub.register(alice)
	hub.register(bob)

	// drop the presence broadcasts
	lastEvent(t, alice)
	lastEvent(t, bob)

	msg := &models.Message{
		ID:         ulid.Make().String(),
		SenderID:   "alice",
		ReceiverID: "bob",
		Text:       "hi",
	}
	hub.Deliver("bob", msg)

	env := lastEvent(t, bob)
	require.NotNil(t, env)
	require.Equal(t, EventNewMessage, env.Event)

	var got models.Message
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, msg.ID, got.ID)
	require.Equal(t, "hi", got.Text)

	require.Nil(t, lastEvent(t, alice), "sender must not receive the push")
}

func TestDeliverToOfflineUserIsNoop(t *testing.T) {
	t.Parallel()

	hub := NewHub(zerolog.Nop())
	hub.Deliver("ghost", &models.Message{ID: "x", Text: "hello"})
}

func TestSlowClientDoesNotBlockBroadcast(t *testing.T) {
	t.Parallel()

	hub := NewHub(zerolog.Nop())
	slow := newTestClient(hub, "slow")
	fast := newTestClient(hub, "fast")

	hub.register(slow)
	hub.register(fast)

	// saturate the slow client's queue
	filler, err := encodeEvent(EventOnlineUsers, []string{"slow"})
	require.NoError(t, err)
	for {
		select {
		case slow.send <- filler:
			continue
		default:
		}
		break
	}

	finished := make(chan struct{})
	go func() {
		hub.Deliver("slow", &models.Message{ID: "y", Text: "dropped"})
		hub.broadcastOnlineUsers()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}

	// the fast client still received the broadcast
	env := lastEvent(t, fast)
	require.NotNil(t, env)
	require.Equal(t, EventOnlineUsers, env.Event)
}
