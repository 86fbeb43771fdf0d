package supabase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"boltalka/internal/platform"
)

// wsTestClient runs handler against each realtime connection the client
// opens.
func wsTestClient(t *testing.T, handler func(t *testing.T, conn *websocket.Conn)) *Client {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/realtime/v1/websocket", r.URL.Path)
		require.Equal(t, "anon", r.URL.Query().Get("apikey"))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		handler(t, conn)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, AnonKey: "anon"})
	require.NoError(t, err)
	return c
}

func recvEvent(t *testing.T, feed platform.MessageFeed) (platform.MessageChange, bool) {
	t.Helper()
	select {
	case ev, ok := <-feed.Events():
		return ev, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed event")
		return platform.MessageChange{}, false
	}
}

func TestSubscribeMessagesDeliversChanges(t *testing.T) {
	const topic = "realtime:public:messages:room_id=eq.r1"

	c := wsTestClient(t, func(t *testing.T, conn *websocket.Conn) {
		var join frame
		require.NoError(t, conn.ReadJSON(&join))
		require.Equal(t, topic, join.Topic)
		require.Equal(t, eventJoin, join.Event)

		// Noise on other topics and events is ignored by the feed.
		require.NoError(t, conn.WriteJSON(frame{Topic: topic, Event: eventReply, Payload: []byte(`{}`)}))
		require.NoError(t, conn.WriteJSON(frame{
			Topic: "realtime:public:messages:room_id=eq.other", Event: eventChange,
			Payload: []byte(`{"type":"INSERT","record":{"id":"mx","room_id":"other"}}`),
		}))

		require.NoError(t, conn.WriteJSON(frame{Topic: topic, Event: eventChange,
			Payload: []byte(`{"type":"INSERT","record":{"id":"m1","user_id":"u2","room_id":"r1","content":"hi","read_by":["u2"]}}`)}))
		require.NoError(t, conn.WriteJSON(frame{Topic: topic, Event: eventChange,
			Payload: []byte(`{"type":"UPDATE","record":{"id":"m1","user_id":"u2","room_id":"r1","content":"hi","read_by":["u2","u1"]}}`)}))

		// Hold the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	feed, err := c.SubscribeMessages(context.Background(), "r1")
	require.NoError(t, err)

	ev, ok := recvEvent(t, feed)
	require.True(t, ok)
	require.Equal(t, platform.ChangeInsert, ev.Op)
	require.Equal(t, "m1", ev.Message.ID)
	require.Equal(t, "hi", ev.Message.Content)

	ev, ok = recvEvent(t, feed)
	require.True(t, ok)
	require.Equal(t, platform.ChangeUpdate, ev.Op)
	require.Equal(t, []string{"u2", "u1"}, ev.Message.ReadBy)

	feed.Cancel()
	for {
		if _, ok := recvEvent(t, feed); !ok {
			break
		}
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	const topic = "realtime:public:messages:room_id=eq.r1"
	serverDone := make(chan struct{})

	c := wsTestClient(t, func(t *testing.T, conn *websocket.Conn) {
		defer close(serverDone)

		var join frame
		require.NoError(t, conn.ReadJSON(&join))

		// Keep publishing until the client goes away.
		for {
			err := conn.WriteJSON(frame{Topic: topic, Event: eventChange,
				Payload: []byte(`{"type":"INSERT","record":{"id":"m1","room_id":"r1"}}`)})
			if err != nil {
				return
			}
			if _, _, err := conn.NextReader(); err == nil {
				continue
			}
			return
		}
	})

	feed, err := c.SubscribeMessages(context.Background(), "r1")
	require.NoError(t, err)

	_, ok := recvEvent(t, feed)
	require.True(t, ok)

	feed.Cancel()
	feed.Cancel()

	// The channel drains and closes; no event is delivered after that.
	for {
		if _, ok := recvEvent(t, feed); !ok {
			break
		}
	}

	select {
	case <-serverDone:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the hangup")
	}
}

func TestJoinPresence(t *testing.T) {
	const topic = "realtime:online-users"

	c := wsTestClient(t, func(t *testing.T, conn *websocket.Conn) {
		var join frame
		require.NoError(t, conn.ReadJSON(&join))
		require.Equal(t, topic, join.Topic)
		require.Equal(t, eventJoin, join.Event)

		var track frame
		require.NoError(t, conn.ReadJSON(&track))
		require.Equal(t, eventTrack, track.Event)
		require.Equal(t, `{"user_id":"u1"}`, string(track.Payload))

		require.NoError(t, conn.WriteJSON(frame{Topic: topic, Event: eventPresenceSync, Payload: []byte(`{}`)}))
		require.NoError(t, conn.WriteJSON(frame{Topic: topic, Event: eventPresenceDiff, Payload: []byte(`{}`)}))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ch, err := c.JoinPresence(context.Background())
	require.NoError(t, err)
	require.NoError(t, ch.Track(context.Background(), "u1"))

	select {
	case <-ch.Sync():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for presence sync")
	}

	ch.Leave()
	ch.Leave()

	// The sync channel closes once the pump exits.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch.Sync():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("sync channel never closed")
		}
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://proj.example.co", "wss://proj.example.co/realtime/v1/websocket?apikey=anon"},
		{"http://localhost:54321", "ws://localhost:54321/realtime/v1/websocket?apikey=anon"},
	}

	for _, tt := range tests {
		c, err := New(Config{BaseURL: tt.base, AnonKey: "anon"})
		require.NoError(t, err)
		require.Equal(t, tt.want, c.websocketURL())
	}
}

func TestUploadAvatar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/storage/v1/object/avatars/u1.png", r.URL.Path)
		require.Equal(t, "image/png", r.Header.Get("Content-Type"))
		require.Equal(t, "true", r.Header.Get("x-upsert"))
		w.Write([]byte(`{"Key":"avatars/u1.png"}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, AnonKey: "anon"})
	require.NoError(t, err)

	url, err := c.UploadAvatar(context.Background(), "u1", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(url, "/storage/v1/object/public/avatars/u1.png"))
}
