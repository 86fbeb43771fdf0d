package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"boltalka/internal/models"
	"boltalka/internal/platform"
)

const (
	eventJoin      = "phx_join"
	eventLeave     = "phx_leave"
	eventReply     = "phx_reply"
	eventHeartbeat = "heartbeat"
	eventChange    = "postgres_changes"

	topicHeartbeat = "phoenix"

	heartbeatInterval = 25 * time.Second
	feedBuffer        = 64
)

// frame is the phoenix-style wire envelope used by the realtime endpoint.
type frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

// changePayload is the typed change event of a table feed:
// operation + new record.
type changePayload struct {
	Type   platform.ChangeOp `json:"type"`
	Record models.Message    `json:"record"`
}

// messageFeed is a cancellable per-room subscription over its own
// websocket connection. One connection per feed keeps the FIFO guarantee
// trivially scoped to the room.
type messageFeed struct {
	conn   *websocket.Conn
	topic  string
	events chan platform.MessageChange
	done   chan struct{}
	cancel sync.Once
}

// SubscribeMessages opens a change feed for one room's message inserts and
// updates. The returned handle delivers events in publish order until
// Cancel is called.
func (c *Client) SubscribeMessages(ctx context.Context, roomID string) (platform.MessageFeed, error) {
	topic := "realtime:public:messages:room_id=eq." + roomID

	conn, err := c.dialRealtime(ctx, topic)
	if err != nil {
		return nil, err
	}

	f := &messageFeed{
		conn:   conn,
		topic:  topic,
		events: make(chan platform.MessageChange, feedBuffer),
		done:   make(chan struct{}),
	}

	go f.heartbeat()
	go f.pump()

	return f, nil
}

func (f *messageFeed) Events() <-chan platform.MessageChange {
	return f.events
}

// Cancel stops event delivery and tears the connection down. Events racing
// with cancellation are dropped here or discarded by the reconciler's
// active-room check.
func (f *messageFeed) Cancel() {
	f.cancel.Do(func() {
		close(f.done)
		_ = f.conn.WriteJSON(frame{Topic: f.topic, Event: eventLeave})
		_ = f.conn.Close()
	})
}

func (f *messageFeed) pump() {
	defer close(f.events)

	for {
		var fr frame
		if err := f.conn.ReadJSON(&fr); err != nil {
			select {
			case <-f.done:
			default:
				slog.Warn("realtime feed closed", "topic", f.topic, "error", err)
			}
			return
		}

		if fr.Topic != f.topic || fr.Event != eventChange {
			continue
		}

		var change changePayload
		if err := json.Unmarshal(fr.Payload, &change); err != nil {
			slog.Warn("malformed change event", "topic", f.topic, "error", err)
			continue
		}

		select {
		case <-f.done:
			return
		default:
		}

		select {
		case f.events <- platform.MessageChange{Op: change.Type, Message: change.Record}:
		case <-f.done:
			return
		}
	}
}

func (f *messageFeed) heartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := f.conn.WriteJSON(frame{Topic: topicHeartbeat, Event: eventHeartbeat}); err != nil {
				return
			}
		case <-f.done:
			return
		}
	}
}

// dialRealtime connects to the realtime endpoint and joins a topic.
func (c *Client) dialRealtime(ctx context.Context, topic string) (*websocket.Conn, error) {
	header := map[string][]string{
		"Authorization": {"Bearer " + c.bearerToken()},
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL(), header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial realtime endpoint: %w", err)
	}

	if err := conn.WriteJSON(frame{Topic: topic, Event: eventJoin, Ref: "1"}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to join %s: %w", topic, err)
	}

	return conn, nil
}
