package supabase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"boltalka/internal/platform"
)

const (
	topicPresence = "online-users"

	eventTrack        = "track"
	eventUntrack      = "untrack"
	eventPresenceSync = "presence_state"
	eventPresenceDiff = "presence_diff"
)

// presenceChannel is the global presence broadcast channel. Sync
// notifications are coalesced: a slow consumer sees at least one
// notification for any burst of membership changes.
type presenceChannel struct {
	conn  *websocket.Conn
	sync_ chan struct{}
	done  chan struct{}
	leave sync.Once
}

func (c *Client) JoinPresence(ctx context.Context) (platform.PresenceChannel, error) {
	conn, err := c.dialRealtime(ctx, "realtime:"+topicPresence)
	if err != nil {
		return nil, err
	}

	p := &presenceChannel{
		conn:  conn,
		sync_: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}

	go p.heartbeat()
	go p.pump()

	return p, nil
}

// Track announces this session's lightweight payload to all members.
func (p *presenceChannel) Track(ctx context.Context, userID string) error {
	payload := fmt.Sprintf(`{"user_id":%q}`, userID)
	fr := frame{
		Topic:   "realtime:" + topicPresence,
		Event:   eventTrack,
		Payload: []byte(payload),
	}
	if err := p.conn.WriteJSON(fr); err != nil {
		return fmt.Errorf("failed to track presence: %w", err)
	}
	return nil
}

func (p *presenceChannel) Sync() <-chan struct{} {
	return p.sync_
}

// Leave untracks and unsubscribes. Safe to call from any exit path, any
// number of times.
func (p *presenceChannel) Leave() {
	p.leave.Do(func() {
		close(p.done)
		_ = p.conn.WriteJSON(frame{Topic: "realtime:" + topicPresence, Event: eventUntrack})
		_ = p.conn.WriteJSON(frame{Topic: "realtime:" + topicPresence, Event: eventLeave})
		_ = p.conn.Close()
	})
}

func (p *presenceChannel) pump() {
	defer close(p.sync_)

	for {
		var fr frame
		if err := p.conn.ReadJSON(&fr); err != nil {
			select {
			case <-p.done:
			default:
				slog.Warn("presence channel closed", "error", err)
			}
			return
		}

		if fr.Event != eventPresenceSync && fr.Event != eventPresenceDiff {
			continue
		}

		select {
		case <-p.done:
			return
		default:
		}

		select {
		case p.sync_ <- struct{}{}:
		default:
			// A sync is already pending; the consumer re-fetches the
			// full user list anyway.
		}
	}
}

func (p *presenceChannel) heartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.conn.WriteJSON(frame{Topic: topicHeartbeat, Event: eventHeartbeat}); err != nil {
				return
			}
		case <-p.done:
			return
		}
	}
}
