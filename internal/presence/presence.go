// Package presence keeps the current user's online status accurate and
// observes everyone else's through the global presence broadcast channel.
//
// Visibility transitions are the sole heartbeat: a session that dies
// without a transition or an explicit sign-out leaves a stale "online"
// status until another client's view corrects it. This degradation is
// accepted; there is no periodic ping or server-side expiry.
package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"boltalka/internal/models"
	"boltalka/internal/platform"
	"boltalka/internal/store"
)

type Tracker struct {
	db    platform.Database
	rt    platform.Realtime
	store *store.Store

	mu      sync.Mutex
	userID  string
	channel platform.PresenceChannel
	done    chan struct{}
}

func NewTracker(db platform.Database, rt platform.Realtime, st *store.Store) *Tracker {
	return &Tracker{
		db:    db,
		rt:    rt,
		store: st,
	}
}

// Start marks the user online, joins the presence channel and announces
// this session on it. It returns after the subscription is established;
// peer sync events are consumed in the background until Stop.
func (t *Tracker) Start(ctx context.Context, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.channel != nil {
		return errors.New("presence tracker already started")
	}

	if err := t.setStatus(ctx, userID, models.UserStatusOnline); err != nil {
		return err
	}

	ch, err := t.rt.JoinPresence(ctx)
	if err != nil {
		return err
	}
	if err := ch.Track(ctx, userID); err != nil {
		ch.Leave()
		return err
	}

	t.userID = userID
	t.channel = ch
	t.done = make(chan struct{})

	go t.watch(ch, t.done)

	slog.Info("presence tracking started", "user_id", userID)
	return nil
}

// SetVisible toggles the online status on foreground/background
// transitions, refreshing last-seen each time.
func (t *Tracker) SetVisible(ctx context.Context, visible bool) error {
	t.mu.Lock()
	userID := t.userID
	t.mu.Unlock()

	if userID == "" {
		return nil
	}

	status := models.UserStatusOffline
	if visible {
		status = models.UserStatusOnline
	}
	return t.setStatus(ctx, userID, status)
}

// Stop marks the user offline (best effort) and leaves the channel. It is
// safe to call on every exit path, including after a failed Start.
func (t *Tracker) Stop(ctx context.Context) {
	t.mu.Lock()
	ch := t.channel
	done := t.done
	userID := t.userID
	t.channel = nil
	t.done = nil
	t.userID = ""
	t.mu.Unlock()

	if ch == nil {
		return
	}

	if err := t.setStatus(ctx, userID, models.UserStatusOffline); err != nil {
		slog.Warn("failed to mark user offline", "user_id", userID, "error", err)
	}

	ch.Leave()
	<-done

	slog.Info("presence tracking stopped", "user_id", userID)
}

// watch re-fetches the full user list on every peer announcement. Full
// refresh over incremental patching: user counts are small.
func (t *Tracker) watch(ch platform.PresenceChannel, done chan struct{}) {
	defer close(done)

	for range ch.Sync() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		users, err := t.db.ListUsers(ctx)
		cancel()
		if err != nil {
			slog.Warn("presence refresh failed", "error", err)
			continue
		}
		t.store.SetUsers(users)
	}
}

func (t *Tracker) setStatus(ctx context.Context, userID string, status models.UserStatus) error {
	now := time.Now().UTC()
	patch := map[string]any{
		"status":    status,
		"last_seen": now,
	}
	if err := t.db.UpdateUser(ctx, userID, patch); err != nil {
		return err
	}

	if user, ok := t.store.User(userID); ok {
		user.Status = status
		user.LastSeen = &now
		t.store.UpsertUser(user)
	}
	return nil
}
