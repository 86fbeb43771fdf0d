// Package realtime merges authoritative live events into the local store,
// resolving duplication against optimistic writes. One subscription is
// active at a time, scoped to the active room; switching rooms cancels the
// previous feed before the next one opens.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"boltalka/internal/models"
	"boltalka/internal/platform"
	"boltalka/internal/store"
)

// Identity exposes the current user id owned by the session manager.
type Identity interface {
	CurrentID() string
}

// State of the per-room subscription.
type State int

const (
	Unsubscribed State = iota
	Subscribing
	Subscribed
)

func (s State) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Subscribed:
		return "subscribed"
	default:
		return "unsubscribed"
	}
}

type Reconciler struct {
	rt      platform.Realtime
	db      platform.Database
	session Identity
	store   *store.Store

	mu     sync.Mutex
	state  State
	roomID string
	feed   platform.MessageFeed
	done   chan struct{}
}

func NewReconciler(rt platform.Realtime, db platform.Database, session Identity, st *store.Store) *Reconciler {
	return &Reconciler{
		rt:      rt,
		db:      db,
		session: session,
		store:   st,
	}
}

func (r *Reconciler) State() (State, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.roomID
}

// Subscribe opens the change feed for roomID, tearing down any previous
// subscription first. Events already in flight for the old room are
// discarded, never merged.
func (r *Reconciler) Subscribe(ctx context.Context, roomID string) error {
	r.Unsubscribe()

	r.mu.Lock()
	r.state = Subscribing
	r.roomID = roomID
	r.mu.Unlock()

	feed, err := r.rt.SubscribeMessages(ctx, roomID)
	if err != nil {
		r.mu.Lock()
		r.state = Unsubscribed
		r.roomID = ""
		r.mu.Unlock()
		return err
	}

	done := make(chan struct{})

	r.mu.Lock()
	r.state = Subscribed
	r.feed = feed
	r.done = done
	r.mu.Unlock()

	go r.consume(feed, roomID, done)

	slog.Info("subscribed to room feed", "room_id", roomID)
	return nil
}

// Unsubscribe cancels the active feed, if any, and waits for the consumer
// to drain. After it returns no further events are merged.
func (r *Reconciler) Unsubscribe() {
	r.mu.Lock()
	feed := r.feed
	done := r.done
	roomID := r.roomID
	r.feed = nil
	r.done = nil
	r.roomID = ""
	r.state = Unsubscribed
	r.mu.Unlock()

	if feed == nil {
		return
	}

	feed.Cancel()
	<-done

	slog.Info("unsubscribed from room feed", "room_id", roomID)
}

func (r *Reconciler) consume(feed platform.MessageFeed, roomID string, done chan struct{}) {
	defer close(done)

	for ev := range feed.Events() {
		// The handle stops delivering after Cancel, but an event that
		// raced with a room switch must still be dropped here.
		if !r.active(roomID) || ev.Message.RoomID != roomID {
			continue
		}

		switch ev.Op {
		case platform.ChangeInsert:
			r.applyInsert(ev.Message)
		case platform.ChangeUpdate:
			r.applyUpdate(ev.Message)
		}
	}
}

// applyInsert merges an inbound "message created" event. If the message id
// is already present it is the echo of this session's own optimistic send
// and the merge is a no-op; the same rule makes a twice-delivered event
// harmless.
func (r *Reconciler) applyInsert(msg models.Message) {
	if !r.store.AppendMessage(msg) {
		return
	}
	r.store.SetRoomLastMessage(msg.RoomID, msg.Content, msg.CreatedAt)

	userID := r.session.CurrentID()
	if userID == "" || msg.UserID == userID || msg.ReadByUser(userID) {
		return
	}

	// A message arriving while its room is open is immediately read.
	readBy := append(msg.ReadBy, userID)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err := r.db.UpdateMessageReadBy(ctx, msg.ID, readBy)
	cancel()
	if err != nil {
		slog.Warn("read receipt failed", "message_id", msg.ID, "error", err)
		return
	}
	r.store.MergeReadBy(msg.ID, userID)
}

// applyUpdate folds read-set growth observed on the feed into the local
// copy, so the author sees read receipts without re-fetching. The read-set
// only grows, making the merge idempotent and order-tolerant.
func (r *Reconciler) applyUpdate(msg models.Message) {
	r.store.MergeReadBy(msg.ID, msg.ReadBy...)
}

func (r *Reconciler) active(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == Subscribed && r.roomID == roomID
}
