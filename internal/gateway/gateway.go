// Package gateway performs the request/response reads and writes against
// the remote store: fetching rooms and messages, sending messages and
// creating rooms.
package gateway

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"boltalka/internal/models"
	"boltalka/internal/platform"
	"boltalka/internal/store"
)

// Identity exposes the current user owned by the session manager.
type Identity interface {
	Current() (models.User, bool)
	CurrentID() string
}

// RoomSelector exposes the active room selection owned by the client
// facade.
type RoomSelector interface {
	ActiveRoom() (models.Room, bool)
}

type Gateway struct {
	db       platform.Database
	session  Identity
	store    *store.Store
	selector RoomSelector
}

func New(db platform.Database, session Identity, st *store.Store, selector RoomSelector) *Gateway {
	return &Gateway{
		db:       db,
		session:  session,
		store:    st,
		selector: selector,
	}
}

// FetchRooms retrieves all rooms where the current user is a participant,
// each annotated with its most recent message, and replaces the room
// collection. On failure the previous cached rooms are left untouched.
func (g *Gateway) FetchRooms(ctx context.Context) error {
	userID := g.session.CurrentID()
	if userID == "" {
		return models.ErrNotAuthenticated
	}

	all, err := g.db.ListRooms(ctx)
	if err != nil {
		return &models.FetchFailedError{What: "rooms", Err: err}
	}

	rooms := make([]models.Room, 0, len(all))
	for _, r := range all {
		if r.HasParticipant(userID) {
			rooms = append(rooms, r)
		}
	}

	g.store.ReplaceRooms(rooms)
	return nil
}

// FetchMessages retrieves a room's messages in creation order and replaces
// the message collection. Every fetched message authored by someone else
// and not yet read by the current user gets a read-receipt update
// (mark-read-on-open).
func (g *Gateway) FetchMessages(ctx context.Context, roomID string) error {
	userID := g.session.CurrentID()
	if userID == "" {
		return models.ErrNotAuthenticated
	}

	msgs, err := g.db.ListRoomMessages(ctx, roomID)
	if err != nil {
		return &models.FetchFailedError{What: "messages", Err: err}
	}

	g.store.ReplaceMessages(roomID, msgs)

	for _, msg := range msgs {
		if msg.UserID == userID || msg.ReadByUser(userID) {
			continue
		}
		readBy := append(slices.Clone(msg.ReadBy), userID)
		if err := g.db.UpdateMessageReadBy(ctx, msg.ID, readBy); err != nil {
			slog.Warn("read receipt failed", "message_id", msg.ID, "error", err)
			continue
		}
		g.store.MergeReadBy(msg.ID, userID)
	}

	return nil
}

// SendMessage persists a message to the active room and optimistically
// appends it locally; the UI never waits for the realtime echo. The
// message id is assigned client-side so the echo can be deduplicated
// regardless of arrival order.
func (g *Gateway) SendMessage(ctx context.Context, body string) (models.Message, error) {
	user, ok := g.session.Current()
	if !ok {
		return models.Message{}, models.ErrNotAuthenticated
	}
	room, ok := g.selector.ActiveRoom()
	if !ok {
		return models.Message{}, models.ErrNoActiveRoom
	}
	if strings.TrimSpace(body) == "" {
		return models.Message{}, &models.ValidationError{Field: "message", Reason: "cannot be empty"}
	}

	msg := models.Message{
		ID:      uuid.NewString(),
		UserID:  user.ID,
		RoomID:  room.ID,
		Content: body,
		ReadBy:  []string{user.ID},
	}

	created, err := g.db.InsertMessage(ctx, msg)
	if err != nil {
		// Insert-before-append means a failed send leaves no local
		// entry, so there is nothing to roll back.
		return models.Message{}, &models.SendFailedError{Err: err}
	}

	g.store.AppendMessage(created)
	g.store.SetRoomLastMessage(room.ID, created.Content, created.CreatedAt)
	return created, nil
}

// CreateRoom persists a new room and refreshes the room list, so the
// canonical server-assigned record is what lands in the store. The creator
// is always a participant; a direct room has exactly 2 participants.
func (g *Gateway) CreateRoom(ctx context.Context, name string, participantIDs []string, isDirect bool) (string, error) {
	userID := g.session.CurrentID()
	if userID == "" {
		return "", models.ErrNotAuthenticated
	}

	participants := slices.Clone(participantIDs)
	if !slices.Contains(participants, userID) {
		participants = append(participants, userID)
	}

	if isDirect {
		if len(participants) != 2 {
			return "", &models.ValidationError{Field: "participants", Reason: "a direct room needs exactly one other participant"}
		}
	} else if strings.TrimSpace(name) == "" {
		return "", &models.ValidationError{Field: "name", Reason: "cannot be empty"}
	}

	created, err := g.db.InsertRoom(ctx, models.Room{
		Name:         name,
		IsDirect:     isDirect,
		Participants: participants,
	})
	if err != nil {
		return "", err
	}

	if err := g.FetchRooms(ctx); err != nil {
		slog.Warn("room list refresh after create failed", "room_id", created.ID, "error", err)
	}

	return created.ID, nil
}
