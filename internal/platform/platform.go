// Package platform defines the interface to the external realtime data
// platform: authentication, record storage, change feeds, presence and
// file storage. The engine only ever talks to these interfaces;
// internal/supabase provides the wire implementation.
package platform

import (
	"context"
	"fmt"

	"boltalka/internal/models"
)

// Error is a structured platform failure (code + message) as delivered by
// the remote store.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("platform error (status %d): %s", e.Status, e.Message)
}

type AuthEventKind string

const (
	AuthSignedIn  AuthEventKind = "signed_in"
	AuthSignedOut AuthEventKind = "signed_out"
)

// AuthEvent is an asynchronous session-change notification. SignedOut may
// originate from another device revoking the token.
type AuthEvent struct {
	Kind   AuthEventKind
	UserID string
}

// Session identifies an authenticated platform session.
type Session struct {
	UserID      string
	AccessToken string
}

type Auth interface {
	// Session returns the current persisted session, if any.
	Session(ctx context.Context) (Session, bool, error)
	SignUp(ctx context.Context, email, password string, attrs map[string]string) (Session, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context) error
	// OnAuthChange registers a session-change listener and returns a
	// function that removes it.
	OnAuthChange(fn func(AuthEvent)) (remove func())
}

// Database is the typed record storage surface: filtered select, insert and
// update per collection. Every call is request/response and may fail with a
// *platform.Error.
type Database interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	InsertUser(ctx context.Context, user models.User) error
	UpdateUser(ctx context.Context, id string, patch map[string]any) error

	// ListRooms returns all rooms, each annotated with its most recent
	// message summary.
	ListRooms(ctx context.Context) ([]models.Room, error)
	InsertRoom(ctx context.Context, room models.Room) (models.Room, error)

	// ListRoomMessages returns a room's messages ordered by creation time
	// ascending.
	ListRoomMessages(ctx context.Context, roomID string) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg models.Message) (models.Message, error)
	UpdateMessageReadBy(ctx context.Context, id string, readBy []string) error
}

type ChangeOp string

const (
	ChangeInsert ChangeOp = "INSERT"
	ChangeUpdate ChangeOp = "UPDATE"
)

// MessageChange is a typed change event from the per-room message feed.
type MessageChange struct {
	Op      ChangeOp
	Message models.Message
}

// MessageFeed is a cancellable per-room subscription handle. After Cancel
// returns no further events are delivered on Events, even if the underlying
// transport teardown is still in flight.
type MessageFeed interface {
	Events() <-chan MessageChange
	Cancel()
}

// PresenceChannel is the global presence broadcast channel. Sync fires
// whenever the member set changes; Leave untracks and unsubscribes.
type PresenceChannel interface {
	Track(ctx context.Context, userID string) error
	Sync() <-chan struct{}
	Leave()
}

type Realtime interface {
	// SubscribeMessages opens a change feed filtered to one room's
	// messages. Events within the feed arrive in publish order.
	SubscribeMessages(ctx context.Context, roomID string) (MessageFeed, error)
	JoinPresence(ctx context.Context) (PresenceChannel, error)
}

// FileStore uploads user objects (avatars) and returns their public URL.
type FileStore interface {
	UploadAvatar(ctx context.Context, userID string, data []byte, contentType string) (string, error)
}
