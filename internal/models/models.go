package models

import (
	"slices"
	"time"
)

type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusOffline UserStatus = "offline"
)

// User represents a user in the system. Profile fields are owned by the
// session manager, Status and LastSeen by the presence tracker.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
	Status      UserStatus `json:"status,omitempty"`
}

// Room is a named conversation with a fixed participant list.
// For a direct room the participant count is exactly 2.
type Room struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	CreatedAt     time.Time  `json:"created_at"`
	IsDirect      bool       `json:"is_direct"`
	Participants  []string   `json:"participants"`
	LastMessage   string     `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// HasParticipant reports whether userID is in the room's participant list.
func (r Room) HasParticipant(userID string) bool {
	return slices.Contains(r.Participants, userID)
}

// Message is a chat message. CreatedAt is assigned once by the platform and
// never changes; ReadBy only grows and always contains the author.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	RoomID    string    `json:"room_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	ReadBy    []string  `json:"read_by"`
}

// ReadByUser reports whether userID is in the message read-set.
func (m Message) ReadByUser(userID string) bool {
	return slices.Contains(m.ReadBy, userID)
}
