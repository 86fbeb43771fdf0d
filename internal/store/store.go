// Package store holds the canonical in-memory copies of users, rooms and
// the active room's messages. All other components read and write through
// its entry points; reads return copies so callers never hold a mutable
// alias into the store.
package store

import (
	"slices"
	"sync"
	"time"

	"github.com/c-pro/geche"

	"boltalka/internal/models"
)

type Store struct {
	mu sync.RWMutex

	users geche.Geche[string, models.User]

	rooms []models.Room

	// messages is the message list of exactly one room (messagesRoom),
	// ordered by creation time ascending.
	messages     []models.Message
	messagesRoom string
}

func New() *Store {
	return &Store{
		users: geche.NewMapCache[string, models.User](),
	}
}

// SetUsers replaces the known-user collection.
func (s *Store) SetUsers(users []models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = geche.NewMapCache[string, models.User]()
	for _, u := range users {
		s.users.Set(u.ID, u)
	}
}

func (s *Store) UpsertUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users.Set(user.ID, user)
}

func (s *Store) User(id string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, err := s.users.Get(id)
	return u, err == nil
}

// Users returns a map from user id to user.
func (s *Store) Users() map[string]models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users.Snapshot()
}

// ReplaceRooms swaps in a freshly fetched room list.
func (s *Store) ReplaceRooms(rooms []models.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = slices.Clone(rooms)
}

func (s *Store) Rooms() []models.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rooms)
}

func (s *Store) Room(id string) (models.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if r.ID == id {
			return r, true
		}
	}
	return models.Room{}, false
}

// SetRoomLastMessage updates a room's denormalized last-message summary.
func (s *Store) SetRoomLastMessage(roomID, content string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rooms {
		if r.ID == roomID {
			s.rooms[i].LastMessage = content
			s.rooms[i].LastMessageAt = &at
			return
		}
	}
}

// ReplaceMessages swaps in the fetched message list for roomID. Any
// messages cached for a previously active room are dropped.
func (s *Store) ReplaceMessages(roomID string, msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messagesRoom = roomID
	s.messages = slices.Clone(msgs)
}

// Messages returns the active room's messages in creation order.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

// HasMessage reports whether a message with the given id is already
// present. This identity check is the dedup mechanism reconciling
// optimistic sends with their feed echo.
func (s *Store) HasMessage(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(id) >= 0
}

// AppendMessage adds msg to the active room's list unless a message with
// the same id is already present or msg belongs to another room. It reports
// whether the message was appended, so applying the same event twice is a
// no-op.
func (s *Store) AppendMessage(msg models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.RoomID != s.messagesRoom {
		return false
	}
	if s.indexOf(msg.ID) >= 0 {
		return false
	}
	msg.ReadBy = slices.Clone(msg.ReadBy)
	s.messages = append(s.messages, msg)
	return true
}

// MergeReadBy unions userIDs into the message's read-set. The read-set only
// grows; merging ids that are already present changes nothing. It reports
// whether the set grew.
func (s *Store) MergeReadBy(messageID string, userIDs ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(messageID)
	if i < 0 {
		return false
	}

	merged := slices.Clone(s.messages[i].ReadBy)
	grew := false
	for _, id := range userIDs {
		if !slices.Contains(merged, id) {
			merged = append(merged, id)
			grew = true
		}
	}
	if grew {
		s.messages[i].ReadBy = merged
	}
	return grew
}

// Reset clears all cached entities. Called on sign-out.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = geche.NewMapCache[string, models.User]()
	s.rooms = nil
	s.messages = nil
	s.messagesRoom = ""
}

// indexOf requires s.mu held.
func (s *Store) indexOf(messageID string) int {
	for i, m := range s.messages {
		if m.ID == messageID {
			return i
		}
	}
	return -1
}
