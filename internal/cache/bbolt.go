// Package cache persists the last known users/rooms/messages snapshot and
// the auth session on disk, so a restarted client can render immediately
// while the first fresh fetch is in flight. It is a read cache, not an
// outbox: nothing is ever replayed from it.
package cache

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"boltalka/internal/models"
	"boltalka/internal/platform"
)

var (
	bucketUsers    = []byte("users")
	bucketRooms    = []byte("rooms")
	bucketMessages = []byte("messages")
	bucketSession  = []byte("session")

	keySession = []byte("current")
)

type Snapshot struct {
	db *bbolt.DB
}

func Open(path string) (*Snapshot, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketRooms, bucketMessages, bucketSession} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Snapshot{db: db}, nil
}

func (s *Snapshot) Close() error {
	return s.db.Close()
}

// SaveUsers replaces the cached user snapshot.
func (s *Snapshot) SaveUsers(users []models.User) error {
	return s.replaceBucket(bucketUsers, func(b *bbolt.Bucket) error {
		for _, u := range users {
			row := &dbUser{
				ID:          u.ID,
				Email:       u.Email,
				DisplayName: u.DisplayName,
				AvatarURL:   u.AvatarURL,
				CreatedAt:   u.CreatedAt.Unix(),
				LastSeen:    unixOrZero(u.LastSeen),
				Status:      string(u.Status),
			}
			if err := putRow(b, row); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Snapshot) LoadUsers() ([]models.User, error) {
	var users []models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var row dbUser
			if err := row.UnmarshalBinary(v); err != nil {
				return err
			}
			users = append(users, models.User{
				ID:          row.ID,
				Email:       row.Email,
				DisplayName: row.DisplayName,
				AvatarURL:   row.AvatarURL,
				CreatedAt:   time.Unix(row.CreatedAt, 0).UTC(),
				LastSeen:    timePtrOrNil(row.LastSeen),
				Status:      models.UserStatus(row.Status),
			})
			return nil
		})
	})
	return users, err
}

// SaveRooms replaces the cached room snapshot.
func (s *Snapshot) SaveRooms(rooms []models.Room) error {
	return s.replaceBucket(bucketRooms, func(b *bbolt.Bucket) error {
		for _, r := range rooms {
			row := &dbRoom{
				ID:            r.ID,
				Name:          r.Name,
				CreatedAt:     r.CreatedAt.Unix(),
				IsDirect:      r.IsDirect,
				Participants:  r.Participants,
				LastMessage:   r.LastMessage,
				LastMessageAt: unixOrZero(r.LastMessageAt),
			}
			if err := putRow(b, row); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Snapshot) LoadRooms() ([]models.Room, error) {
	var rooms []models.Room
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRooms).ForEach(func(k, v []byte) error {
			var row dbRoom
			if err := row.UnmarshalBinary(v); err != nil {
				return err
			}
			rooms = append(rooms, models.Room{
				ID:            row.ID,
				Name:          row.Name,
				CreatedAt:     time.Unix(row.CreatedAt, 0).UTC(),
				IsDirect:      row.IsDirect,
				Participants:  row.Participants,
				LastMessage:   row.LastMessage,
				LastMessageAt: timePtrOrNil(row.LastMessageAt),
			})
			return nil
		})
	})
	return rooms, err
}

// SaveMessages replaces the cached message snapshot for one room.
func (s *Snapshot) SaveMessages(roomID string, msgs []models.Message) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		parent := tx.Bucket(bucketMessages)
		if parent.Bucket([]byte(roomID)) != nil {
			if err := parent.DeleteBucket([]byte(roomID)); err != nil {
				return err
			}
		}
		b, err := parent.CreateBucket([]byte(roomID))
		if err != nil {
			return err
		}

		for _, m := range msgs {
			row := &dbMessage{
				ID:        m.ID,
				UserID:    m.UserID,
				RoomID:    m.RoomID,
				Content:   m.Content,
				CreatedAt: m.CreatedAt.UnixNano(),
				ReadBy:    m.ReadBy,
			}
			if err := putRow(b, row); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadMessages returns the cached messages of a room in creation order.
func (s *Snapshot) LoadMessages(roomID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMessages).Bucket([]byte(roomID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var row dbMessage
			if err := row.UnmarshalBinary(v); err != nil {
				return err
			}
			msgs = append(msgs, models.Message{
				ID:        row.ID,
				UserID:    row.UserID,
				RoomID:    row.RoomID,
				Content:   row.Content,
				CreatedAt: time.Unix(0, row.CreatedAt).UTC(),
				ReadBy:    row.ReadBy,
			})
			return nil
		})
	})
	return msgs, err
}

// SaveSession persists the auth session. Implements supabase.TokenStore.
func (s *Snapshot) SaveSession(sess platform.Session) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		row := &dbSession{UserID: sess.UserID, AccessToken: sess.AccessToken}
		data, err := row.MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSession).Put(keySession, data)
	})
}

func (s *Snapshot) LoadSession() (platform.Session, bool, error) {
	var sess platform.Session
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSession).Get(keySession)
		if data == nil {
			return nil
		}
		var row dbSession
		if err := row.UnmarshalBinary(data); err != nil {
			return err
		}
		sess = platform.Session{UserID: row.UserID, AccessToken: row.AccessToken}
		found = true
		return nil
	})
	return sess, found, err
}

func (s *Snapshot) ClearSession() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Delete(keySession)
	})
}

// Reset drops every cached entity and the session. Called on sign-out.
func (s *Snapshot) Reset() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketRooms, bucketMessages, bucketSession} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Snapshot) replaceBucket(name []byte, fill func(*bbolt.Bucket) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(name); err != nil {
			return err
		}
		b, err := tx.CreateBucket(name)
		if err != nil {
			return err
		}
		return fill(b)
	})
}

func putRow(b *bbolt.Bucket, row storeable) error {
	data, err := row.MarshalBinary()
	if err != nil {
		return err
	}
	return b.Put(row.Key(), data)
}
