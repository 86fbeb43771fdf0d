package cache

import (
	"encoding"
	"encoding/binary"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type dbUser struct {
	ID          string `msgpack:"id"`
	Email       string `msgpack:"email"`
	DisplayName string `msgpack:"displayName"`
	AvatarURL   string `msgpack:"avatarUrl"`
	CreatedAt   int64  `msgpack:"createdAt"`
	LastSeen    int64  `msgpack:"lastSeen"`
	Status      string `msgpack:"status"`
}

func (u *dbUser) Key() []byte {
	return []byte(u.ID)
}

func (u *dbUser) MarshalBinary() (data []byte, err error) {
	type alias dbUser
	return msgpack.Marshal((*alias)(u))
}

func (u *dbUser) UnmarshalBinary(data []byte) error {
	type alias dbUser
	return msgpack.Unmarshal(data, (*alias)(u))
}

type dbRoom struct {
	ID            string   `msgpack:"id"`
	Name          string   `msgpack:"name"`
	CreatedAt     int64    `msgpack:"createdAt"`
	IsDirect      bool     `msgpack:"isDirect"`
	Participants  []string `msgpack:"participants"`
	LastMessage   string   `msgpack:"lastMessage"`
	LastMessageAt int64    `msgpack:"lastMessageAt"`
}

func (r *dbRoom) Key() []byte {
	return []byte(r.ID)
}

func (r *dbRoom) MarshalBinary() (data []byte, err error) {
	type alias dbRoom
	return msgpack.Marshal((*alias)(r))
}

func (r *dbRoom) UnmarshalBinary(data []byte) error {
	type alias dbRoom
	return msgpack.Unmarshal(data, (*alias)(r))
}

type dbMessage struct {
	ID        string   `msgpack:"id"`
	UserID    string   `msgpack:"userId"`
	RoomID    string   `msgpack:"roomId"`
	Content   string   `msgpack:"content"`
	CreatedAt int64    `msgpack:"createdAt"`
	ReadBy    []string `msgpack:"readBy"`
}

// Key orders messages by creation time; the id suffix disambiguates
// messages created in the same nanosecond.
func (m *dbMessage) Key() []byte {
	key := make([]byte, 8, 8+len(m.ID))
	binary.BigEndian.PutUint64(key, uint64(m.CreatedAt))
	return append(key, m.ID...)
}

func (m *dbMessage) MarshalBinary() (data []byte, err error) {
	type alias dbMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *dbMessage) UnmarshalBinary(data []byte) error {
	type alias dbMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

type dbSession struct {
	UserID      string `msgpack:"userId"`
	AccessToken string `msgpack:"accessToken"`
}

func (s *dbSession) MarshalBinary() (data []byte, err error) {
	type alias dbSession
	return msgpack.Marshal((*alias)(s))
}

func (s *dbSession) UnmarshalBinary(data []byte) error {
	type alias dbSession
	return msgpack.Unmarshal(data, (*alias)(s))
}

func unixOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}

func timePtrOrNil(unix int64) *time.Time {
	if unix == 0 {
		return nil
	}
	t := time.Unix(unix, 0).UTC()
	return &t
}
