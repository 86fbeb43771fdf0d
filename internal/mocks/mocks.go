// Package mocks provides testify mocks of the platform interfaces for
// component tests.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"boltalka/internal/models"
	"boltalka/internal/platform"
)

type AuthMock struct {
	mock.Mock
}

func (m *AuthMock) Session(ctx context.Context) (platform.Session, bool, error) {
	args := m.Called(ctx)
	var sess platform.Session
	if val := args.Get(0); val != nil {
		sess = val.(platform.Session)
	}
	return sess, args.Bool(1), args.Error(2)
}

func (m *AuthMock) SignUp(ctx context.Context, email, password string, attrs map[string]string) (platform.Session, error) {
	args := m.Called(ctx, email, password, attrs)
	var sess platform.Session
	if val := args.Get(0); val != nil {
		sess = val.(platform.Session)
	}
	return sess, args.Error(1)
}

func (m *AuthMock) SignIn(ctx context.Context, email, password string) (platform.Session, error) {
	args := m.Called(ctx, email, password)
	var sess platform.Session
	if val := args.Get(0); val != nil {
		sess = val.(platform.Session)
	}
	return sess, args.Error(1)
}

func (m *AuthMock) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *AuthMock) OnAuthChange(fn func(platform.AuthEvent)) func() {
	args := m.Called(fn)
	if val := args.Get(0); val != nil {
		return val.(func())
	}
	return func() {}
}

type DatabaseMock struct {
	mock.Mock
}

func (m *DatabaseMock) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *DatabaseMock) GetUser(ctx context.Context, id string) (models.User, error) {
	args := m.Called(ctx, id)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *DatabaseMock) InsertUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *DatabaseMock) UpdateUser(ctx context.Context, id string, patch map[string]any) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

func (m *DatabaseMock) ListRooms(ctx context.Context) ([]models.Room, error) {
	args := m.Called(ctx)
	var rooms []models.Room
	if val := args.Get(0); val != nil {
		rooms = val.([]models.Room)
	}
	return rooms, args.Error(1)
}

func (m *DatabaseMock) InsertRoom(ctx context.Context, room models.Room) (models.Room, error) {
	args := m.Called(ctx, room)
	var created models.Room
	if val := args.Get(0); val != nil {
		created = val.(models.Room)
	}
	return created, args.Error(1)
}

func (m *DatabaseMock) ListRoomMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *DatabaseMock) InsertMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var created models.Message
	if val := args.Get(0); val != nil {
		created = val.(models.Message)
	}
	return created, args.Error(1)
}

func (m *DatabaseMock) UpdateMessageReadBy(ctx context.Context, id string, readBy []string) error {
	args := m.Called(ctx, id, readBy)
	return args.Error(0)
}

type RealtimeMock struct {
	mock.Mock
}

func (m *RealtimeMock) SubscribeMessages(ctx context.Context, roomID string) (platform.MessageFeed, error) {
	args := m.Called(ctx, roomID)
	var feed platform.MessageFeed
	if val := args.Get(0); val != nil {
		feed = val.(platform.MessageFeed)
	}
	return feed, args.Error(1)
}

func (m *RealtimeMock) JoinPresence(ctx context.Context) (platform.PresenceChannel, error) {
	args := m.Called(ctx)
	var ch platform.PresenceChannel
	if val := args.Get(0); val != nil {
		ch = val.(platform.PresenceChannel)
	}
	return ch, args.Error(1)
}

type FileStoreMock struct {
	mock.Mock
}

func (m *FileStoreMock) UploadAvatar(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, userID, data, contentType)
	return args.String(0), args.Error(1)
}

var (
	_ platform.Auth      = (*AuthMock)(nil)
	_ platform.Database  = (*DatabaseMock)(nil)
	_ platform.Realtime  = (*RealtimeMock)(nil)
	_ platform.FileStore = (*FileStoreMock)(nil)
)
