package supabase

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"boltalka/internal/models"
	"boltalka/internal/platform"
)

func TestGetUser(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/v1/users", r.URL.Path)
		require.Equal(t, "eq.u1", r.URL.Query().Get("id"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"u1","email":"one@example.com","display_name":"One","status":"online"}]`))
	})

	user, err := c.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "One", user.DisplayName)
	require.Equal(t, models.UserStatusOnline, user.Status)
}

func TestGetUserNotFound(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	_, err := c.GetUser(context.Background(), "nope")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateUser(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/rest/v1/users", r.URL.Path)
		require.Equal(t, "eq.u1", r.URL.Query().Get("id"))
		require.Equal(t, "return=minimal", r.Header.Get("Prefer"))

		var patch map[string]any
		require.NoError(t, decodeBody(r, &patch))
		require.Equal(t, "offline", patch["status"])

		w.WriteHeader(http.StatusNoContent)
	})

	err := c.UpdateUser(context.Background(), "u1", map[string]any{"status": "offline"})
	require.NoError(t, err)
}

func TestListRoomsEmbedsLatestMessage(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "*,messages(content,created_at)", q.Get("select"))
		require.Equal(t, "created_at.desc", q.Get("messages.order"))
		require.Equal(t, "1", q.Get("messages.limit"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"r1","name":"general","participants":["u1","u2"],
			 "messages":[{"content":"latest","created_at":"2026-08-01T10:00:00Z"}]},
			{"id":"r2","name":"empty","participants":["u1"],"messages":[]}
		]`))
	})

	rooms, err := c.ListRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	require.Equal(t, "latest", rooms[0].LastMessage)
	require.NotNil(t, rooms[0].LastMessageAt)

	require.Empty(t, rooms[1].LastMessage)
	require.Nil(t, rooms[1].LastMessageAt)
}

func TestInsertRoom(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "return=representation", r.Header.Get("Prefer"))

		var rows []map[string]any
		require.NoError(t, decodeBody(r, &rows))
		require.Len(t, rows, 1)
		// Server-assigned columns are omitted from the payload.
		require.NotContains(t, rows[0], "id")
		require.NotContains(t, rows[0], "created_at")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"r9","name":"general","participants":["u1","u2"]}]`))
	})

	created, err := c.InsertRoom(context.Background(), models.Room{
		Name:         "general",
		Participants: []string{"u1", "u2"},
	})
	require.NoError(t, err)
	require.Equal(t, "r9", created.ID)
}

func TestListRoomMessages(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "eq.r1", q.Get("room_id"))
		require.Equal(t, "created_at.asc", q.Get("order"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"m1","user_id":"u1","room_id":"r1","content":"hi","read_by":["u1"]},
			{"id":"m2","user_id":"u2","room_id":"r1","content":"hey","read_by":["u2"]}
		]`))
	})

	msgs, err := c.ListRoomMessages(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "m1", msgs[0].ID)
}

func TestInsertMessageKeepsClientID(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		var rows []map[string]any
		require.NoError(t, decodeBody(r, &rows))
		require.Len(t, rows, 1)
		require.Equal(t, "m1", rows[0]["id"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"m1","user_id":"u1","room_id":"r1","content":"hi","created_at":"2026-08-01T10:00:00Z","read_by":["u1"]}]`))
	})

	created, err := c.InsertMessage(context.Background(), models.Message{
		ID: "m1", UserID: "u1", RoomID: "r1", Content: "hi", ReadBy: []string{"u1"},
	})
	require.NoError(t, err)
	require.Equal(t, "m1", created.ID)
	require.False(t, created.CreatedAt.IsZero())
}

func TestUpdateMessageReadBy(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/rest/v1/messages", r.URL.Path)
		require.Equal(t, "eq.m1", r.URL.Query().Get("id"))

		var patch map[string][]string
		require.NoError(t, decodeBody(r, &patch))
		require.Equal(t, []string{"u1", "u2"}, patch["read_by"])

		w.WriteHeader(http.StatusNoContent)
	})

	err := c.UpdateMessageReadBy(context.Background(), "m1", []string{"u1", "u2"})
	require.NoError(t, err)
}

func TestStructuredError(t *testing.T) {
	c := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"23505","message":"duplicate key value"}`))
	})

	_, err := c.ListUsers(context.Background())
	var perr *platform.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, http.StatusConflict, perr.Status)
	require.Equal(t, "23505", perr.Code)
	require.Equal(t, "duplicate key value", perr.Message)
}
