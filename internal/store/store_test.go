package store

import (
	"slices"
	"testing"
	"time"

	"boltalka/internal/models"
)

func TestUsers(t *testing.T) {
	s := New()

	s.SetUsers([]models.User{
		{ID: "u1", Email: "one@example.com"},
		{ID: "u2", Email: "two@example.com"},
	})

	if got := len(s.Users()); got != 2 {
		t.Fatalf("expected 2 users, got %d", got)
	}

	u, ok := s.User("u1")
	if !ok {
		t.Fatal("expected to find u1")
	}
	if u.Email != "one@example.com" {
		t.Errorf("unexpected email %q", u.Email)
	}

	if _, ok := s.User("nope"); ok {
		t.Error("expected miss for unknown id")
	}

	s.UpsertUser(models.User{ID: "u1", Email: "one@example.com", Status: models.UserStatusOnline})
	u, _ = s.User("u1")
	if u.Status != models.UserStatusOnline {
		t.Errorf("expected upsert to overwrite, got status %q", u.Status)
	}

	// SetUsers replaces, never merges.
	s.SetUsers([]models.User{{ID: "u3"}})
	if _, ok := s.User("u1"); ok {
		t.Error("expected u1 gone after replace")
	}
}

func TestRooms(t *testing.T) {
	s := New()

	s.ReplaceRooms([]models.Room{
		{ID: "r1", Name: "general"},
		{ID: "r2", Name: "random"},
	})

	room, ok := s.Room("r2")
	if !ok || room.Name != "random" {
		t.Fatalf("expected to find r2, got %+v ok=%v", room, ok)
	}

	at := time.Now()
	s.SetRoomLastMessage("r1", "hello", at)
	room, _ = s.Room("r1")
	if room.LastMessage != "hello" {
		t.Errorf("expected last message set, got %q", room.LastMessage)
	}
	if room.LastMessageAt == nil || !room.LastMessageAt.Equal(at) {
		t.Errorf("expected last message time %v, got %v", at, room.LastMessageAt)
	}

	// Unknown room is a no-op, not a panic.
	s.SetRoomLastMessage("nope", "x", at)

	rooms := s.Rooms()
	rooms[0].Name = "mutated"
	if room, _ := s.Room("r1"); room.Name == "mutated" {
		t.Error("Rooms must return a copy")
	}
}

func TestAppendMessageDedup(t *testing.T) {
	s := New()
	s.ReplaceMessages("r1", nil)

	msg := models.Message{ID: "m1", RoomID: "r1", UserID: "u1", Content: "hi"}

	if !s.AppendMessage(msg) {
		t.Fatal("first append should succeed")
	}
	if s.AppendMessage(msg) {
		t.Fatal("second append of the same id should be a no-op")
	}
	if got := len(s.Messages()); got != 1 {
		t.Fatalf("expected 1 message, got %d", got)
	}

	if !s.HasMessage("m1") {
		t.Error("expected HasMessage to see m1")
	}
	if s.HasMessage("m2") {
		t.Error("unexpected hit for m2")
	}
}

func TestAppendMessageWrongRoom(t *testing.T) {
	s := New()
	s.ReplaceMessages("r1", nil)

	if s.AppendMessage(models.Message{ID: "m1", RoomID: "r2"}) {
		t.Fatal("message for an inactive room must be dropped")
	}
	if len(s.Messages()) != 0 {
		t.Fatal("expected no messages")
	}
}

func TestReplaceMessagesSwitchesRoom(t *testing.T) {
	s := New()
	s.ReplaceMessages("r1", []models.Message{{ID: "m1", RoomID: "r1"}})
	s.ReplaceMessages("r2", []models.Message{{ID: "m2", RoomID: "r2"}})

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].ID != "m2" {
		t.Fatalf("expected only r2 messages, got %+v", msgs)
	}
	if s.AppendMessage(models.Message{ID: "m3", RoomID: "r1"}) {
		t.Error("append for the previous room must be dropped")
	}
}

func TestMergeReadBy(t *testing.T) {
	s := New()
	s.ReplaceMessages("r1", []models.Message{
		{ID: "m1", RoomID: "r1", ReadBy: []string{"u1"}},
	})

	if !s.MergeReadBy("m1", "u2") {
		t.Fatal("expected merge of new reader to grow the set")
	}
	if s.MergeReadBy("m1", "u2") {
		t.Fatal("merging the same reader twice must not grow the set")
	}
	if s.MergeReadBy("m1", "u1", "u2") {
		t.Fatal("merging only known readers must not grow the set")
	}
	if !s.MergeReadBy("m1", "u2", "u3") {
		t.Fatal("a mixed merge with one new reader must grow the set")
	}
	if s.MergeReadBy("missing", "u1") {
		t.Fatal("merge on an unknown message must report false")
	}

	got := s.Messages()[0].ReadBy
	want := []string{"u1", "u2", "u3"}
	if !slices.Equal(got, want) {
		t.Errorf("read-set = %v, want %v", got, want)
	}
}

func TestReset(t *testing.T) {
	s := New()
	s.SetUsers([]models.User{{ID: "u1"}})
	s.ReplaceRooms([]models.Room{{ID: "r1"}})
	s.ReplaceMessages("r1", []models.Message{{ID: "m1", RoomID: "r1"}})

	s.Reset()

	if len(s.Users()) != 0 || len(s.Rooms()) != 0 || len(s.Messages()) != 0 {
		t.Error("expected all collections empty after reset")
	}
	if s.AppendMessage(models.Message{ID: "m2", RoomID: "r1"}) {
		t.Error("no room is active after reset")
	}
}
