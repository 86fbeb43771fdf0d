package supabase

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"boltalka/internal/models"
	"boltalka/internal/platform"
)

const (
	preferHeader         = "Prefer"
	preferRepresentation = "return=representation"
	preferMinimal        = "return=minimal"
)

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	query := url.Values{"select": []string{"*"}}

	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/rest/v1/users", query, nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (models.User, error) {
	query := url.Values{
		"select": []string{"*"},
		"id":     []string{"eq." + id},
	}

	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/rest/v1/users", query, nil, nil, &users); err != nil {
		return models.User{}, err
	}
	if len(users) == 0 {
		return models.User{}, models.ErrNotFound
	}
	return users[0], nil
}

func (c *Client) InsertUser(ctx context.Context, user models.User) error {
	headers := map[string]string{preferHeader: preferMinimal}
	return c.do(ctx, http.MethodPost, "/rest/v1/users", nil, headers, []userRow{newUserRow(user)}, nil)
}

func (c *Client) UpdateUser(ctx context.Context, id string, patch map[string]any) error {
	query := url.Values{"id": []string{"eq." + id}}
	headers := map[string]string{preferHeader: preferMinimal}
	return c.do(ctx, http.MethodPatch, "/rest/v1/users", query, headers, patch, nil)
}

// roomRow carries the embedded latest-message summary the store returns
// alongside each room.
type roomRow struct {
	models.Room
	Messages []struct {
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"messages"`
}

// ListRooms selects all rooms with their single most recent message
// embedded. Participant filtering is the caller's concern.
func (c *Client) ListRooms(ctx context.Context) ([]models.Room, error) {
	query := url.Values{
		"select":         []string{"*,messages(content,created_at)"},
		"order":          []string{"created_at.desc"},
		"messages.order": []string{"created_at.desc"},
		"messages.limit": []string{"1"},
	}

	var rows []roomRow
	if err := c.do(ctx, http.MethodGet, "/rest/v1/rooms", query, nil, nil, &rows); err != nil {
		return nil, err
	}

	rooms := make([]models.Room, 0, len(rows))
	for _, row := range rows {
		room := row.Room
		if len(row.Messages) > 0 {
			latest := row.Messages[0]
			room.LastMessage = latest.Content
			at := latest.CreatedAt
			room.LastMessageAt = &at
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (c *Client) InsertRoom(ctx context.Context, room models.Room) (models.Room, error) {
	headers := map[string]string{preferHeader: preferRepresentation}

	var created []models.Room
	err := c.do(ctx, http.MethodPost, "/rest/v1/rooms", nil, headers, []roomInsert{newRoomInsert(room)}, &created)
	if err != nil {
		return models.Room{}, err
	}
	if len(created) == 0 {
		return models.Room{}, &platform.Error{Message: "insert returned no room"}
	}
	return created[0], nil
}

func (c *Client) ListRoomMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	query := url.Values{
		"select":  []string{"*"},
		"room_id": []string{"eq." + roomID},
		"order":   []string{"created_at.asc"},
	}

	var msgs []models.Message
	if err := c.do(ctx, http.MethodGet, "/rest/v1/messages", query, nil, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) InsertMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	headers := map[string]string{preferHeader: preferRepresentation}

	var created []models.Message
	err := c.do(ctx, http.MethodPost, "/rest/v1/messages", nil, headers, []messageInsert{newMessageInsert(msg)}, &created)
	if err != nil {
		return models.Message{}, err
	}
	if len(created) == 0 {
		return models.Message{}, &platform.Error{Message: "insert returned no message"}
	}
	return created[0], nil
}

func (c *Client) UpdateMessageReadBy(ctx context.Context, id string, readBy []string) error {
	query := url.Values{"id": []string{"eq." + id}}
	headers := map[string]string{preferHeader: preferMinimal}
	patch := map[string]any{"read_by": readBy}
	return c.do(ctx, http.MethodPatch, "/rest/v1/messages", query, headers, patch, nil)
}

// Insert payloads omit server-assigned columns so defaults apply.

type userRow struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	DisplayName string            `json:"display_name,omitempty"`
	AvatarURL   string            `json:"avatar_url,omitempty"`
	Status      models.UserStatus `json:"status,omitempty"`
}

func newUserRow(u models.User) userRow {
	return userRow{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Status:      u.Status,
	}
}

type roomInsert struct {
	Name         string   `json:"name"`
	IsDirect     bool     `json:"is_direct"`
	Participants []string `json:"participants"`
}

func newRoomInsert(r models.Room) roomInsert {
	return roomInsert{
		Name:         r.Name,
		IsDirect:     r.IsDirect,
		Participants: r.Participants,
	}
}

type messageInsert struct {
	ID      string   `json:"id,omitempty"`
	UserID  string   `json:"user_id"`
	RoomID  string   `json:"room_id"`
	Content string   `json:"content"`
	ReadBy  []string `json:"read_by"`
}

func newMessageInsert(m models.Message) messageInsert {
	return messageInsert{
		ID:      m.ID,
		UserID:  m.UserID,
		RoomID:  m.RoomID,
		Content: m.Content,
		ReadBy:  m.ReadBy,
	}
}
