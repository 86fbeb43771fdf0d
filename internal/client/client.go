// Package client is the engine facade consumed by the UI layer: the
// current user, the room list, the active room and its messages, the user
// map, and the mutating chat operations. It owns component wiring order
// (session before presence and gateway, reconciler last) and the sign-out
// teardown of all of them.
package client

import (
	"context"
	"html/template"
	"log/slog"
	"sync"

	"boltalka/internal/cache"
	"boltalka/internal/content"
	"boltalka/internal/gateway"
	"boltalka/internal/models"
	"boltalka/internal/platform"
	"boltalka/internal/presence"
	"boltalka/internal/realtime"
	"boltalka/internal/session"
	"boltalka/internal/store"
)

type Client struct {
	db    platform.Database
	store *store.Store
	snap  *cache.Snapshot

	session    *session.Manager
	presence   *presence.Tracker
	gateway    *gateway.Gateway
	reconciler *realtime.Reconciler

	mu     sync.RWMutex
	active *models.Room
}

// Config collects the platform surfaces the engine runs against. Snapshot
// is optional; without it nothing is persisted between runs.
type Config struct {
	Auth     platform.Auth
	Database platform.Database
	Realtime platform.Realtime
	Files    platform.FileStore
	Snapshot *cache.Snapshot
}

func New(cfg Config) *Client {
	st := store.New()

	c := &Client{
		db:    cfg.Database,
		store: st,
		snap:  cfg.Snapshot,
	}

	c.session = session.NewManager(cfg.Auth, cfg.Database, cfg.Files, st)
	c.presence = presence.NewTracker(cfg.Database, cfg.Realtime, st)
	c.gateway = gateway.New(cfg.Database, c.session, st, c)
	c.reconciler = realtime.NewReconciler(cfg.Realtime, cfg.Database, c.session, st)

	c.session.Start(c.onExternalSignOut)
	return c
}

// Start restores a persisted session if one exists and brings the engine
// into the authenticated state. It reports whether a session was restored.
func (c *Client) Start(ctx context.Context) (bool, error) {
	user, ok, err := c.session.Restore(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	c.warmFromSnapshot()
	if err := c.afterSignIn(ctx); err != nil {
		slog.Warn("initial sync failed", "user_id", user.ID, "error", err)
	}
	return true, nil
}

// Close tears the engine down without signing out: the persisted session
// survives for the next run.
func (c *Client) Close(ctx context.Context) {
	c.reconciler.Unsubscribe()
	c.presence.Stop(ctx)
	c.session.Close()
	c.clearActiveRoom()
}

// --- read surface -----------------------------------------------------

func (c *Client) CurrentUser() (models.User, bool) { return c.session.Current() }

func (c *Client) Rooms() []models.Room { return c.store.Rooms() }

func (c *Client) Messages() []models.Message { return c.store.Messages() }

func (c *Client) Users() map[string]models.User { return c.store.Users() }

// ActiveRoom returns the current room selection. Implements the gateway's
// RoomSelector.
func (c *Client) ActiveRoom() (models.Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return models.Room{}, false
	}
	return *c.active, true
}

// RenderMessage converts a message body to sanitized HTML for UI layers
// that embed rich text.
func (c *Client) RenderMessage(body string) (template.HTML, error) {
	return content.Render(body)
}

// --- auth operations --------------------------------------------------

func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (models.User, error) {
	user, err := c.session.SignUp(ctx, email, password, displayName)
	if err != nil {
		return models.User{}, err
	}
	if err := c.afterSignIn(ctx); err != nil {
		slog.Warn("initial sync failed", "user_id", user.ID, "error", err)
	}
	return user, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (models.User, error) {
	user, err := c.session.SignIn(ctx, email, password)
	if err != nil {
		return models.User{}, err
	}
	c.warmFromSnapshot()
	if err := c.afterSignIn(ctx); err != nil {
		slog.Warn("initial sync failed", "user_id", user.ID, "error", err)
	}
	return user, nil
}

// SignOut tears down the subscription and presence first, then revokes the
// session; the session manager resets the entity store.
func (c *Client) SignOut(ctx context.Context) error {
	c.reconciler.Unsubscribe()
	c.presence.Stop(ctx)
	c.clearActiveRoom()

	err := c.session.SignOut(ctx)

	if c.snap != nil {
		if rerr := c.snap.Reset(); rerr != nil {
			slog.Warn("failed to reset snapshot cache", "error", rerr)
		}
	}
	return err
}

func (c *Client) UpdateProfile(ctx context.Context, upd session.ProfileUpdate) (models.User, error) {
	return c.session.UpdateProfile(ctx, upd)
}

// SetVisible forwards foreground/background transitions to the presence
// tracker.
func (c *Client) SetVisible(ctx context.Context, visible bool) error {
	return c.presence.SetVisible(ctx, visible)
}

// --- chat operations --------------------------------------------------

func (c *Client) FetchRooms(ctx context.Context) error {
	if err := c.gateway.FetchRooms(ctx); err != nil {
		return err
	}
	c.saveRoomsSnapshot()
	return nil
}

func (c *Client) FetchMessages(ctx context.Context, roomID string) error {
	if err := c.gateway.FetchMessages(ctx, roomID); err != nil {
		return err
	}
	c.saveMessagesSnapshot(roomID)
	return nil
}

func (c *Client) SendMessage(ctx context.Context, body string) (models.Message, error) {
	msg, err := c.gateway.SendMessage(ctx, body)
	if err != nil {
		return models.Message{}, err
	}
	c.saveMessagesSnapshot(msg.RoomID)
	return msg, nil
}

func (c *Client) CreateRoom(ctx context.Context, name string, participantIDs []string, isDirect bool) (string, error) {
	id, err := c.gateway.CreateRoom(ctx, name, participantIDs, isDirect)
	if err != nil {
		return "", err
	}
	c.saveRoomsSnapshot()
	return id, nil
}

// SetActiveRoom switches the room selection: the previous feed is canceled
// before anything else happens, then the new room's messages are fetched
// and its feed opened. An empty id clears the selection.
func (c *Client) SetActiveRoom(ctx context.Context, roomID string) error {
	c.reconciler.Unsubscribe()

	if roomID == "" {
		c.clearActiveRoom()
		return nil
	}

	room, ok := c.store.Room(roomID)
	if !ok {
		return models.ErrNotFound
	}

	c.mu.Lock()
	c.active = &room
	c.mu.Unlock()

	if err := c.FetchMessages(ctx, roomID); err != nil {
		return err
	}
	return c.reconciler.Subscribe(ctx, roomID)
}

// SubscriptionState exposes the reconciler state for diagnostics.
func (c *Client) SubscriptionState() (realtime.State, string) {
	return c.reconciler.State()
}

// --- internals --------------------------------------------------------

// afterSignIn runs the initial sync: presence first, then the room and
// user snapshot fetches.
func (c *Client) afterSignIn(ctx context.Context) error {
	user, ok := c.session.Current()
	if !ok {
		return models.ErrNotAuthenticated
	}

	if err := c.presence.Start(ctx, user.ID); err != nil {
		slog.Warn("presence start failed", "user_id", user.ID, "error", err)
	}

	if err := c.FetchRooms(ctx); err != nil {
		return err
	}

	users, err := c.db.ListUsers(ctx)
	if err != nil {
		return &models.FetchFailedError{What: "users", Err: err}
	}
	c.store.SetUsers(users)
	c.saveUsersSnapshot()
	return nil
}

// onExternalSignOut mirrors the local sign-out teardown when the platform
// reports the session ended elsewhere. The session manager has already
// cleared the identity slot and the entity store.
func (c *Client) onExternalSignOut() {
	slog.Info("session ended externally")
	c.reconciler.Unsubscribe()
	c.presence.Stop(context.Background())
	c.clearActiveRoom()
}

func (c *Client) clearActiveRoom() {
	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()
}

// warmFromSnapshot fills the store from the on-disk cache so the UI has
// data before the first fresh fetch lands.
func (c *Client) warmFromSnapshot() {
	if c.snap == nil {
		return
	}
	if users, err := c.snap.LoadUsers(); err == nil && len(users) > 0 {
		c.store.SetUsers(users)
	}
	if rooms, err := c.snap.LoadRooms(); err == nil && len(rooms) > 0 {
		c.store.ReplaceRooms(rooms)
	}
}

func (c *Client) saveRoomsSnapshot() {
	if c.snap == nil {
		return
	}
	if err := c.snap.SaveRooms(c.store.Rooms()); err != nil {
		slog.Warn("failed to cache rooms", "error", err)
	}
}

func (c *Client) saveUsersSnapshot() {
	if c.snap == nil {
		return
	}
	users := c.store.Users()
	list := make([]models.User, 0, len(users))
	for _, u := range users {
		list = append(list, u)
	}
	if err := c.snap.SaveUsers(list); err != nil {
		slog.Warn("failed to cache users", "error", err)
	}
}

func (c *Client) saveMessagesSnapshot(roomID string) {
	if c.snap == nil {
		return
	}
	if err := c.snap.SaveMessages(roomID, c.store.Messages()); err != nil {
		slog.Warn("failed to cache messages", "room_id", roomID, "error", err)
	}
}
