// Package session owns the authentication lifecycle and the local user
// identity.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"boltalka/internal/content"
	"boltalka/internal/models"
	"boltalka/internal/platform"
	"boltalka/internal/store"
)

type Manager struct {
	auth  platform.Auth
	db    platform.Database
	files platform.FileStore
	store *store.Store

	mu      sync.RWMutex
	current *models.User

	// onSignedOut mirrors the local sign-out teardown when the platform
	// reports an external sign-out (e.g. token revoked on another device).
	onSignedOut    func()
	removeListener func()
}

func NewManager(auth platform.Auth, db platform.Database, files platform.FileStore, st *store.Store) *Manager {
	return &Manager{
		auth:  auth,
		db:    db,
		files: files,
		store: st,
	}
}

// Start subscribes to platform session-change notifications. fn runs after
// local state has been cleared on an externally initiated sign-out.
func (m *Manager) Start(fn func()) {
	m.onSignedOut = fn
	m.removeListener = m.auth.OnAuthChange(func(ev platform.AuthEvent) {
		if ev.Kind != platform.AuthSignedOut {
			return
		}
		m.teardown()
	})
}

func (m *Manager) Close() {
	if m.removeListener != nil {
		m.removeListener()
		m.removeListener = nil
	}
}

// Restore checks for an existing authenticated session and loads the
// corresponding user record. The boolean reports whether a session exists.
func (m *Manager) Restore(ctx context.Context) (models.User, bool, error) {
	sess, ok, err := m.auth.Session(ctx)
	if err != nil {
		return models.User{}, false, err
	}
	if !ok {
		return models.User{}, false, nil
	}

	user, err := m.db.GetUser(ctx, sess.UserID)
	if err != nil {
		return models.User{}, false, err
	}

	m.setCurrent(user)
	slog.Info("session restored", "user_id", user.ID)
	return user, true, nil
}

func (m *Manager) SignUp(ctx context.Context, email, password, displayName string) (models.User, error) {
	if email == "" {
		return models.User{}, &models.ValidationError{Field: "email", Reason: "cannot be empty"}
	}
	if password == "" {
		return models.User{}, &models.ValidationError{Field: "password", Reason: "cannot be empty"}
	}
	if err := content.ValidateDisplayName(displayName); err != nil {
		return models.User{}, &models.ValidationError{Field: "display name", Reason: err.Error()}
	}

	sess, err := m.auth.SignUp(ctx, email, password, map[string]string{"display_name": displayName})
	if err != nil {
		return models.User{}, mapSignUpError(err)
	}

	user := models.User{
		ID:          sess.UserID,
		Email:       email,
		DisplayName: content.Sanitize(displayName),
		Status:      models.UserStatusOnline,
	}
	if err := m.db.InsertUser(ctx, user); err != nil {
		return models.User{}, mapSignUpError(err)
	}

	// Read the canonical record back so server-assigned fields are
	// populated.
	if canonical, err := m.db.GetUser(ctx, sess.UserID); err == nil {
		user = canonical
	}

	m.setCurrent(user)
	slog.Info("signed up", "user_id", user.ID)
	return user, nil
}

func (m *Manager) SignIn(ctx context.Context, email, password string) (models.User, error) {
	if email == "" || password == "" {
		return models.User{}, &models.ValidationError{Field: "credentials", Reason: "email and password are required"}
	}

	sess, err := m.auth.SignIn(ctx, email, password)
	if err != nil {
		return models.User{}, mapSignInError(err)
	}

	user, err := m.db.GetUser(ctx, sess.UserID)
	if err != nil {
		return models.User{}, err
	}

	m.setCurrent(user)
	slog.Info("signed in", "user_id", user.ID)
	return user, nil
}

// SignOut marks the user offline (best effort), revokes the platform
// session and clears all cached entities.
func (m *Manager) SignOut(ctx context.Context) error {
	user, ok := m.Current()
	if !ok {
		return nil
	}

	patch := map[string]any{
		"status":    models.UserStatusOffline,
		"last_seen": time.Now().UTC(),
	}
	if err := m.db.UpdateUser(ctx, user.ID, patch); err != nil {
		slog.Warn("failed to mark user offline on sign-out", "user_id", user.ID, "error", err)
	}

	err := m.auth.SignOut(ctx)
	// The auth-change listener performs the same teardown; calling it
	// directly covers the case where notifications are not wired.
	m.teardown()
	return err
}

// ProfileUpdate carries the permitted profile mutations. Nil fields are
// left unchanged; semantics are last-write-wins.
type ProfileUpdate struct {
	DisplayName *string
	Avatar      []byte
}

func (m *Manager) UpdateProfile(ctx context.Context, upd ProfileUpdate) (models.User, error) {
	user, ok := m.Current()
	if !ok {
		return models.User{}, &models.AuthError{Reason: "no active session"}
	}

	patch := map[string]any{}

	if upd.DisplayName != nil {
		if err := content.ValidateDisplayName(*upd.DisplayName); err != nil {
			return models.User{}, &models.ValidationError{Field: "display name", Reason: err.Error()}
		}
		name := content.Sanitize(*upd.DisplayName)
		patch["display_name"] = name
		user.DisplayName = name
	}

	if len(upd.Avatar) > 0 {
		url, err := m.uploadAvatar(ctx, user.ID, upd.Avatar)
		if err != nil {
			return models.User{}, err
		}
		patch["avatar_url"] = url
		user.AvatarURL = url
	}

	if len(patch) == 0 {
		return user, nil
	}

	if err := m.db.UpdateUser(ctx, user.ID, patch); err != nil {
		return models.User{}, err
	}

	m.setCurrent(user)
	return user, nil
}

func (m *Manager) Current() (models.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return models.User{}, false
	}
	return *m.current, true
}

// CurrentID returns the current user id, or "" without a session.
func (m *Manager) CurrentID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.ID
}

func (m *Manager) setCurrent(user models.User) {
	m.mu.Lock()
	m.current = &user
	m.mu.Unlock()
	m.store.UpsertUser(user)
}

// teardown clears the identity slot and all cached entities. Idempotent:
// it runs on local sign-out and again on the resulting auth notification.
func (m *Manager) teardown() {
	m.mu.Lock()
	had := m.current != nil
	m.current = nil
	m.mu.Unlock()

	if !had {
		return
	}
	m.store.Reset()
	if m.onSignedOut != nil {
		m.onSignedOut()
	}
}

func mapSignUpError(err error) error {
	var perr *platform.Error
	if !errors.As(err, &perr) {
		return err
	}
	switch {
	case perr.Status == http.StatusConflict || perr.Code == "user_already_exists" || perr.Code == "email_exists":
		return &models.ConflictError{Field: "email", Err: perr}
	case perr.Status == http.StatusBadRequest || perr.Status == http.StatusUnprocessableEntity:
		return &models.ValidationError{Field: "credentials", Reason: perr.Message}
	default:
		return err
	}
}

func mapSignInError(err error) error {
	var perr *platform.Error
	if !errors.As(err, &perr) {
		return err
	}
	if perr.Status == http.StatusBadRequest || perr.Status == http.StatusUnauthorized {
		return &models.AuthError{Reason: "invalid credentials", Err: perr}
	}
	return err
}
