package supabase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"boltalka/internal/platform"
)

type authResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID string `json:"id"`
	} `json:"user"`
}

// Session returns the persisted platform session, if one exists and is
// still accepted by the auth endpoint.
func (c *Client) Session(ctx context.Context) (platform.Session, bool, error) {
	c.mu.RLock()
	sess, ok := c.session, c.hasSession
	c.mu.RUnlock()

	if !ok && c.tokens != nil {
		var err error
		sess, ok, err = c.tokens.LoadSession()
		if err != nil {
			return platform.Session{}, false, err
		}
	}
	if !ok {
		return platform.Session{}, false, nil
	}

	c.setSession(sess)

	// Verify the token is still accepted; a stale token behaves like no
	// session rather than an error.
	err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, nil, nil, nil)
	if err != nil {
		var perr *platform.Error
		if errors.As(err, &perr) && perr.Status == http.StatusUnauthorized {
			c.clearSession()
			return platform.Session{}, false, nil
		}
		return platform.Session{}, false, err
	}

	return sess, true, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string, attrs map[string]string) (platform.Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	if len(attrs) > 0 {
		body["data"] = attrs
	}

	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil, nil, body, &resp); err != nil {
		return platform.Session{}, err
	}

	sess := platform.Session{UserID: resp.User.ID, AccessToken: resp.AccessToken}
	c.setSession(sess)
	c.persistSession(sess)
	c.emit(platform.AuthEvent{Kind: platform.AuthSignedIn, UserID: sess.UserID})
	return sess, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (platform.Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	query := url.Values{"grant_type": []string{"password"}}

	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", query, nil, body, &resp); err != nil {
		return platform.Session{}, err
	}

	sess := platform.Session{UserID: resp.User.ID, AccessToken: resp.AccessToken}
	c.setSession(sess)
	c.persistSession(sess)
	c.emit(platform.AuthEvent{Kind: platform.AuthSignedIn, UserID: sess.UserID})
	return sess, nil
}

// SignOut revokes the session server-side (best effort) and always clears
// local session state.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.RLock()
	userID, ok := c.session.UserID, c.hasSession
	c.mu.RUnlock()
	if !ok {
		return nil
	}

	err := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, nil, nil)
	if err != nil {
		slog.Warn("remote logout failed", "error", err)
	}

	c.clearSession()
	c.emit(platform.AuthEvent{Kind: platform.AuthSignedOut, UserID: userID})
	return err
}

func (c *Client) OnAuthChange(fn func(platform.AuthEvent)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Client) setSession(sess platform.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = sess
	c.hasSession = true
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.session = platform.Session{}
	c.hasSession = false
	c.mu.Unlock()

	if c.tokens != nil {
		if err := c.tokens.ClearSession(); err != nil {
			slog.Warn("failed to clear persisted session", "error", err)
		}
	}
}

func (c *Client) persistSession(sess platform.Session) {
	if c.tokens == nil {
		return
	}
	if err := c.tokens.SaveSession(sess); err != nil {
		slog.Warn("failed to persist session", "error", err)
	}
}

func (c *Client) emit(ev platform.AuthEvent) {
	c.mu.RLock()
	fns := make([]func(platform.AuthEvent), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
