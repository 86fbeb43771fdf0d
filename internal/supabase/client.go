// Package supabase implements the platform interfaces against a
// Supabase-compatible backend: GoTrue-style auth over HTTP, PostgREST-style
// record storage, and a phoenix-framed websocket for change feeds and
// presence.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"boltalka/internal/platform"
)

const defaultTimeout = 15 * time.Second

// TokenStore persists the auth session between runs. The local snapshot
// cache implements it; a nil store keeps sessions in memory only.
type TokenStore interface {
	LoadSession() (platform.Session, bool, error)
	SaveSession(platform.Session) error
	ClearSession() error
}

type Config struct {
	BaseURL string
	AnonKey string
	Tokens  TokenStore
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base URL is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if c.AnonKey == "" {
		return errors.New("anon key is required")
	}
	return nil
}

// Client talks to the platform. It implements platform.Auth,
// platform.Database, platform.Realtime and platform.FileStore.
type Client struct {
	baseURL string
	anonKey string
	tokens  TokenStore
	httpc   *http.Client

	mu           sync.RWMutex
	session      platform.Session
	hasSession   bool
	listeners    map[int]func(platform.AuthEvent)
	nextListener int
}

func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		anonKey:   cfg.AnonKey,
		tokens:    cfg.Tokens,
		httpc:     httpc,
		listeners: map[int]func(platform.AuthEvent){},
	}, nil
}

var (
	_ platform.Auth      = (*Client)(nil)
	_ platform.Database  = (*Client)(nil)
	_ platform.Realtime  = (*Client)(nil)
	_ platform.FileStore = (*Client)(nil)
)

// do performs one request/response call against the platform and decodes
// the JSON response into out (if non-nil). Failures carry the platform's
// structured error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.bearerToken())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// bearerToken returns the session token if authenticated, the anon key
// otherwise.
func (c *Client) bearerToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.hasSession {
		return c.session.AccessToken
	}
	return c.anonKey
}

func decodeError(resp *http.Response) error {
	perr := &platform.Error{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil {
		// Both auth and storage surfaces answer {code, message} on
		// failure; older auth versions use {error, error_description}.
		var raw struct {
			Code             string `json:"code"`
			Message          string `json:"message"`
			Msg              string `json:"msg"`
			Err              string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(data, &raw) == nil {
			perr.Code = raw.Code
			if perr.Code == "" {
				perr.Code = raw.Err
			}
			switch {
			case raw.Message != "":
				perr.Message = raw.Message
			case raw.Msg != "":
				perr.Message = raw.Msg
			case raw.ErrorDescription != "":
				perr.Message = raw.ErrorDescription
			}
		}
	}
	if perr.Message == "" {
		perr.Message = resp.Status
	}
	return perr
}

// websocketURL converts the base URL into the realtime websocket endpoint.
func (c *Client) websocketURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/realtime/v1/websocket?apikey=" + url.QueryEscape(c.anonKey)
}
