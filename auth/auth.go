// Package auth is the admin authentication provider. It speaks the GoTrue REST
// protocol used by Supabase, keeps the current session and publishes auth
// state changes to subscribers.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	// ErrNoSession is returned when an operation needs a session and none is stored.
	ErrNoSession = errors.New("auth: no session")
	// ErrInvalidCredentials is returned by SignIn for a rejected email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// User identifies the signed-in admin.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the admin's credential bundle. Times are Unix seconds.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IssuedAt     int64  `json:"issued_at"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// EventType names an auth state change.
type EventType string

const (
	SignedIn       EventType = "SIGNED_IN"
	SignedOut      EventType = "SIGNED_OUT"
	TokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Event is published on every auth state change. Session is nil for SignedOut.
type Event struct {
	Type    EventType
	Session *Session
}

// SessionStore persists the current session across restarts.
type SessionStore interface {
	LoadAuthSession(ctx context.Context) (*Session, error)
	SaveAuthSession(ctx context.Context, s Session) error
	ClearAuthSession(ctx context.Context) error
}

// TokenIssuedAt returns the iat claim of a JWT without verifying its
// signature, or 0 when the token cannot be decoded.
func TokenIssuedAt(token string) int64 {
	if token == "" {
		return 0
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return 0
	}
	return iat.Unix()
}

// Config holds the provider endpoint and API key.
type Config struct {
	URL     string
	AnonKey string
}

// Client is a GoTrue client holding one admin session.
type Client struct {
	cfg   Config
	http  *http.Client
	store SessionStore
	log   zerolog.Logger
	now   func() time.Time

	mu      sync.Mutex
	current *Session
	loaded  bool
	subs    map[int]chan Event
	nextSub int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithSessionStore persists sessions to s.
func WithSessionStore(s SessionStore) Option {
	return func(c *Client) { c.store = s }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithClock overrides the time source used to compute expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New returns a Client for cfg.
func New(cfg Config, opts ...Option) *Client {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
		log:  zerolog.Nop(),
		now:  time.Now,
		subs: map[int]chan Event{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentSession returns the stored session, or nil when signed out.
func (c *Client) CurrentSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded && c.store != nil {
		s, err := c.store.LoadAuthSession(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "load session")
		}
		c.current = s
	}
	c.loaded = true
	if c.current == nil {
		return nil, nil
	}
	s := *c.current
	return &s, nil
}

// SignIn exchanges an email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	s, err := c.token(ctx, "password", body)
	if err != nil {
		return nil, err
	}
	if err := c.setSession(ctx, s); err != nil {
		return nil, err
	}
	c.publish(Event{Type: SignedIn, Session: copySession(s)})
	return copySession(s), nil
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrNoSession
	}
	s, err := c.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	if err := c.setSession(ctx, s); err != nil {
		return nil, err
	}
	c.publish(Event{Type: TokenRefreshed, Session: copySession(s)})
	return copySession(s), nil
}

// SignOut revokes the session remotely and clears local state. Local state is
// cleared even when the remote call fails; calling it while signed out is a no-op.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	cur := c.current
	c.current = nil
	c.loaded = true
	c.mu.Unlock()

	var clearErr error
	if c.store != nil {
		clearErr = errors.Wrap(c.store.ClearAuthSession(ctx), "clear session")
	}
	if cur == nil {
		return clearErr
	}
	c.publish(Event{Type: SignedOut})

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cur.AccessToken)
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "sign out")
	}
	defer res.Body.Close()
	// An expired or already revoked token means the remote session is gone.
	if res.StatusCode >= 300 && res.StatusCode != http.StatusUnauthorized && res.StatusCode != http.StatusNotFound {
		return errors.Errorf("sign out: status %d", res.StatusCode)
	}
	return clearErr
}

// Subscribe returns a channel of auth events and a function that stops the
// subscription. Events are dropped for subscribers that fall behind.
func (c *Client) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Client) publish(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.log.Warn().Str("event", string(ev.Type)).Msg("auth subscriber is full, dropping event")
		}
	}
}

func (c *Client) setSession(ctx context.Context, s *Session) error {
	if c.store != nil {
		if err := c.store.SaveAuthSession(ctx, *s); err != nil {
			return errors.Wrap(err, "save session")
		}
	}
	c.mu.Lock()
	c.current = copySession(s)
	c.loaded = true
	c.mu.Unlock()
	return nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e errorResponse) String() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return "unknown error"
}

func (c *Client) token(ctx context.Context, grant string, body any) (*Session, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/token?grant_type="+grant, body)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "token request")
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		var er errorResponse
		_ = json.NewDecoder(io.LimitReader(res.Body, 1<<16)).Decode(&er)
		if grant == "password" && (res.StatusCode == http.StatusBadRequest || res.StatusCode == http.StatusUnauthorized) {
			return nil, errors.Wrap(ErrInvalidCredentials, er.String())
		}
		return nil, errors.Errorf("token request: status %d: %s", res.StatusCode, er)
	}
	var tr tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&tr); err != nil {
		return nil, errors.Wrap(err, "decode token response")
	}
	if tr.AccessToken == "" {
		return nil, errors.New("token response without access token")
	}
	s := &Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    tr.ExpiresAt,
		User:         tr.User,
	}
	now := c.now().Unix()
	if s.ExpiresAt == 0 && tr.ExpiresIn > 0 {
		s.ExpiresAt = now + tr.ExpiresIn
	}
	s.IssuedAt = TokenIssuedAt(s.AccessToken)
	if s.IssuedAt == 0 {
		s.IssuedAt = now
	}
	return s, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.URL+path, r)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("apikey", c.cfg.AnonKey)
	req.Header.Set("Authorization", "Bearer "+c.cfg.AnonKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
