package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, iat int64) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "iat": iat})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestTokenIssuedAt(t *testing.T) {
	assert.Equal(t, int64(1700000000), TokenIssuedAt(signedToken(t, 1700000000)))
	assert.Zero(t, TokenIssuedAt(""))
	assert.Zero(t, TokenIssuedAt("not-a-jwt"))
	assert.Zero(t, TokenIssuedAt("a.%%%.c"))

	noIat := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"})
	s, err := noIat.SignedString([]byte("k"))
	require.NoError(t, err)
	assert.Zero(t, TokenIssuedAt(s))
}

type memStore struct {
	mu sync.Mutex
	s  *Session
}

func (m *memStore) LoadAuthSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySession(m.s), nil
}

func (m *memStore) SaveAuthSession(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = &s
	return nil
}

func (m *memStore) ClearAuthSession(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}

type gotrue struct {
	t        *testing.T
	token    string
	logouts  int
	refreshs int
}

func (g *gotrue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(g.t, "anon", r.Header.Get("apikey"))
	switch r.URL.Path {
	case "/auth/v1/token":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch r.URL.Query().Get("grant_type") {
		case "password":
			if body["password"] != "right" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
				return
			}
		case "refresh_token":
			g.refreshs++
			if body["refresh_token"] != "r1" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  g.token,
			"refresh_token": "r1",
			"expires_in":    3600,
			"user":          map[string]string{"id": "u1", "email": "admin@kalam.test"},
		})
	case "/auth/v1/logout":
		g.logouts++
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T) (*Client, *gotrue, *memStore) {
	now := time.Unix(1700000000, 0)
	g := &gotrue{t: t, token: signedToken(t, now.Unix())}
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	store := &memStore{}
	c := New(Config{URL: srv.URL, AnonKey: "anon"},
		WithSessionStore(store),
		WithClock(func() time.Time { return now }))
	return c, g, store
}

func TestSignInRefreshSignOut(t *testing.T) {
	c, g, store := newTestClient(t)
	ctx := context.Background()
	events, cancel := c.Subscribe()
	defer cancel()

	s, err := c.SignIn(ctx, "admin@kalam.test", "right")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000+3600), s.ExpiresAt)
	assert.Equal(t, int64(1700000000), s.IssuedAt)
	assert.Equal(t, "admin@kalam.test", s.User.Email)
	require.NotNil(t, store.s)
	assert.Equal(t, SignedIn, (<-events).Type)

	cur, err := c.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, s.AccessToken, cur.AccessToken)

	_, err = c.Refresh(ctx, cur.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, 1, g.refreshs)
	assert.Equal(t, TokenRefreshed, (<-events).Type)

	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, 1, g.logouts)
	assert.Nil(t, store.s)
	ev := <-events
	assert.Equal(t, SignedOut, ev.Type)
	assert.Nil(t, ev.Session)

	require.NoError(t, c.SignOut(ctx), "second sign out is a no-op")
	assert.Equal(t, 1, g.logouts)

	cur, err = c.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestSignInRejected(t *testing.T) {
	c, _, _ := newTestClient(t)
	_, err := c.SignIn(context.Background(), "admin@kalam.test", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestRefreshFailure(t *testing.T) {
	c, _, _ := newTestClient(t)
	_, err := c.Refresh(context.Background(), "stale")
	assert.Error(t, err)

	_, err = c.Refresh(context.Background(), "")
	assert.True(t, errors.Is(err, ErrNoSession))
}

func TestCurrentSessionLoadsFromStore(t *testing.T) {
	c, _, store := newTestClient(t)
	store.s = &Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: 10}
	s, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "a", s.AccessToken)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	c, _, _ := newTestClient(t)
	ch, cancel := c.Subscribe()
	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}
