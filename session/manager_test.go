package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalam-press/kalam/auth"
)

var epoch = time.Unix(1_750_000_000, 0)

type fakeTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) armed() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

type fakeProvider struct {
	current    *auth.Session
	currentErr error
	refreshed  *auth.Session
	refreshErr error
	signOutErr error
	refreshes  int
	signOuts   int
}

func (p *fakeProvider) CurrentSession(ctx context.Context) (*auth.Session, error) {
	return p.current, p.currentErr
}

func (p *fakeProvider) Refresh(ctx context.Context, token string) (*auth.Session, error) {
	p.refreshes++
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	return p.refreshed, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.signOuts++
	p.current = nil
	return p.signOutErr
}

func token(t *testing.T, iat time.Time) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iat": iat.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func sessionExpiringIn(t *testing.T, d time.Duration) *auth.Session {
	return &auth.Session{
		AccessToken:  token(t, epoch.Add(-time.Minute)),
		RefreshToken: "refresh",
		ExpiresAt:    epoch.Add(d).Unix(),
		User:         auth.User{ID: "u1", Email: "admin@kalam.test"},
	}
}

func newManager(p Provider) (*Manager, *fakeScheduler) {
	sched := &fakeScheduler{}
	return New(p, Options{Scheduler: sched, Now: func() time.Time { return epoch }}), sched
}

func TestIsSessionValidBoundaries(t *testing.T) {
	m, _ := newManager(&fakeProvider{})

	assert.False(t, m.IsSessionValid(nil))
	assert.True(t, m.IsSessionValid(sessionExpiringIn(t, time.Second)))
	assert.False(t, m.IsSessionValid(sessionExpiringIn(t, -time.Second)))
	assert.False(t, m.IsSessionValid(sessionExpiringIn(t, 0)))

	old := sessionExpiringIn(t, 100000*time.Second)
	old.AccessToken = token(t, epoch.Add(-DefaultMaxSessionAge-time.Second))
	assert.False(t, m.IsSessionValid(old), "age ceiling dominates expiry")

	edge := sessionExpiringIn(t, time.Hour)
	edge.AccessToken = token(t, epoch.Add(-DefaultMaxSessionAge+time.Second))
	assert.True(t, m.IsSessionValid(edge))
}

func TestIsSessionValidMalformedToken(t *testing.T) {
	m, _ := newManager(&fakeProvider{})
	s := sessionExpiringIn(t, time.Hour)
	for _, tok := range []string{"", "garbage", "a.b.c", "x.eyJpYXQiOiJub3QgYSBudW1iZXIifQ.y"} {
		s.AccessToken = tok
		assert.NotPanics(t, func() { assert.False(t, m.IsSessionValid(s), tok) })
	}
}

func TestTimeUntilExpiry(t *testing.T) {
	m, _ := newManager(&fakeProvider{})
	assert.Equal(t, 45, m.TimeUntilExpiry(sessionExpiringIn(t, 45*time.Minute+59*time.Second)))
	assert.Equal(t, 0, m.TimeUntilExpiry(sessionExpiringIn(t, 59*time.Second)))
	assert.Equal(t, 0, m.TimeUntilExpiry(sessionExpiringIn(t, -time.Hour)))
	assert.Equal(t, 0, m.TimeUntilExpiry(nil))

	assert.True(t, m.ShouldRefreshSession(sessionExpiringIn(t, 30*time.Minute)))
	assert.False(t, m.ShouldRefreshSession(sessionExpiringIn(t, 31*time.Minute)))
	assert.False(t, m.ShouldRefreshSession(nil))
}

func TestSetupRefreshTimer(t *testing.T) {
	m, sched := newManager(&fakeProvider{})

	d, ok := m.SetupRefreshTimer(sessionExpiringIn(t, 45*time.Minute))
	assert.True(t, ok)
	assert.Equal(t, 15*time.Minute, d)
	require.Len(t, sched.armed(), 1)
	assert.Equal(t, 15*time.Minute, sched.armed()[0].delay)
	assert.Equal(t, RefreshScheduled, m.State())

	_, ok = m.SetupRefreshTimer(sessionExpiringIn(t, 10*time.Minute))
	assert.False(t, ok)
	assert.Empty(t, sched.armed(), "re-arming cancels the previous timer")

	m.SetupRefreshTimer(sessionExpiringIn(t, 2*time.Hour))
	m.SetupRefreshTimer(sessionExpiringIn(t, 3*time.Hour))
	armed := sched.armed()
	require.Len(t, armed, 1, "last call wins")
	assert.Equal(t, 150*time.Minute, armed[0].delay)
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()

	m, _ := newManager(&fakeProvider{})
	st, err := m.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, NoSession, st)

	valid := &fakeProvider{current: sessionExpiringIn(t, 2*time.Hour)}
	m, sched := newManager(valid)
	st, err = m.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, RefreshScheduled, st)
	assert.Len(t, sched.armed(), 1)
	require.NotNil(t, m.Current())
	assert.Equal(t, "admin@kalam.test", m.Current().User.Email)

	expired := &fakeProvider{current: sessionExpiringIn(t, -time.Minute)}
	m, _ = newManager(expired)
	st, err = m.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, LoggedOut, st)
	assert.Equal(t, 1, expired.signOuts)
	assert.Nil(t, m.Current())

	broken := &fakeProvider{currentErr: errors.New("db down")}
	m, _ = newManager(broken)
	st, err = m.Initialize(ctx)
	assert.Error(t, err)
	assert.Equal(t, NoSession, st)
}

func TestScheduledRefreshSuccess(t *testing.T) {
	p := &fakeProvider{
		current:   sessionExpiringIn(t, 45*time.Minute),
		refreshed: sessionExpiringIn(t, 2*time.Hour),
	}
	m, sched := newManager(p)
	_, err := m.Initialize(context.Background())
	require.NoError(t, err)

	first := sched.armed()[0]
	first.f()

	assert.Equal(t, 1, p.refreshes)
	assert.Equal(t, 0, p.signOuts)
	assert.Equal(t, RefreshScheduled, m.State())
	armed := sched.armed()
	require.Len(t, armed, 1)
	assert.Equal(t, 90*time.Minute, armed[0].delay)
}

func TestScheduledRefreshFailureLogsOut(t *testing.T) {
	p := &fakeProvider{
		current:    sessionExpiringIn(t, 45*time.Minute),
		refreshErr: errors.New("refresh token revoked"),
	}
	m, sched := newManager(p)
	_, err := m.Initialize(context.Background())
	require.NoError(t, err)

	sched.armed()[0].f()
	assert.Equal(t, 1, p.refreshes)
	assert.Equal(t, 1, p.signOuts)
	assert.Equal(t, LoggedOut, m.State())
	assert.Empty(t, sched.armed())
}

func TestManualRefreshFailureDoesNotLogOut(t *testing.T) {
	p := &fakeProvider{
		current:    sessionExpiringIn(t, 20*time.Minute),
		refreshErr: errors.New("network"),
	}
	m, _ := newManager(p)
	_, err := m.Initialize(context.Background())
	require.NoError(t, err)

	res := m.RefreshSession(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, "network", res.Error)
	assert.Equal(t, 0, p.signOuts)
	assert.Equal(t, Valid, m.State())

	p.refreshErr = nil
	res = m.RefreshSession(context.Background())
	assert.False(t, res.Success, "nil session from provider is a failure")
}

func TestRefreshWithoutSession(t *testing.T) {
	m, _ := newManager(&fakeProvider{})
	res := m.RefreshSession(context.Background())
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestStaleTimerIsIgnored(t *testing.T) {
	p := &fakeProvider{current: sessionExpiringIn(t, 45*time.Minute)}
	m, sched := newManager(p)
	_, err := m.Initialize(context.Background())
	require.NoError(t, err)
	stale := sched.armed()[0]

	m.Cleanup()
	assert.Empty(t, sched.armed())
	assert.Equal(t, Valid, m.State())

	stale.f()
	assert.Equal(t, 0, p.refreshes)
}

func TestForceLogoutIdempotent(t *testing.T) {
	p := &fakeProvider{current: sessionExpiringIn(t, 2*time.Hour)}
	m, sched := newManager(p)
	_, err := m.Initialize(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.ForceLogout(context.Background()))
	assert.Equal(t, LoggedOut, m.State())
	require.NoError(t, m.ForceLogout(context.Background()))
	assert.Equal(t, LoggedOut, m.State())
	assert.Empty(t, sched.armed())

	p.signOutErr = errors.New("provider down")
	assert.Error(t, m.ForceLogout(context.Background()))
	assert.Equal(t, LoggedOut, m.State())
}

func TestHandleEvents(t *testing.T) {
	m, sched := newManager(&fakeProvider{})
	events := make(chan auth.Event, 3)
	events <- auth.Event{Type: auth.SignedIn, Session: sessionExpiringIn(t, time.Hour)}
	events <- auth.Event{Type: auth.TokenRefreshed, Session: sessionExpiringIn(t, 2*time.Hour)}
	events <- auth.Event{Type: auth.SignedOut}
	close(events)

	require.NoError(t, m.Watch(context.Background(), events))
	assert.Equal(t, LoggedOut, m.State())
	assert.Nil(t, m.Current())
	assert.Empty(t, sched.armed())

	m.HandleEvent(auth.Event{Type: auth.SignedIn, Session: sessionExpiringIn(t, time.Hour)})
	assert.Equal(t, RefreshScheduled, m.State())
	snap := m.Snapshot()
	assert.Equal(t, 60, snap.MinutesRemaining)
	assert.False(t, snap.ShouldRefresh)
	assert.Equal(t, "admin@kalam.test", snap.User.Email)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "refresh_scheduled", RefreshScheduled.String())
	assert.True(t, Refreshing.Authenticated())
	assert.False(t, LoggedOut.Authenticated())
}

// gatedProvider parks CurrentSession until release is closed.
type gatedProvider struct {
	*fakeProvider
	gate    bool
	entered chan struct{}
	release chan struct{}
}

func (p *gatedProvider) CurrentSession(ctx context.Context) (*auth.Session, error) {
	if p.gate {
		p.entered <- struct{}{}
		<-p.release
	}
	return p.fakeProvider.CurrentSession(ctx)
}

func TestRevalidationKeepsSettledState(t *testing.T) {
	p := &gatedProvider{
		fakeProvider: &fakeProvider{current: sessionExpiringIn(t, 45*time.Minute)},
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	m, _ := newManager(p)
	st, err := m.Initialize(context.Background())
	require.NoError(t, err)
	require.Equal(t, RefreshScheduled, st)

	p.gate = true
	done := make(chan State)
	go func() {
		st, _ := m.Initialize(context.Background())
		done <- st
	}()
	<-p.entered

	assert.Equal(t, RefreshScheduled, m.State())
	assert.True(t, m.Snapshot().State.Authenticated())
	assert.Equal(t, "admin@kalam.test", m.Snapshot().User.Email)

	close(p.release)
	assert.Equal(t, RefreshScheduled, <-done)
}

func TestFirstValidationReportsValidating(t *testing.T) {
	p := &gatedProvider{
		fakeProvider: &fakeProvider{current: sessionExpiringIn(t, 45*time.Minute)},
		gate:         true,
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	m, _ := newManager(p)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Initialize(context.Background())
	}()
	<-p.entered
	assert.Equal(t, Validating, m.State())
	close(p.release)
	<-done
	assert.Equal(t, RefreshScheduled, m.State())
}

func TestLifecycleCallsAreSerialized(t *testing.T) {
	p := &gatedProvider{
		fakeProvider: &fakeProvider{
			current:   sessionExpiringIn(t, 45*time.Minute),
			refreshed: sessionExpiringIn(t, 2*time.Hour),
		},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m, _ := newManager(p)
	_, err := m.Initialize(context.Background())
	require.NoError(t, err)

	p.gate = true
	initDone := make(chan struct{})
	go func() {
		defer close(initDone)
		_, _ = m.Initialize(context.Background())
	}()
	<-p.entered

	refreshed := make(chan RefreshResult, 1)
	logoutDone := make(chan error, 1)
	go func() { refreshed <- m.RefreshSession(context.Background()) }()
	go func() { logoutDone <- m.ForceLogout(context.Background()) }()

	select {
	case <-refreshed:
		t.Fatal("refresh ran while a validation was in flight")
	case <-logoutDone:
		t.Fatal("logout ran while a validation was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, RefreshScheduled, m.State())

	p.gate = false
	close(p.release)
	<-initDone
	<-refreshed
	require.NoError(t, <-logoutDone)
}
