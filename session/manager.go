// Package session manages the lifecycle of the admin session: validation
// against expiry and an age ceiling, proactive refresh before expiry, and
// forced logout when refresh fails.
//
// A Manager is constructed once by the application and shared by reference.
// Initialize, RefreshSession, ForceLogout and the scheduled refresh run one at
// a time, so concurrent requests cannot interleave lifecycle steps. Readers
// (State, Current, Snapshot) never wait on a lifecycle step in flight.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kalam-press/kalam/auth"
)

const (
	DefaultMaxSessionAge    = 24 * time.Hour
	DefaultRefreshThreshold = 30 * time.Minute
)

// State is a step of the session lifecycle.
type State int

const (
	NoSession State = iota
	Validating
	Valid
	RefreshScheduled
	Refreshing
	LoggedOut
)

func (s State) String() string {
	switch s {
	case NoSession:
		return "no_session"
	case Validating:
		return "validating"
	case Valid:
		return "valid"
	case RefreshScheduled:
		return "refresh_scheduled"
	case Refreshing:
		return "refreshing"
	case LoggedOut:
		return "logged_out"
	}
	return "unknown"
}

// Authenticated reports whether the state carries a usable session.
func (s State) Authenticated() bool {
	return s == Valid || s == RefreshScheduled || s == Refreshing
}

// Provider is the auth collaborator the manager drives.
type Provider interface {
	CurrentSession(ctx context.Context) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Session, error)
	SignOut(ctx context.Context) error
}

// Timer is an armed one-shot task.
type Timer interface {
	Stop() bool
}

// Scheduler arms one-shot tasks.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallScheduler struct{}

func (wallScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// WallScheduler schedules on real time.
var WallScheduler Scheduler = wallScheduler{}

// Options configure a Manager. Zero values take the defaults.
type Options struct {
	MaxSessionAge    time.Duration
	RefreshThreshold time.Duration
	Scheduler        Scheduler
	Now              func() time.Time
	Logger           zerolog.Logger
}

// RefreshResult reports the outcome of a refresh attempt.
type RefreshResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Snapshot is a read-only view of the manager.
type Snapshot struct {
	State            State
	User             auth.User
	MinutesRemaining int
	ShouldRefresh    bool
}

// Manager owns the current session and at most one armed refresh timer.
type Manager struct {
	provider  Provider
	maxAge    time.Duration
	threshold time.Duration
	sched     Scheduler
	now       func() time.Time
	log       zerolog.Logger

	// op serializes lifecycle operations; mu guards the fields below.
	op      sync.Mutex
	mu      sync.Mutex
	state   State
	current *auth.Session
	timer   Timer
	gen     uint64
}

// New returns a Manager driving p.
func New(p Provider, opts Options) *Manager {
	m := &Manager{
		provider:  p,
		maxAge:    opts.MaxSessionAge,
		threshold: opts.RefreshThreshold,
		sched:     opts.Scheduler,
		now:       opts.Now,
		log:       opts.Logger,
	}
	if m.maxAge <= 0 {
		m.maxAge = DefaultMaxSessionAge
	}
	if m.threshold <= 0 {
		m.threshold = DefaultRefreshThreshold
	}
	if m.sched == nil {
		m.sched = WallScheduler
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Initialize loads the stored session and validates it. A valid session arms
// the refresh timer; an invalid one is logged out. Errors from the provider
// are returned to the caller, which should treat them as signed out.
//
// While an authenticated session is re-validated, readers keep seeing its
// settled state; Validating is only reported when there was none.
func (m *Manager) Initialize(ctx context.Context) (State, error) {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	if !m.state.Authenticated() {
		m.state = Validating
	}
	m.mu.Unlock()
	s, err := m.provider.CurrentSession(ctx)
	if err != nil {
		m.setState(NoSession)
		return NoSession, errors.Wrap(err, "load current session")
	}
	if s == nil {
		m.mu.Lock()
		m.current = nil
		m.state = NoSession
		m.mu.Unlock()
		return NoSession, nil
	}
	if !m.IsSessionValid(s) {
		m.log.Info().Str("user", s.User.Email).Msg("stored session is no longer valid, logging out")
		if err := m.forceLogout(ctx); err != nil {
			return LoggedOut, err
		}
		return LoggedOut, nil
	}
	m.mu.Lock()
	m.current = s
	m.state = Valid
	m.mu.Unlock()
	m.SetupRefreshTimer(s)
	return m.State(), nil
}

// IsSessionValid reports whether s is unexpired and younger than the maximum
// session age. The age is taken from the access token's iat claim; a token
// that cannot be decoded counts as issued at the epoch.
func (m *Manager) IsSessionValid(s *auth.Session) bool {
	if s == nil {
		return false
	}
	now := m.now().Unix()
	if now >= s.ExpiresAt {
		return false
	}
	issuedAt := auth.TokenIssuedAt(s.AccessToken)
	return now-issuedAt < int64(m.maxAge/time.Second)
}

// TimeUntilExpiry returns whole minutes until s expires, never negative.
func (m *Manager) TimeUntilExpiry(s *auth.Session) int {
	if s == nil {
		return 0
	}
	now := m.now().Unix()
	if s.ExpiresAt <= now {
		return 0
	}
	return int((s.ExpiresAt - now) / 60)
}

// ShouldRefreshSession reports whether s is within the refresh threshold.
func (m *Manager) ShouldRefreshSession(s *auth.Session) bool {
	if s == nil {
		return false
	}
	return m.TimeUntilExpiry(s) <= m.thresholdMinutes()
}

func (m *Manager) thresholdMinutes() int {
	return int(m.threshold / time.Minute)
}

// SetupRefreshTimer replaces any armed timer with one that refreshes s when
// it enters the refresh threshold. It returns the delay and whether a timer
// was armed; no timer is armed when s is already inside the threshold.
func (m *Manager) SetupRefreshTimer(s *auth.Session) (time.Duration, bool) {
	delay := time.Duration(m.TimeUntilExpiry(s)-m.thresholdMinutes()) * time.Minute

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
	if s != nil {
		m.current = s
	}
	if delay <= 0 {
		if m.state == RefreshScheduled {
			m.state = Valid
		}
		return 0, false
	}
	gen := m.gen
	m.timer = m.sched.AfterFunc(delay, func() { m.onTimer(gen) })
	m.state = RefreshScheduled
	m.log.Debug().Dur("delay", delay).Msg("session refresh scheduled")
	return delay, true
}

// onTimer runs the scheduled refresh. A failed scheduled refresh logs out.
func (m *Manager) onTimer(gen uint64) {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	stale := gen != m.gen
	m.mu.Unlock()
	if stale {
		return
	}

	ctx := context.Background()
	res := m.refresh(ctx)
	if res.Success {
		return
	}
	m.log.Warn().Str("reason", res.Error).Msg("scheduled session refresh failed, logging out")
	if err := m.forceLogout(ctx); err != nil {
		m.log.Error().Err(err).Msg("forced logout failed")
	}
}

// RefreshSession exchanges the refresh token for a new session and re-arms
// the timer. Failures are reported in the result and leave the decision to
// log out to the caller.
func (m *Manager) RefreshSession(ctx context.Context) RefreshResult {
	m.op.Lock()
	defer m.op.Unlock()
	return m.refresh(ctx)
}

func (m *Manager) refresh(ctx context.Context) RefreshResult {
	m.mu.Lock()
	cur := m.current
	prev := m.state
	m.mu.Unlock()

	if cur == nil {
		s, err := m.provider.CurrentSession(ctx)
		if err != nil {
			return RefreshResult{Error: err.Error()}
		}
		cur = s
	}
	if cur == nil || cur.RefreshToken == "" {
		return RefreshResult{Error: "no session to refresh"}
	}

	m.setState(Refreshing)
	next, err := m.provider.Refresh(ctx, cur.RefreshToken)
	if err != nil || next == nil {
		msg := "no session returned from refresh"
		if err != nil {
			msg = err.Error()
		}
		m.mu.Lock()
		if m.state == Refreshing {
			m.state = prev
		}
		m.mu.Unlock()
		m.log.Warn().Str("reason", msg).Msg("session refresh failed")
		return RefreshResult{Error: msg}
	}

	m.mu.Lock()
	m.current = next
	m.state = Valid
	m.mu.Unlock()
	m.SetupRefreshTimer(next)
	m.log.Info().Str("user", next.User.Email).Msg("session refreshed")
	return RefreshResult{Success: true}
}

// ForceLogout cancels the timer, signs out with the provider and drops the
// local session. The state is LoggedOut afterwards even if sign-out fails.
func (m *Manager) ForceLogout(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()
	return m.forceLogout(ctx)
}

func (m *Manager) forceLogout(ctx context.Context) error {
	m.mu.Lock()
	m.stopTimerLocked()
	m.current = nil
	m.state = LoggedOut
	m.mu.Unlock()

	if err := m.provider.SignOut(ctx); err != nil {
		return errors.Wrap(err, "sign out")
	}
	return nil
}

// Cleanup cancels the armed timer without touching the remote session.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
	if m.state == RefreshScheduled {
		m.state = Valid
	}
}

// HandleEvent applies an auth state change published by the provider.
func (m *Manager) HandleEvent(ev auth.Event) {
	switch ev.Type {
	case auth.SignedIn, auth.TokenRefreshed:
		if ev.Session == nil {
			return
		}
		s := *ev.Session
		m.mu.Lock()
		m.current = &s
		if !m.state.Authenticated() {
			m.state = Valid
		}
		m.mu.Unlock()
		m.SetupRefreshTimer(&s)
	case auth.SignedOut:
		m.mu.Lock()
		m.stopTimerLocked()
		m.current = nil
		m.state = LoggedOut
		m.mu.Unlock()
	}
}

// Watch applies events until ctx is done or events is closed.
func (m *Manager) Watch(ctx context.Context, events <-chan auth.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.HandleEvent(ev)
		}
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns a copy of the current session, or nil.
func (m *Manager) Current() *auth.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// Snapshot returns the state together with expiry information.
func (m *Manager) Snapshot() Snapshot {
	cur := m.Current()
	snap := Snapshot{State: m.State()}
	if cur != nil {
		snap.User = cur.User
		snap.MinutesRemaining = m.TimeUntilExpiry(cur)
		snap.ShouldRefresh = m.ShouldRefreshSession(cur)
	}
	return snap
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) stopTimerLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
