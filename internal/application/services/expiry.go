package services

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/transport-saas-ms/console/internal/domain/session"
	"github.com/transport-saas-ms/console/pkg/jwt"
	"github.com/transport-saas-ms/console/pkg/logger"
)

// SessionExpiredMessage is the redirect marker the login view turns into a banner.
const SessionExpiredMessage = "session-expired"

// Navigator is the location the console is currently showing.
type Navigator interface {
	Location() string
	Redirect(to string)
}

// SessionExpirer performs the silent logout and the redirect to login that
// both the expiry monitor and the request gateway use.
type SessionExpirer struct {
	state     session.State
	nav       Navigator
	loginPath string
	log       logger.Logger
}

func NewSessionExpirer(state session.State, nav Navigator, loginPath string, log logger.Logger) *SessionExpirer {
	if loginPath == "" {
		loginPath = "/login"
	}
	if log == nil {
		log = logger.Default()
	}
	return &SessionExpirer{
		state:     state,
		nav:       nav,
		loginPath: loginPath,
		log:       log.With(logger.Component("session_expirer")),
	}
}

// Expire clears the session and leaves the current view for login unless
// login is already showing.
func (e *SessionExpirer) Expire(ctx context.Context, reason string) {
	e.log.Warn("session expired", logger.Reason(reason))

	if err := e.state.ForceLogout(ctx); err != nil {
		e.log.Error("forced logout did not fully clear storage", logger.Error(err))
	}

	if e.nav == nil {
		return
	}
	if strings.HasPrefix(locationPath(e.nav.Location()), e.loginPath) {
		return
	}
	e.nav.Redirect(e.loginPath + "?message=" + SessionExpiredMessage)
}

// ExpiryMonitor periodically checks the access token and expires the
// session once it is past its exp claim. It only ticks while the session
// is authenticated.
type ExpiryMonitor struct {
	state    session.State
	expirer  *SessionExpirer
	interval time.Duration
	now      func() time.Time
	log      logger.Logger

	// checkMu makes a check and its forced logout atomic, so an expiry is
	// acted on once.
	checkMu sync.Mutex

	mu          sync.Mutex
	parent      context.Context
	stopTicker  context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// ExpiryMonitorOption configures an ExpiryMonitor.
type ExpiryMonitorOption func(*ExpiryMonitor)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ExpiryMonitorOption {
	return func(m *ExpiryMonitor) { m.now = now }
}

func NewExpiryMonitor(state session.State, expirer *SessionExpirer, interval time.Duration, log logger.Logger, opts ...ExpiryMonitorOption) *ExpiryMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logger.Default()
	}
	m := &ExpiryMonitor{
		state:    state,
		expirer:  expirer,
		interval: interval,
		now:      time.Now,
		log:      log.With(logger.Component("expiry_monitor")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts the monitor and blocks until ctx is done.
func (m *ExpiryMonitor) Run(ctx context.Context) {
	m.Start(ctx)
	<-ctx.Done()
	m.Stop()
}

// Start subscribes to the session and begins ticking if already authenticated.
// Calling Start twice without Stop is a no-op.
func (m *ExpiryMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.unsubscribe != nil {
		m.mu.Unlock()
		return
	}
	m.parent = ctx
	m.unsubscribe = m.state.Subscribe(m.onEvent)
	m.mu.Unlock()

	if m.state.Snapshot().IsAuthenticated {
		m.startTicker()
	}
}

// Stop unsubscribes and waits for the ticker goroutine to exit.
func (m *ExpiryMonitor) Stop() {
	m.mu.Lock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	if m.stopTicker != nil {
		m.stopTicker()
		m.stopTicker = nil
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// Running reports whether a ticker is active.
func (m *ExpiryMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopTicker != nil
}

// ValidateNow checks the token on demand. It returns false and expires the
// session when the token is expired, or missing while authenticated.
func (m *ExpiryMonitor) ValidateNow(ctx context.Context) bool {
	return !m.check(ctx)
}

func (m *ExpiryMonitor) onEvent(ev session.Event) {
	switch {
	case ev.Kind == session.EventAuthenticated:
		m.startTicker()
	case ev.Kind.IsLogout():
		m.haltTicker()
	}
}

func (m *ExpiryMonitor) startTicker() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopTicker != nil || m.parent == nil || m.parent.Err() != nil {
		return
	}

	ctx, cancel := context.WithCancel(m.parent)
	m.stopTicker = cancel
	m.wg.Add(1)
	go m.loop(ctx)
}

// haltTicker cancels without waiting; it may run on the ticker goroutine itself.
func (m *ExpiryMonitor) haltTicker() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopTicker != nil {
		m.stopTicker()
		m.stopTicker = nil
	}
}

func (m *ExpiryMonitor) loop(ctx context.Context) {
	defer m.wg.Done()

	m.log.Debug("expiry ticker started", logger.Duration("interval", m.interval))
	defer m.log.Debug("expiry ticker stopped")

	if m.check(ctx) {
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.check(ctx) {
				return
			}
		}
	}
}

// check expires the session if needed and reports whether it did.
func (m *ExpiryMonitor) check(ctx context.Context) bool {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	snap := m.state.Snapshot()
	if !snap.IsAuthenticated {
		return false
	}

	token := snap.AccessToken()
	if token != "" && !jwt.IsExpired(token, m.now()) {
		return false
	}

	reason := "token expired"
	if token == "" {
		reason = "token missing"
	}
	m.expirer.Expire(context.WithoutCancel(ctx), reason)
	return true
}

func locationPath(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return location
	}
	return u.Path
}
