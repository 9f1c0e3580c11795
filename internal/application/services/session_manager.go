package services

import (
	"context"
	"sync"

	"github.com/transport-saas-ms/console/internal/domain/session"
	"github.com/transport-saas-ms/console/pkg/errors"
	"github.com/transport-saas-ms/console/pkg/logger"
)

// SessionManager is the single live session container of the process.
// Every mutation is persisted before memory changes, then subscribers are
// notified in mutation order.
type SessionManager struct {
	store session.CredentialStore
	log   logger.Logger

	// opMu serializes mutations so the store and memory never diverge.
	opMu sync.Mutex
	mu   sync.RWMutex
	snap session.Snapshot

	// deliverMu is taken before opMu is released, so events reach
	// subscribers in the order the mutations happened.
	deliverMu sync.Mutex

	subMu  sync.Mutex
	subs   map[int]func(session.Event)
	nextID int
}

var _ session.State = (*SessionManager)(nil)

// NewSessionManager creates an empty, unauthenticated container.
// Call Rehydrate to load a persisted session.
func NewSessionManager(store session.CredentialStore, log logger.Logger) *SessionManager {
	if log == nil {
		log = logger.Default()
	}
	return &SessionManager{
		store: store,
		log:   log.With(logger.Component("session")),
		subs:  make(map[int]func(session.Event)),
	}
}

// Rehydrate replaces memory with whatever the store holds.
func (m *SessionManager) Rehydrate(ctx context.Context) error {
	m.opMu.Lock()
	snap, err := m.store.Read(ctx)
	if err != nil {
		m.opMu.Unlock()
		return errors.Wrap(err, "failed to rehydrate session")
	}
	snap.IsAuthenticated = snap.AccessToken() != ""
	if !snap.IsAuthenticated && (snap.User != nil || snap.Permissions != nil || snap.RefreshToken != nil) {
		// A profile without a token belongs to no session.
		m.log.Warn("dropping stored profile without a token")
		if err := m.store.Clear(ctx); err != nil {
			m.log.Error("failed to clear orphaned profile", logger.Error(err))
		}
		snap = session.Snapshot{}
	}
	out := m.replace(snap)

	m.log.Debug("session rehydrated",
		logger.Bool("authenticated", out.IsAuthenticated),
		logger.Bool("has_profile", out.User != nil))

	if !out.IsAuthenticated {
		m.opMu.Unlock()
		return nil
	}
	m.publish(session.Event{Kind: session.EventAuthenticated, Snapshot: out})
	return nil
}

// SetAuth records a fresh credential pair. User and permissions are left as they are.
func (m *SessionManager) SetAuth(ctx context.Context, c session.Credential) error {
	if c.AccessToken == "" {
		return errors.ErrInvalidCredential
	}

	// An empty refresh token stays absent.
	var refresh *string
	if c.RefreshToken != "" {
		refresh = session.StringPtr(c.RefreshToken)
	}

	m.opMu.Lock()
	err := m.store.Write(ctx, session.Partial{
		Token:        session.StringPtr(c.AccessToken),
		RefreshToken: refresh,
	})
	if err != nil {
		m.opMu.Unlock()
		return errors.Wrap(err, "failed to persist credentials")
	}

	m.mu.Lock()
	m.snap.Token = session.StringPtr(c.AccessToken)
	if refresh != nil {
		m.snap.RefreshToken = refresh
	}
	m.snap.IsAuthenticated = true
	out := m.snap.Clone()
	m.mu.Unlock()

	m.log.Info("session authenticated", logger.UserID(c.UserID), logger.Role(c.Role))
	m.publish(session.Event{Kind: session.EventAuthenticated, Snapshot: out})
	return nil
}

// SetUserProfile replaces user and permissions together. It fails with
// ErrNotAuthenticated when no token is held.
func (m *SessionManager) SetUserProfile(ctx context.Context, u session.UserProfile, p session.Permissions) error {
	perms := p.Clone()

	m.opMu.Lock()
	m.mu.RLock()
	signedOut := m.snap.Token == nil
	m.mu.RUnlock()
	if signedOut {
		m.opMu.Unlock()
		return errors.ErrNotAuthenticated
	}

	if err := m.store.Write(ctx, session.Partial{User: &u, Permissions: perms}); err != nil {
		m.opMu.Unlock()
		return errors.Wrap(err, "failed to persist profile")
	}

	m.mu.Lock()
	m.snap.User = &u
	m.snap.Permissions = perms
	out := m.snap.Clone()
	m.mu.Unlock()

	m.publish(session.Event{Kind: session.EventProfileLoaded, Snapshot: out})
	return nil
}

// UpdateUser merges patch into the current user. Without a user it does nothing.
func (m *SessionManager) UpdateUser(ctx context.Context, patch session.UserPatch) error {
	m.opMu.Lock()

	m.mu.RLock()
	current := m.snap.User
	m.mu.RUnlock()
	if current == nil {
		m.opMu.Unlock()
		return nil
	}

	updated := patch.Apply(*current)
	if err := m.store.Write(ctx, session.Partial{User: &updated}); err != nil {
		m.opMu.Unlock()
		return errors.Wrap(err, "failed to persist user")
	}

	m.mu.Lock()
	m.snap.User = &updated
	out := m.snap.Clone()
	m.mu.Unlock()

	m.publish(session.Event{Kind: session.EventUserUpdated, Snapshot: out})
	return nil
}

// Logout is the user-initiated sign-out.
func (m *SessionManager) Logout(ctx context.Context) error {
	return m.clear(ctx, session.EventLoggedOut)
}

// ForceLogout is the silent sign-out used when the credential is no longer valid.
func (m *SessionManager) ForceLogout(ctx context.Context) error {
	return m.clear(ctx, session.EventForcedLogout)
}

// clear empties memory even when the store fails, then reports the store error.
func (m *SessionManager) clear(ctx context.Context, kind session.EventKind) error {
	m.opMu.Lock()
	storeErr := m.store.Clear(ctx)
	out := m.replace(session.Snapshot{})

	if storeErr != nil {
		m.log.Error("failed to clear persisted session", logger.Reason(kind.String()), logger.Error(storeErr))
	} else {
		m.log.Info("session cleared", logger.Reason(kind.String()))
	}

	m.publish(session.Event{Kind: kind, Snapshot: out})
	return errors.Wrap(storeErr, "failed to clear credentials")
}

// Snapshot returns a copy of the current state.
func (m *SessionManager) Snapshot() session.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Clone()
}

// Subscribe registers fn for every subsequent event. Callbacks run on the
// mutating goroutine; they must not block or mutate the session.
func (m *SessionManager) Subscribe(fn func(session.Event)) func() {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

func (m *SessionManager) replace(snap session.Snapshot) session.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap.Clone()
	return m.snap.Clone()
}

// publish is called with opMu held and releases it.
func (m *SessionManager) publish(ev session.Event) {
	m.deliverMu.Lock()
	m.opMu.Unlock()
	defer m.deliverMu.Unlock()
	m.notify(ev)
}

func (m *SessionManager) notify(ev session.Event) {
	m.subMu.Lock()
	fns := make([]func(session.Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(session.Event{Kind: ev.Kind, Snapshot: ev.Snapshot.Clone()})
	}
}
