package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/transport-saas-ms/console/internal/application/dto"
	"github.com/transport-saas-ms/console/internal/domain/session"
	"github.com/transport-saas-ms/console/internal/infrastructure/persistence"
	"github.com/transport-saas-ms/console/internal/infrastructure/persistence/memory"
	"github.com/transport-saas-ms/console/pkg/jwt"
	"github.com/transport-saas-ms/console/pkg/logger"
)

var testSecret = []byte("test-secret")

func tokenExpiringAt(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.Sign(jwt.NewClaims("user-1", "ops@example.test", session.RoleDriver, exp.Add(-time.Hour), exp), testSecret)
	require.NoError(t, err)
	return tok
}

func newTestStore() (*persistence.CredentialStore, *memory.KV) {
	kv := memory.NewKV()
	return persistence.NewCredentialStore(kv, persistence.CookieOptions{}, logger.NewNop()), kv
}

// flakyStore fails writes or clears on demand.
type flakyStore struct {
	session.CredentialStore
	failWrite atomic.Bool
	failClear atomic.Bool
}

var errStoreDown = errors.New("storage unavailable")

func (f *flakyStore) Write(ctx context.Context, p session.Partial) error {
	if f.failWrite.Load() {
		return errStoreDown
	}
	return f.CredentialStore.Write(ctx, p)
}

func (f *flakyStore) Clear(ctx context.Context) error {
	if f.failClear.Load() {
		return errStoreDown
	}
	return f.CredentialStore.Clear(ctx)
}

type fakeNavigator struct {
	mu        sync.Mutex
	location  string
	redirects []string
}

func newFakeNavigator(location string) *fakeNavigator {
	return &fakeNavigator{location: location}
}

func (n *fakeNavigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

func (n *fakeNavigator) Redirect(to string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.location = to
	n.redirects = append(n.redirects, to)
}

func (n *fakeNavigator) Redirects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.redirects...)
}

type testClock struct {
	nanos atomic.Int64
}

func newTestClock(t time.Time) *testClock {
	c := &testClock{}
	c.nanos.Store(t.UnixNano())
	return c
}

func (c *testClock) Now() time.Time {
	return time.Unix(0, c.nanos.Load())
}

func (c *testClock) Advance(d time.Duration) {
	c.nanos.Add(int64(d))
}

// fakeAPI implements AuthAPI and ProfileFetcher with overridable funcs.
type fakeAPI struct {
	LoginFunc          func(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	RegisterFunc       func(ctx context.Context, req dto.RegisterRequest) (*dto.LoginResponse, error)
	ChangePasswordFunc func(ctx context.Context, userID string, req dto.ChangePasswordRequest) error
	MeFunc             func(ctx context.Context) (*session.Profile, error)

	meCalls atomic.Int32
}

func (f *fakeAPI) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	return f.LoginFunc(ctx, req)
}

func (f *fakeAPI) Register(ctx context.Context, req dto.RegisterRequest) (*dto.LoginResponse, error) {
	return f.RegisterFunc(ctx, req)
}

func (f *fakeAPI) ChangePassword(ctx context.Context, userID string, req dto.ChangePasswordRequest) error {
	return f.ChangePasswordFunc(ctx, userID, req)
}

func (f *fakeAPI) Me(ctx context.Context) (*session.Profile, error) {
	f.meCalls.Add(1)
	return f.MeFunc(ctx)
}

func driverProfile() *session.Profile {
	return &session.Profile{
		User: session.UserProfile{
			ID:        "user-1",
			Email:     "ops@example.test",
			Name:      "Dana Driver",
			Role:      session.RoleDriver,
			CompanyID: "c-1",
			Company:   session.Company{ID: "c-1", Name: "Acme Haulage"},
			IsActive:  true,
		},
		Permissions: session.Permissions{
			Role:         session.RoleDriver,
			Capabilities: []string{session.CapViewOwnTrips, session.CapCreateExpense},
		},
	}
}

// eventRecorder collects session events.
type eventRecorder struct {
	mu     sync.Mutex
	events []session.Event
}

func (r *eventRecorder) record(ev session.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) kinds() []session.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *eventRecorder) count(kind session.EventKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}
