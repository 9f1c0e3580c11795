package console

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/transport-saas-ms/console/internal/application/services"
	"github.com/transport-saas-ms/console/internal/domain/session"
	"github.com/transport-saas-ms/console/internal/infrastructure/persistence"
	"github.com/transport-saas-ms/console/internal/infrastructure/persistence/memory"
	"github.com/transport-saas-ms/console/pkg/jwt"
	"github.com/transport-saas-ms/console/pkg/logger"
)

type harness struct {
	session *services.SessionManager
	jar     *persistence.CookieJar
	origin  *url.URL
	nav     *Navigator
}

func newHarness(t *testing.T, start string) *harness {
	t.Helper()

	origin, err := url.Parse("http://api.test")
	require.NoError(t, err)

	kv := memory.NewKV()
	jar := persistence.NewCookieJar(kv, time.Now, logger.NewNop())
	store := persistence.NewCredentialStore(kv, persistence.CookieOptions{
		Jar: jar, URL: origin, Name: "auth-token", TTL: time.Hour,
	}, logger.NewNop())

	h := &harness{
		session: services.NewSessionManager(store, logger.NewNop()),
		jar:     jar,
		origin:  origin,
	}
	h.nav = NewNavigator(NavigatorOptions{
		Cookies:    jar,
		Origin:     origin,
		CookieName: "auth-token",
		Paths:      RoutePaths{Login: "/login", Dashboard: "/dashboard", Auth: []string{"/login", "/register"}},
		Start:      start,
		Logger:     logger.NewNop(),
	})
	return h
}

func (h *harness) signIn(t *testing.T, role string, caps ...string) {
	t.Helper()
	ctx := context.Background()

	now := time.Now()
	tok, err := jwt.Sign(jwt.NewClaims("u-1", "ops@acme.test", role, now, now.Add(time.Hour)), []byte("console-test"))
	require.NoError(t, err)

	require.NoError(t, h.session.SetAuth(ctx, session.Credential{AccessToken: tok, UserID: "u-1", Role: role}))
	require.NoError(t, h.session.SetUserProfile(ctx,
		session.UserProfile{ID: "u-1", Name: "Olive Ops", Email: "ops@acme.test", Role: role},
		session.Permissions{Role: role, Capabilities: caps},
	))
}

type fakeProfiles struct {
	mu        sync.Mutex
	view      services.ProfileView
	err       error
	syncs     int
	staleRuns int
}

func (f *fakeProfiles) Sync(context.Context) (*session.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
	return nil, f.err
}

func (f *fakeProfiles) SyncIfStale(context.Context) (*session.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staleRuns++
	return nil, f.err
}

func (f *fakeProfiles) Current() services.ProfileView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

type fakeLogout struct {
	state *services.SessionManager
	calls int
}

func (f *fakeLogout) Logout(ctx context.Context) (string, error) {
	f.calls++
	return "/login", f.state.Logout(ctx)
}
