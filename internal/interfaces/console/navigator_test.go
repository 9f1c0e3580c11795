package console

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transport-saas-ms/console/internal/application/services"
	"github.com/transport-saas-ms/console/internal/domain/session"
	"github.com/transport-saas-ms/console/pkg/logger"
)

func TestNavigator_SignedOut(t *testing.T) {
	h := newHarness(t, "/")

	assert.Equal(t, "/login", h.nav.Location())
	assert.Equal(t, "/register", h.nav.Navigate("/register"))
	// The coarse gate does not protect application routes.
	assert.Equal(t, "/trips", h.nav.Navigate("/trips"))
	assert.Equal(t, "/login", h.nav.Navigate("/"))
}

func TestNavigator_SignedInBouncesAuthRoutes(t *testing.T) {
	h := newHarness(t, "/login")
	h.signIn(t, session.RoleDriver, session.CapViewOwnTrips)

	tests := map[string]string{
		"/":                  "/dashboard",
		"/login":             "/dashboard",
		"/login?next=/trips": "/dashboard",
		"/register":          "/dashboard",
		"/trips":             "/trips",
		"/dashboard":         "/dashboard",
	}
	for from, want := range tests {
		assert.Equal(t, want, h.nav.Resolve(from), from)
	}
}

func TestNavigator_CookieGoneAfterLogout(t *testing.T) {
	h := newHarness(t, "/")
	h.signIn(t, session.RoleAdmin)
	require.Equal(t, "/dashboard", h.nav.Navigate("/"))

	require.NoError(t, h.session.Logout(context.Background()))

	_, ok := h.jar.Lookup(h.origin, "auth-token")
	assert.False(t, ok)
	assert.Equal(t, "/login", h.nav.Navigate("/"))
}

func TestNavigator_ExpiryLandsOnLoginWithBanner(t *testing.T) {
	h := newHarness(t, "/")
	h.signIn(t, session.RoleDriver)
	h.nav.Navigate("/trips")
	assert.False(t, h.nav.SessionExpired())

	expirer := services.NewSessionExpirer(h.session, h.nav, "/login", logger.NewNop())
	expirer.Expire(context.Background(), "token expired")

	assert.Equal(t, "/login?message="+services.SessionExpiredMessage, h.nav.Location())
	assert.Equal(t, "/login", h.nav.Path())
	assert.True(t, h.nav.SessionExpired())
	assert.False(t, h.session.Snapshot().IsAuthenticated)

	// A second expiry while already on the login route does not move.
	var moves int
	stop := h.nav.Watch(func(string) { moves++ })
	defer stop()
	expirer.Expire(context.Background(), "token expired")
	assert.Zero(t, moves)
}

func TestNavigator_Watch(t *testing.T) {
	h := newHarness(t, "/login")

	var seen []string
	stop := h.nav.Watch(func(loc string) { seen = append(seen, loc) })

	h.nav.Navigate("/register")
	h.nav.Navigate("/register")
	stop()
	stop()
	h.nav.Navigate("/login")

	assert.Equal(t, []string{"/register"}, seen)
}
