package console

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transport-saas-ms/console/internal/application/services"
	"github.com/transport-saas-ms/console/internal/domain/access"
	"github.com/transport-saas-ms/console/internal/domain/session"
	apperrors "github.com/transport-saas-ms/console/pkg/errors"
	"github.com/transport-saas-ms/console/pkg/logger"
)

func newTestShell(t *testing.T, h *harness, profiles *fakeProfiles, production bool) (*Shell, *fakeLogout) {
	t.Helper()
	auth := &fakeLogout{state: h.session}
	s := NewShell(context.Background(), ShellDeps{
		Session:    h.session,
		Profiles:   profiles,
		Auth:       auth,
		Navigator:  h.nav,
		Evaluator:  access.NewEvaluator(session.RoleAdmin),
		Production: production,
		Logger:     logger.NewNop(),
	})
	t.Cleanup(s.Close)
	return s, auth
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func press(s *Shell, k string) tea.Cmd {
	_, cmd := s.Update(key(k))
	return cmd
}

func TestShell_SignedOutShowsExpiryBanner(t *testing.T) {
	h := newHarness(t, "/login?message=session-expired")
	s, _ := newTestShell(t, h, &fakeProfiles{}, false)

	view := s.View()
	assert.Contains(t, view, "Your session has expired")
	assert.Contains(t, view, "signed out")

	h.nav.Navigate("/login")
	assert.NotContains(t, s.View(), "Your session has expired")
}

func TestShell_DiagnosticsKey(t *testing.T) {
	h := newHarness(t, "/")
	h.signIn(t, session.RoleDriver, session.CapViewOwnTrips)

	t.Run("development", func(t *testing.T) {
		s, _ := newTestShell(t, h, &fakeProfiles{}, false)
		assert.NotContains(t, s.View(), "restrictions:")

		press(s, "?")
		assert.Contains(t, s.View(), "restrictions:")
		assert.Contains(t, s.View(), "ADMIN only")

		press(s, "?")
		assert.NotContains(t, s.View(), "restrictions:")
	})

	t.Run("production", func(t *testing.T) {
		s, _ := newTestShell(t, h, &fakeProfiles{}, true)

		press(s, "?")
		assert.NotContains(t, s.View(), "restrictions:")
	})
}

func TestShell_TabsFollowPermissions(t *testing.T) {
	h := newHarness(t, "/")
	h.signIn(t, session.RoleDriver, session.CapViewOwnTrips, session.CapCreateExpense)
	s, _ := newTestShell(t, h, &fakeProfiles{view: services.ProfileView{IsDriver: true}}, false)

	assert.Equal(t, []int{0, 1, 2}, s.visible())

	press(s, "tab")
	assert.Equal(t, "/trips", h.nav.Location())
	assert.Contains(t, s.View(), session.CapViewOwnTrips)

	press(s, "4")
	assert.Equal(t, "/users", h.nav.Location())
	assert.Contains(t, s.View(), "Access denied")
}

func TestShell_AwaitingAssignment(t *testing.T) {
	h := newHarness(t, "/")
	h.signIn(t, session.RoleUser)

	t.Run("from profile view", func(t *testing.T) {
		s, _ := newTestShell(t, h, &fakeProfiles{view: services.ProfileView{AwaitingAssignment: true}}, false)
		assert.Contains(t, s.View(), "Awaiting company assignment")
	})

	t.Run("from forbidden profile fetch", func(t *testing.T) {
		s, _ := newTestShell(t, h, &fakeProfiles{}, false)
		s.Update(profileMsg{err: apperrors.ErrAwaitingAssignment})
		assert.Contains(t, s.View(), "Awaiting company assignment")
	})
}

func TestShell_LogoutNoticeOnlyForOperatorLogout(t *testing.T) {
	h := newHarness(t, "/")
	h.signIn(t, session.RoleAdmin)
	s, auth := newTestShell(t, h, &fakeProfiles{}, false)

	cmd := press(s, "L")
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, 1, auth.calls)

	s.Update(msg)
	s.Update(sessionEventMsg{event: session.Event{Kind: session.EventLoggedOut}})
	assert.Equal(t, "/login", h.nav.Location())
	assert.Contains(t, s.View(), "You have been signed out")

	h.signIn(t, session.RoleAdmin)
	s.Update(sessionEventMsg{event: session.Event{Kind: session.EventAuthenticated}})
	assert.NotContains(t, s.View(), "You have been signed out")

	require.NoError(t, h.session.ForceLogout(context.Background()))
	s.Update(sessionEventMsg{event: session.Event{Kind: session.EventForcedLogout}})
	assert.NotContains(t, s.View(), "You have been signed out")
}

func TestShell_RefreshKeyForcesSync(t *testing.T) {
	h := newHarness(t, "/")
	h.signIn(t, session.RoleDriver)
	profiles := &fakeProfiles{}
	s, _ := newTestShell(t, h, profiles, false)

	cmd := press(s, "R")
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, 1, profiles.syncs)
	assert.Zero(t, profiles.staleRuns)
}

func TestShell_QuitKey(t *testing.T) {
	h := newHarness(t, "/")
	s, _ := newTestShell(t, h, &fakeProfiles{}, false)

	cmd := press(s, "q")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, s.View())
}
