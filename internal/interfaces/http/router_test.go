package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transport-saas-ms/console/config"
	"github.com/transport-saas-ms/console/internal/application/services"
	"github.com/transport-saas-ms/console/internal/domain/access"
	"github.com/transport-saas-ms/console/internal/domain/session"
	"github.com/transport-saas-ms/console/internal/interfaces/http/handlers"
	"github.com/transport-saas-ms/console/pkg/logger"
)

type staticSession struct{ snap session.Snapshot }

func (s staticSession) Snapshot() session.Snapshot { return s.snap }

type staticProfiles struct{ view services.ProfileView }

func (s staticProfiles) Current() services.ProfileView { return s.view }

type checker struct{ err error }

func (c checker) Health(context.Context) error { return c.err }

func driverSnapshot() session.Snapshot {
	tok := "token"
	return session.Snapshot{
		User:  &session.UserProfile{ID: "u-1", Email: "driver@acme.test", Role: session.RoleDriver},
		Token: &tok,
		Permissions: &session.Permissions{
			Role:         session.RoleDriver,
			Capabilities: []string{session.CapViewOwnTrips, session.CapCreateExpense},
			Restrictions: []string{"OWN_TRIPS_ONLY"},
		},
		IsAuthenticated: true,
	}
}

func newTestPanel(env string, storage map[string]handlers.HealthChecker, snap session.Snapshot) *DevPanel {
	cfg := config.Defaults()
	cfg.App.Environment = env
	return NewDevPanel(cfg, &DevPanelDeps{
		Session:   staticSession{snap: snap},
		Profiles:  staticProfiles{view: services.ProfileView{IsDriver: true}},
		Evaluator: access.NewEvaluator(session.RoleAdmin),
		Storage:   storage,
		Logger:    logger.NewNop(),
	})
}

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestDevPanel_InertInProduction(t *testing.T) {
	panel := newTestPanel("production", nil, driverSnapshot())

	assert.False(t, panel.Enabled())
	assert.Nil(t, panel.Handler())
	assert.NoError(t, panel.ListenAndServe(context.Background()))
}

func TestDevPanel_Permissions(t *testing.T) {
	panel := newTestPanel("development", nil, driverSnapshot())
	require.True(t, panel.Enabled())

	rec := serve(t, panel.Handler(), "/debug/permissions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp handlers.PermissionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.Authenticated)
	assert.Equal(t, "u-1", resp.UserID)
	assert.Equal(t, session.RoleDriver, resp.Role)
	assert.True(t, resp.IsDriver)
	assert.Equal(t, []string{"OWN_TRIPS_ONLY"}, resp.Restrictions)

	granted := map[string]bool{}
	for _, d := range resp.Checks {
		granted[d.Name] = d.Granted
	}
	assert.False(t, granted[session.CapViewAllTrips])
	assert.True(t, granted["trips section"])
	assert.True(t, granted["expenses section"])
	assert.False(t, granted["ADMIN only"])
}

func TestDevPanel_PermissionsSignedOut(t *testing.T) {
	panel := newTestPanel("development", nil, session.Snapshot{})

	rec := serve(t, panel.Handler(), "/debug/permissions")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.PermissionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Authenticated)
	assert.Empty(t, resp.Capabilities)
	for _, d := range resp.Checks {
		assert.False(t, d.Granted, d.Name)
	}
}

func TestDevPanel_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		panel := newTestPanel("development", map[string]handlers.HealthChecker{"sqlite": checker{}}, session.Snapshot{})

		rec := serve(t, panel.Handler(), "/debug/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"sqlite":"healthy"`)
	})

	t.Run("unhealthy", func(t *testing.T) {
		panel := newTestPanel("development", map[string]handlers.HealthChecker{
			"sqlite": checker{},
			"redis":  checker{err: errors.New("down")},
		}, session.Snapshot{})

		rec := serve(t, panel.Handler(), "/debug/health")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"redis":"unhealthy"`)
	})

	t.Run("live", func(t *testing.T) {
		panel := newTestPanel("development", nil, session.Snapshot{})

		rec := serve(t, panel.Handler(), "/debug/live")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

type recordedLogs struct {
	entries []logger.LogEntry
	got     logger.QueryFilter
}

func (r *recordedLogs) Query(_ context.Context, f logger.QueryFilter) ([]logger.LogEntry, error) {
	r.got = f
	return r.entries, nil
}

func TestDevPanel_Logs(t *testing.T) {
	cfg := config.Defaults()
	cfg.App.Environment = "development"
	logs := &recordedLogs{entries: []logger.LogEntry{{Level: "warn", Message: "API request", RequestID: "req-9"}}}

	panel := NewDevPanel(cfg, &DevPanelDeps{
		Session:   staticSession{},
		Profiles:  staticProfiles{},
		Evaluator: access.NewEvaluator(session.RoleAdmin),
		Logs:      logs,
		Logger:    logger.NewNop(),
	})

	rec := serve(t, panel.Handler(), "/debug/logs?level=warn&request_id=req-9&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "warn", logs.got.Level)
	assert.Equal(t, "req-9", logs.got.RequestID)
	assert.Equal(t, 5, logs.got.Limit)

	var body struct {
		Entries []logger.LogEntry `json:"entries"`
		Count   int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "req-9", body.Entries[0].RequestID)

	rec = serve(t, panel.Handler(), "/debug/logs?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDevPanel_LogsAbsentWithoutStore(t *testing.T) {
	panel := newTestPanel("development", nil, session.Snapshot{})

	rec := serve(t, panel.Handler(), "/debug/logs")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
