package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/transport-saas-ms/console/config"
	"github.com/transport-saas-ms/console/internal/domain/access"
	"github.com/transport-saas-ms/console/internal/interfaces/http/handlers"
	"github.com/transport-saas-ms/console/internal/interfaces/http/middleware"
	"github.com/transport-saas-ms/console/pkg/logger"
)

// DevPanelDeps contains dependencies needed by the dev panel.
type DevPanelDeps struct {
	Session   handlers.SnapshotSource
	Profiles  handlers.ProfileViewer
	Evaluator access.Evaluator
	Storage   map[string]handlers.HealthChecker
	// Logs is optional; /debug/logs is served only when set.
	Logs   handlers.LogQuerier
	Logger logger.Logger
}

// DevPanel is the local inspection surface. In production it is inert: no
// engine is built and nothing listens.
type DevPanel struct {
	engine *gin.Engine
	addr   string
	log    logger.Logger
}

// NewDevPanel builds the panel. Outside production it serves
// GET /debug/permissions, /debug/health, /debug/live and, with a log store,
// /debug/logs.
func NewDevPanel(cfg *config.Config, deps *DevPanelDeps) *DevPanel {
	if cfg.App.IsProduction() {
		return &DevPanel{}
	}

	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.GinRequestLogger(log))

	permissionsHandler := handlers.NewPermissionsHandler(deps.Session, deps.Profiles, deps.Evaluator)
	healthHandler := handlers.NewHealthHandler(deps.Storage)

	debug := engine.Group("/debug")
	{
		debug.GET("/permissions", permissionsHandler.Permissions)
		debug.GET("/health", healthHandler.Health)
		debug.GET("/live", healthHandler.Live)
		if deps.Logs != nil {
			debug.GET("/logs", handlers.NewLogsHandler(deps.Logs).Logs)
		}
	}

	return &DevPanel{
		engine: engine,
		addr:   cfg.App.DevPanelAddr,
		log:    log.With(logger.Component("devpanel")),
	}
}

// Enabled reports whether the panel serves anything.
func (p *DevPanel) Enabled() bool {
	return p.engine != nil
}

// Handler returns the HTTP handler, or nil in production.
func (p *DevPanel) Handler() http.Handler {
	if p.engine == nil {
		return nil
	}
	return p.engine
}

// ListenAndServe serves until ctx is done. An inert panel returns at once.
func (p *DevPanel) ListenAndServe(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}

	srv := &http.Server{
		Addr:              p.addr,
		Handler:           p.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		p.log.Info("dev panel listening", logger.String("addr", p.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
