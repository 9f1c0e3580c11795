package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/transport-saas-ms/console/config"
	"github.com/transport-saas-ms/console/internal/application"
	"github.com/transport-saas-ms/console/internal/application/services"
	"github.com/transport-saas-ms/console/internal/infrastructure/persistence"
	"github.com/transport-saas-ms/console/internal/interfaces/console"
	apphttp "github.com/transport-saas-ms/console/internal/interfaces/http"
	"github.com/transport-saas-ms/console/internal/interfaces/http/handlers"
	"github.com/transport-saas-ms/console/pkg/logger"
)

// app is one console process: one session, one store, one gateway.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	logOut  io.Closer
	logDB   *logger.SQLiteWriter
	backend *persistence.Backend
	jar     *persistence.CookieJar
	nav     *console.Navigator
	client  *apphttp.Client
	svcs    *application.Services
}

// lateExpirer lets the gateway reach the session expirer, which can only be
// built once the API client behind the gateway exists.
type lateExpirer struct {
	mu sync.RWMutex
	e  *services.SessionExpirer
}

func (l *lateExpirer) set(e *services.SessionExpirer) {
	l.mu.Lock()
	l.e = e
	l.mu.Unlock()
}

func (l *lateExpirer) Expire(ctx context.Context, reason string) {
	l.mu.RLock()
	e := l.e
	l.mu.RUnlock()
	if e != nil {
		e.Expire(ctx, reason)
	}
}

func newApp(ctx context.Context, cfg *config.Config, interactive bool) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.Logging.SQLitePath != "" {
		w, err := logger.NewSQLiteWriter(cfg.Logging.SQLitePath, logger.WriterOptions{
			RetentionDays: cfg.Logging.RetentionDays,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open log store: %w", err)
		}
		a.logDB = w
	}

	log, out, err := initLogger(cfg, interactive, a.logDB)
	if err != nil {
		if a.logDB != nil {
			a.logDB.Close()
		}
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.log, a.logOut = log, out
	logger.SetDefault(log)

	if err := a.initInfrastructure(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initServices(); err != nil {
		a.Close()
		return nil, err
	}

	if err := a.svcs.Session.Rehydrate(ctx); err != nil {
		a.log.Warn("failed to restore session", logger.Component("main"), logger.Error(err))
	}
	return a, nil
}

func initLogger(cfg *config.Config, interactive bool, store *logger.SQLiteWriter) (logger.Logger, io.Closer, error) {
	logCfg := logger.Config{
		Level:       cfg.Logging.Level,
		Environment: cfg.App.Environment,
		Output:      os.Stderr,
	}
	if store != nil {
		logCfg.Writer = store
	}

	path := cfg.Logging.File
	if path == "" && interactive {
		// The shell owns the terminal.
		path = filepath.Join(filepath.Dir(cfg.Storage.SQLitePath), "console.log")
	}

	var closer io.Closer
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logCfg.Output = f
		closer = f
	}

	log, err := logger.New(logCfg)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, nil, err
	}
	return log, closer, nil
}

func (a *app) initInfrastructure(ctx context.Context) error {
	backend, err := persistence.OpenBackend(ctx, a.cfg)
	if err != nil {
		return err
	}
	a.backend = backend
	a.log.Debug("Storage opened",
		logger.Component("infrastructure"),
		logger.String("driver", backend.Driver),
		logger.String("namespace", a.cfg.Storage.Namespace),
	)

	a.jar = persistence.NewCookieJar(backend.KV, time.Now, a.log)
	return nil
}

func (a *app) initServices() error {
	cfg := a.cfg

	origin, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid API_URL: %w", err)
	}

	store := persistence.NewCredentialStore(a.backend.KV, persistence.CookieOptions{
		Jar:  a.jar,
		URL:  origin,
		Name: cfg.Session.CookieName,
		TTL:  cfg.Session.CookieTTL,
	}, a.log)

	a.nav = console.NewNavigator(console.NavigatorOptions{
		Cookies:    a.jar,
		Origin:     origin,
		CookieName: cfg.Session.CookieName,
		Paths: console.RoutePaths{
			Login:     cfg.Session.LoginPath,
			Dashboard: cfg.Session.DashboardPath,
			Auth:      cfg.Session.AuthPaths,
		},
		Logger: a.log,
	})

	expirer := &lateExpirer{}
	gateway := apphttp.NewGateway(apphttp.GatewayDeps{
		Base:    http.DefaultTransport,
		Tokens:  store,
		Expirer: expirer,
		Logger:  a.log,
	})

	a.client, err = apphttp.NewClient(apphttp.ClientOptions{
		BaseURL:   cfg.API.BaseURL,
		Transport: gateway,
		Jar:       a.jar,
		Timeout:   cfg.API.Timeout,
	})
	if err != nil {
		return err
	}

	a.svcs = application.NewServices(cfg, application.Dependencies{
		Store:     store,
		API:       a.client,
		Navigator: a.nav,
		Logger:    a.log,
	})
	expirer.set(a.svcs.Expirer)
	return nil
}

func (a *app) devPanel() *apphttp.DevPanel {
	deps := &apphttp.DevPanelDeps{
		Session:   a.svcs.Session,
		Profiles:  a.svcs.Profiles,
		Evaluator: a.svcs.Evaluator,
		Storage:   map[string]handlers.HealthChecker{a.backend.Driver: a.backend},
		Logger:    a.log,
	}
	if a.logDB != nil {
		deps.Logs = a.logDB
	}
	return apphttp.NewDevPanel(a.cfg, deps)
}

func (a *app) shell(ctx context.Context) *console.Shell {
	return console.NewShell(ctx, console.ShellDeps{
		Session:    a.svcs.Session,
		Profiles:   a.svcs.Profiles,
		Auth:       a.svcs.Auth,
		Navigator:  a.nav,
		Evaluator:  a.svcs.Evaluator,
		Production: a.cfg.App.IsProduction(),
		Logger:     a.log,
	})
}

func (a *app) Close() {
	if a.svcs != nil {
		a.svcs.Monitor.Stop()
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.log.Warn("failed to close storage", logger.Error(err))
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	if a.logDB != nil {
		a.logDB.Close()
	}
	if a.logOut != nil {
		a.logOut.Close()
	}
}
