package application

import (
	"github.com/transport-saas-ms/console/config"
	"github.com/transport-saas-ms/console/internal/application/services"
	"github.com/transport-saas-ms/console/internal/domain/access"
	"github.com/transport-saas-ms/console/internal/domain/session"
	"github.com/transport-saas-ms/console/pkg/logger"
)

// API is everything the services need from the remote API client.
type API interface {
	services.AuthAPI
	services.ProfileFetcher
}

// Services holds all application services.
type Services struct {
	Session   *services.SessionManager
	Expirer   *services.SessionExpirer
	Monitor   *services.ExpiryMonitor
	Profiles  *services.ProfileSync
	Auth      *services.AuthService
	Evaluator access.Evaluator
}

// Dependencies holds what the services are built from.
type Dependencies struct {
	Store     session.CredentialStore
	API       API
	Navigator services.Navigator
	Logger    logger.Logger
}

// NewServices creates all application services around one session container.
func NewServices(cfg *config.Config, deps Dependencies) *Services {
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}

	sess := services.NewSessionManager(deps.Store, log)
	expirer := services.NewSessionExpirer(sess, deps.Navigator, cfg.Session.LoginPath, log)
	monitor := services.NewExpiryMonitor(sess, expirer, cfg.Session.ExpiryCheckInterval, log)

	profiles := services.NewProfileSync(deps.API, sess, services.ProfileSyncConfig{
		AdminRole:   cfg.Session.AdminRole,
		MinimalRole: cfg.Session.MinimalRole,
		StaleAfter:  cfg.Session.ProfileStaleAfter,
	}, log)

	auth := services.NewAuthService(deps.API, sess, profiles, services.Paths{
		Login:     cfg.Session.LoginPath,
		Dashboard: cfg.Session.DashboardPath,
	}, log)

	evaluator := access.NewEvaluator(cfg.Session.AdminRole)
	if cfg.Session.RequireRoleAndCapability {
		evaluator.Combinator = access.CombineAnd
	}

	return &Services{
		Session:   sess,
		Expirer:   expirer,
		Monitor:   monitor,
		Profiles:  profiles,
		Auth:      auth,
		Evaluator: evaluator,
	}
}
