package services

import (
	"context"
	"sync"
	"time"

	"github.com/transport-saas-ms/console/internal/domain/session"
	"github.com/transport-saas-ms/console/pkg/errors"
	"github.com/transport-saas-ms/console/pkg/logger"
)

// ErrProfileSuperseded is returned when the session changed while a profile
// fetch was in flight; the fetched profile is dropped.
var ErrProfileSuperseded = errors.New("profile superseded by a newer session")

// ProfileFetcher loads the signed-in user's profile from the API.
type ProfileFetcher interface {
	Me(ctx context.Context) (*session.Profile, error)
}

// ProfileView is the derived, read-only view of the current permissions.
type ProfileView struct {
	Permissions        *session.Permissions
	IsAdmin            bool
	IsAccountant       bool
	IsDriver           bool
	AwaitingAssignment bool
}

// ProfileSync reconciles the server's profile into the session.
type ProfileSync struct {
	api         ProfileFetcher
	state       session.State
	adminRole   string
	minimalRole string
	staleAfter  time.Duration
	now         func() time.Time
	log         logger.Logger

	mu        sync.Mutex
	syncedAt  time.Time
	syncedFor string
	// forbiddenFor is the token for which /auth/me answered 403.
	forbiddenFor string
}

// ProfileSyncConfig holds ProfileSync settings.
type ProfileSyncConfig struct {
	AdminRole   string
	MinimalRole string
	StaleAfter  time.Duration
	Now         func() time.Time
}

func NewProfileSync(api ProfileFetcher, state session.State, cfg ProfileSyncConfig, log logger.Logger) *ProfileSync {
	if cfg.AdminRole == "" {
		cfg.AdminRole = session.RoleAdmin
	}
	if cfg.MinimalRole == "" {
		cfg.MinimalRole = session.RoleUser
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logger.Default()
	}
	return &ProfileSync{
		api:         api,
		state:       state,
		adminRole:   cfg.AdminRole,
		minimalRole: cfg.MinimalRole,
		staleAfter:  cfg.StaleAfter,
		now:         cfg.Now,
		log:         log.With(logger.Component("profile_sync")),
	}
}

// Sync fetches the profile and stores it in the session. A 403 means the
// account has no company yet and is reported as ErrAwaitingAssignment
// without touching the session.
func (p *ProfileSync) Sync(ctx context.Context) (*session.Profile, error) {
	token := p.state.Snapshot().AccessToken()
	if token == "" {
		return nil, errors.ErrNotAuthenticated
	}

	profile, err := p.api.Me(ctx)
	if err != nil {
		if errors.IsForbidden(err) {
			p.mu.Lock()
			p.forbiddenFor = token
			p.mu.Unlock()
			p.log.Info("profile unavailable until a company is assigned")
			return nil, errors.ErrAwaitingAssignment
		}
		return nil, errors.Wrap(err, "failed to fetch profile")
	}

	if p.state.Snapshot().AccessToken() != token {
		p.log.Info("discarding profile fetched for a previous session")
		return nil, ErrProfileSuperseded
	}

	if err := p.state.SetUserProfile(ctx, profile.User, profile.Permissions); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.syncedAt = p.now()
	p.syncedFor = token
	p.forbiddenFor = ""
	p.mu.Unlock()

	p.log.Debug("profile synced",
		logger.UserID(profile.User.ID),
		logger.Role(profile.Permissions.Role),
		logger.Int("capabilities", len(profile.Permissions.Capabilities)))
	return profile, nil
}

// SyncIfStale returns the stored profile when it was synced for the current
// token within the staleness window, and fetches otherwise.
func (p *ProfileSync) SyncIfStale(ctx context.Context) (*session.Profile, error) {
	snap := p.state.Snapshot()

	p.mu.Lock()
	fresh := snap.AccessToken() != "" &&
		p.syncedFor == snap.AccessToken() &&
		p.now().Sub(p.syncedAt) < p.staleAfter
	p.mu.Unlock()

	if fresh && snap.User != nil && snap.Permissions != nil {
		return &session.Profile{User: *snap.User, Permissions: *snap.Permissions}, nil
	}
	return p.Sync(ctx)
}

// Current derives the view from the session's permissions.
func (p *ProfileSync) Current() ProfileView {
	snap := p.state.Snapshot()
	perms := snap.Permissions

	p.mu.Lock()
	forbidden := p.forbiddenFor != "" && p.forbiddenFor == snap.AccessToken()
	p.mu.Unlock()

	view := ProfileView{Permissions: perms, AwaitingAssignment: forbidden}
	if perms == nil {
		return view
	}

	view.IsAdmin = perms.Role == p.adminRole
	view.IsAccountant = perms.Role == session.RoleAccountant
	view.IsDriver = perms.Role == session.RoleDriver
	if perms.Role == p.minimalRole && len(perms.Capabilities) == 0 {
		view.AwaitingAssignment = true
	}
	return view
}
