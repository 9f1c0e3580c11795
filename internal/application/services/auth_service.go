package services

import (
	"context"

	"github.com/transport-saas-ms/console/internal/application/dto"
	"github.com/transport-saas-ms/console/internal/domain/session"
	"github.com/transport-saas-ms/console/pkg/errors"
	"github.com/transport-saas-ms/console/pkg/logger"
)

// AuthAPI is the slice of the remote API the auth flows call.
type AuthAPI interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Register(ctx context.Context, req dto.RegisterRequest) (*dto.LoginResponse, error)
	ChangePassword(ctx context.Context, userID string, req dto.ChangePasswordRequest) error
}

// LoginResult tells the caller where to go next. ProfileErr is set when the
// credential was accepted but the profile could not be loaded.
type LoginResult struct {
	Destination string
	Profile     *session.Profile
	ProfileErr  error
}

// AuthService runs the login, registration, logout and password flows.
type AuthService struct {
	api      AuthAPI
	state    session.State
	profiles *ProfileSync
	paths    Paths
	log      logger.Logger
}

// Paths are the views the flows send the operator to.
type Paths struct {
	Login     string
	Dashboard string
}

func NewAuthService(api AuthAPI, state session.State, profiles *ProfileSync, paths Paths, log logger.Logger) *AuthService {
	if paths.Login == "" {
		paths.Login = "/login"
	}
	if paths.Dashboard == "" {
		paths.Dashboard = "/dashboard"
	}
	if log == nil {
		log = logger.Default()
	}
	return &AuthService{
		api:      api,
		state:    state,
		profiles: profiles,
		paths:    paths,
		log:      log.With(logger.Component("auth")),
	}
}

// Login exchanges credentials, stores them, then loads the profile. A
// profile failure does not fail the login: the operator still lands on the
// dashboard with permissions absent.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*LoginResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := s.api.Login(ctx, req)
	if err != nil {
		return nil, err
	}

	err = s.state.SetAuth(ctx, session.Credential{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		UserID:       resp.UserID,
		Role:         resp.Role,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to store session")
	}

	result := &LoginResult{Destination: s.paths.Dashboard}

	profile, err := s.profiles.Sync(ctx)
	if err != nil {
		s.log.Warn("signed in without profile", logger.UserID(resp.UserID), logger.Error(err))
		result.ProfileErr = err
		return result, nil
	}

	result.Profile = profile
	return result, nil
}

// Register creates the account. The server's tokens are not kept: the
// operator signs in explicitly afterwards.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if _, err := s.api.Register(ctx, req); err != nil {
		return "", err
	}
	s.log.Info("account registered")
	return s.paths.Login, nil
}

// Logout signs out locally. There is no server call to fail.
func (s *AuthService) Logout(ctx context.Context) (string, error) {
	if err := s.state.Logout(ctx); err != nil {
		return s.paths.Login, err
	}
	return s.paths.Login, nil
}

// ChangePassword changes the signed-in user's own password. A wrong current
// password comes back as a validation error and leaves the session intact.
func (s *AuthService) ChangePassword(ctx context.Context, req dto.ChangePasswordRequest) error {
	snap := s.state.Snapshot()
	if !snap.IsAuthenticated || snap.User == nil {
		return errors.ErrNotAuthenticated
	}
	if err := req.Validate(); err != nil {
		return err
	}

	err := s.api.ChangePassword(ctx, snap.User.ID, req)
	if err == nil {
		return nil
	}

	if apiErr, ok := errors.AsAPIError(err); ok && apiErr.IsCurrentPasswordIncorrect() {
		verrs := &errors.ValidationErrors{}
		verrs.Add("currentPassword", apiErr.Message)
		return verrs
	}
	return err
}
