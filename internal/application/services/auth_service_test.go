package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transport-saas-ms/console/internal/application/dto"
	"github.com/transport-saas-ms/console/internal/domain/session"
	apperrors "github.com/transport-saas-ms/console/pkg/errors"
	"github.com/transport-saas-ms/console/pkg/logger"
)

func newAuthFixture(t *testing.T, api *fakeAPI) (*SessionManager, *AuthService) {
	t.Helper()
	store, _ := newTestStore()
	sess := NewSessionManager(store, logger.NewNop())
	profiles := NewProfileSync(api, sess, ProfileSyncConfig{}, logger.NewNop())
	return sess, NewAuthService(api, sess, profiles, Paths{}, logger.NewNop())
}

func okLogin(context.Context, dto.LoginRequest) (*dto.LoginResponse, error) {
	return &dto.LoginResponse{AccessToken: "access", RefreshToken: "refresh", UserID: "user-1", Role: session.RoleDriver}, nil
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	creds := dto.LoginRequest{Email: "ops@example.test", Password: "secret-pass"}

	t.Run("signs in and loads profile", func(t *testing.T) {
		api := &fakeAPI{
			LoginFunc: okLogin,
			MeFunc:    func(context.Context) (*session.Profile, error) { return driverProfile(), nil },
		}
		sess, auth := newAuthFixture(t, api)

		res, err := auth.Login(ctx, creds)
		require.NoError(t, err)
		assert.Equal(t, "/dashboard", res.Destination)
		assert.NoError(t, res.ProfileErr)
		require.NotNil(t, res.Profile)

		snap := sess.Snapshot()
		assert.True(t, snap.IsAuthenticated)
		assert.Equal(t, "access", snap.AccessToken())
		assert.True(t, snap.Permissions.Has(session.CapViewOwnTrips))
	})

	t.Run("profile failure still reaches dashboard", func(t *testing.T) {
		api := &fakeAPI{
			LoginFunc: okLogin,
			MeFunc: func(context.Context) (*session.Profile, error) {
				return nil, &apperrors.APIError{Status: http.StatusBadGateway}
			},
		}
		sess, auth := newAuthFixture(t, api)

		res, err := auth.Login(ctx, creds)
		require.NoError(t, err)
		assert.Equal(t, "/dashboard", res.Destination)
		assert.Error(t, res.ProfileErr)

		snap := sess.Snapshot()
		assert.True(t, snap.IsAuthenticated)
		assert.Nil(t, snap.Permissions)
	})

	t.Run("rejected credentials leave session empty", func(t *testing.T) {
		api := &fakeAPI{
			LoginFunc: func(context.Context, dto.LoginRequest) (*dto.LoginResponse, error) {
				return nil, &apperrors.APIError{Status: http.StatusUnauthorized, Message: "Invalid credentials"}
			},
		}
		sess, auth := newAuthFixture(t, api)

		_, err := auth.Login(ctx, creds)
		assert.True(t, apperrors.IsUnauthorized(err))
		assert.Equal(t, session.Snapshot{}, sess.Snapshot())
	})

	t.Run("local validation", func(t *testing.T) {
		_, auth := newAuthFixture(t, &fakeAPI{})

		_, err := auth.Login(ctx, dto.LoginRequest{})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{
		RegisterFunc: func(context.Context, dto.RegisterRequest) (*dto.LoginResponse, error) {
			return &dto.LoginResponse{AccessToken: "ignored"}, nil
		},
	}
	sess, auth := newAuthFixture(t, api)

	dest, err := auth.Register(ctx, dto.RegisterRequest{Name: "Dana", Email: "d@example.test", Password: "secret", Role: session.RoleDriver})
	require.NoError(t, err)
	assert.Equal(t, "/login", dest)
	assert.False(t, sess.Snapshot().IsAuthenticated)

	_, err = auth.Register(ctx, dto.RegisterRequest{Name: "Dana", Email: "d@example.test", Password: "short", Role: session.RoleDriver})
	var verrs *apperrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "password", verrs.Errors[0].Field)

	_, err = auth.Register(ctx, dto.RegisterRequest{Name: "Dana", Email: "d@example.test", Password: "secret", Role: "OWNER"})
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "role", verrs.Errors[0].Field)
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	sess, auth := newAuthFixture(t, &fakeAPI{})
	require.NoError(t, sess.SetAuth(ctx, session.Credential{AccessToken: "a"}))

	rec := &eventRecorder{}
	sess.Subscribe(rec.record)

	dest, err := auth.Logout(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/login", dest)
	assert.Equal(t, []session.EventKind{session.EventLoggedOut}, rec.kinds())
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	req := dto.ChangePasswordRequest{CurrentPassword: "old-password", NewPassword: "new-password"}

	signedIn := func(t *testing.T, api *fakeAPI) (*SessionManager, *AuthService) {
		sess, auth := newAuthFixture(t, api)
		p := driverProfile()
		require.NoError(t, sess.SetAuth(ctx, session.Credential{AccessToken: "a"}))
		require.NoError(t, sess.SetUserProfile(ctx, p.User, p.Permissions))
		return sess, auth
	}

	t.Run("uses own user id", func(t *testing.T) {
		var gotID string
		api := &fakeAPI{ChangePasswordFunc: func(_ context.Context, id string, _ dto.ChangePasswordRequest) error {
			gotID = id
			return nil
		}}
		_, auth := signedIn(t, api)

		require.NoError(t, auth.ChangePassword(ctx, req))
		assert.Equal(t, "user-1", gotID)
	})

	t.Run("wrong current password is a field error", func(t *testing.T) {
		api := &fakeAPI{ChangePasswordFunc: func(context.Context, string, dto.ChangePasswordRequest) error {
			return &apperrors.APIError{Status: http.StatusUnauthorized, Message: "Current password is incorrect"}
		}}
		sess, auth := signedIn(t, api)

		err := auth.ChangePassword(ctx, req)
		var verrs *apperrors.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Equal(t, "currentPassword", verrs.Errors[0].Field)
		assert.True(t, sess.Snapshot().IsAuthenticated)
	})

	t.Run("requires a signed in user", func(t *testing.T) {
		_, auth := newAuthFixture(t, &fakeAPI{})
		assert.ErrorIs(t, auth.ChangePassword(ctx, req), apperrors.ErrNotAuthenticated)
	})
}
