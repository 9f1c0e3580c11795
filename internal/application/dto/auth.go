package dto

import (
	"strings"

	"github.com/transport-saas-ms/console/internal/domain/session"
	apperrors "github.com/transport-saas-ms/console/pkg/errors"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the credential pair returned by login and register.
type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	Role         string `json:"role"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// ChangePasswordRequest is the body of PATCH /users/{id}/change-password.
type ChangePasswordRequest struct {
	NewPassword     string `json:"newPassword"`
	CurrentPassword string `json:"currentPassword,omitempty"`
}

// Validate checks the fields the server would reject anyway, so the
// console can report them without a round trip.
func (r *LoginRequest) Validate() error {
	errs := &apperrors.ValidationErrors{}
	if r.Email == "" {
		errs.Add("email", "email is required")
	}
	if r.Password == "" {
		errs.Add("password", "password is required")
	}
	return errs.OrNil()
}

func (r *RegisterRequest) Validate() error {
	errs := &apperrors.ValidationErrors{}
	if r.Name == "" {
		errs.Add("name", "name is required")
	}
	if r.Email == "" {
		errs.Add("email", "email is required")
	}
	if len(r.Password) < 6 {
		errs.Add("password", "password must be at least 6 characters")
	}
	switch {
	case r.Role == "":
		errs.Add("role", "role is required")
	case !session.IsKnownRole(r.Role):
		errs.Add("role", "role must be one of "+strings.Join(session.Roles, ", "))
	}
	return errs.OrNil()
}

func (r *ChangePasswordRequest) Validate() error {
	errs := &apperrors.ValidationErrors{}
	if len(r.NewPassword) < 8 {
		errs.Add("newPassword", "new password must be at least 8 characters")
	}
	return errs.OrNil()
}
