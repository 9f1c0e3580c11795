package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_StatusMapsToSentinels(t *testing.T) {
	tests := []struct {
		status int
		target error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadRequest, ErrValidation},
		{http.StatusUnprocessableEntity, ErrValidation},
		{http.StatusBadGateway, ErrInternal},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := fmt.Errorf("calling api: %w", &APIError{Status: tt.status})
			assert.ErrorIs(t, err, tt.target)
		})
	}

	assert.False(t, IsUnauthorized(&APIError{Status: http.StatusConflict}))
}

func TestAPIError_Message(t *testing.T) {
	assert.Equal(t, "api error 401: Invalid credentials", (&APIError{Status: 401, Message: "Invalid credentials"}).Error())
	assert.Equal(t, "api error 400: a; b", (&APIError{Status: 400, Messages: []string{"a", "b"}}).Error())
	assert.Equal(t, "api error 500: Internal Server Error", (&APIError{Status: 500}).Error())

	assert.Equal(t, []string{"a", "b"}, (&APIError{Messages: []string{"a", "b"}, Message: "a; b"}).ValidationMessages())
	assert.Equal(t, []string{"only"}, (&APIError{Message: "only"}).ValidationMessages())
}

func TestIsCurrentPasswordMessage(t *testing.T) {
	assert.True(t, IsCurrentPasswordMessage("Current password is incorrect"))
	assert.True(t, IsCurrentPasswordMessage("the CURRENT PASSWORD provided is invalid"))
	assert.False(t, IsCurrentPasswordMessage("Invalid token"))
	assert.False(t, IsCurrentPasswordMessage("current password required"))

	assert.True(t, (&APIError{Status: 401, Message: "Current password is incorrect"}).IsCurrentPasswordIncorrect())
	assert.False(t, (&APIError{Status: 400, Message: "Current password is incorrect"}).IsCurrentPasswordIncorrect())
}

func TestValidationErrors(t *testing.T) {
	errs := &ValidationErrors{}
	assert.NoError(t, errs.OrNil())

	errs.Add("email", "email is required")
	err := errs.OrNil()

	assert.Error(t, err)
	assert.True(t, IsValidation(err))
	var verr *ValidationErrors
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, "email", verr.Errors[0].Field)
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ignored"))

	err := Wrap(ErrKeyNotFound, "reading auth-token")
	assert.EqualError(t, err, "reading auth-token: key not found")
	assert.True(t, Is(err, ErrKeyNotFound))
}
