package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Domain errors
var (
	// Credential errors
	ErrInvalidCredential = errors.New("invalid credential")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenInvalid      = errors.New("token invalid")
	ErrNotAuthenticated  = errors.New("not authenticated")

	// Authorization errors
	ErrAwaitingAssignment = errors.New("user is awaiting company assignment")

	// Storage errors
	ErrKeyNotFound = errors.New("key not found")

	// General errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")
)

// APIError is the typed result of a non-2xx response from the remote API.
// Status discriminates the failure; Messages carries validation details when
// the server answered with a list of messages.
type APIError struct {
	Status   int      `json:"statusCode"`
	Code     string   `json:"error,omitempty"`
	Message  string   `json:"message,omitempty"`
	Messages []string `json:"-"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && len(e.Messages) > 0 {
		msg = strings.Join(e.Messages, "; ")
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, msg)
}

// Unwrap maps the status onto the sentinel errors so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Status == http.StatusForbidden:
		return ErrForbidden
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity:
		return ErrValidation
	case e.Status >= 500:
		return ErrInternal
	}
	return nil
}

// ValidationMessages returns the server's validation messages, if any.
func (e *APIError) ValidationMessages() []string {
	if len(e.Messages) > 0 {
		return e.Messages
	}
	if e.Message != "" {
		return []string{e.Message}
	}
	return nil
}

// IsCurrentPasswordIncorrect reports whether the error is the recoverable
// "current password incorrect" answer of a self-service password change.
func (e *APIError) IsCurrentPasswordIncorrect() bool {
	if e.Status != http.StatusUnauthorized {
		return false
	}
	return IsCurrentPasswordMessage(e.Message)
}

// IsCurrentPasswordMessage matches the server's "current password incorrect" wording.
func IsCurrentPasswordMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "current password") &&
		(strings.Contains(m, "incorrect") || strings.Contains(m, "invalid"))
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized reports a 401 answer.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden reports a 403 answer.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsValidation reports a 400/422 answer.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (e *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d errors", len(e.Errors))
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationErrors) Unwrap() error {
	return ErrValidation
}

// Add appends a validation error.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// OrNil returns e when it holds errors and nil otherwise.
func (e *ValidationErrors) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New wraps errors.New for convenience.
func New(text string) error {
	return errors.New(text)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
