package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"

	apperrors "github.com/transport-saas-ms/console/pkg/errors"
	"github.com/transport-saas-ms/console/pkg/logger"
)

// TokenSource yields the current access token.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, bool, error)
}

// SessionExpirer tears down the session after the server rejected it.
type SessionExpirer interface {
	Expire(ctx context.Context, reason string)
}

// Bearer attaches "Authorization: Bearer <token>" read at send time, so a
// token written between two requests is picked up by the second one.
func Bearer(tokens TokenSource, l logger.Logger) Middleware {
	return PreSend(func(req *http.Request) error {
		if req.Header.Get("Authorization") != "" {
			return nil
		}
		tok, ok, err := tokens.AccessToken(req.Context())
		if err != nil {
			// Send anonymously; the server answers 401 and the guard clears up.
			l.Warn("failed to read access token", logger.Path(req.URL.Path), logger.Error(err))
			return nil
		}
		if ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		return nil
	})
}

// changePasswordPath matches on the suffix so an API mounted under a path
// prefix (API_URL=http://host/api) is still recognized.
var changePasswordPath = regexp.MustCompile(`/users/[^/]+/change-password/?$`)

// SessionGuard expires the session on any 401 except a self-service
// password change rejected for a wrong current password. 403 and success
// pass through untouched.
func SessionGuard(expirer SessionExpirer, l logger.Logger) Middleware {
	l = l.With(logger.Component("session_guard"))
	return PostReceive(func(req *http.Request, resp *http.Response) {
		if resp.StatusCode != http.StatusUnauthorized {
			return
		}
		if isCurrentPasswordRejection(req, resp) {
			l.Debug("password change rejected, keeping session", logger.Path(req.URL.Path))
			return
		}
		expirer.Expire(context.WithoutCancel(req.Context()), "server rejected credential")
	})
}

func isCurrentPasswordRejection(req *http.Request, resp *http.Response) bool {
	if req.Method != http.MethodPatch || !changePasswordPath.MatchString(req.URL.Path) {
		return false
	}

	body := rebuffer(resp)
	var payload struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}

	var msg string
	if err := json.Unmarshal(payload.Message, &msg); err == nil {
		return apperrors.IsCurrentPasswordMessage(msg)
	}
	var msgs []string
	if err := json.Unmarshal(payload.Message, &msgs); err == nil {
		for _, m := range msgs {
			if apperrors.IsCurrentPasswordMessage(m) {
				return true
			}
		}
	}
	return false
}

// rebuffer reads the body and replaces it so the caller can read it again.
func rebuffer(resp *http.Response) []byte {
	if resp.Body == nil {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return body
}
