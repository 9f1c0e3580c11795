// Package mockapi is a development stand-in for the transport API. It covers
// the authentication surface the console talks to and nothing else.
package mockapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/transport-saas-ms/console/internal/application/dto"
	"github.com/transport-saas-ms/console/internal/domain/session"
	apperrors "github.com/transport-saas-ms/console/pkg/errors"
	"github.com/transport-saas-ms/console/pkg/jwt"
	"github.com/transport-saas-ms/console/pkg/logger"
)

// Options configures the stand-in.
type Options struct {
	Secret   []byte
	TokenTTL time.Duration
	Now      func() time.Time
	Logger   logger.Logger
	// Seed defaults to DefaultSeed when nil.
	Seed []SeedUser
}

// Server holds the stand-in's state.
type Server struct {
	users  *Directory
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    logger.Logger
}

type claimsKey struct{}

// New builds a Server from opts.
func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Seed == nil {
		opts.Seed = DefaultSeed()
	}
	return &Server{
		users:  NewDirectory(opts.Now, opts.Seed...),
		secret: opts.Secret,
		ttl:    opts.TokenTTL,
		now:    opts.Now,
		log:    opts.Logger,
	}
}

// NewRouter is New(opts).Router().
func NewRouter(opts Options) http.Handler {
	return New(opts).Router()
}

// Directory exposes the user base, mostly for tests.
func (s *Server) Directory() *Directory {
	return s.users
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/register", s.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/auth/me", s.handleMe)
		r.Patch("/users/{id}/change-password", s.handleChangePassword)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "Not Found")
	})

	return r
}

// IssueToken mints an access token for u expiring after the configured TTL.
func (s *Server) IssueToken(u session.UserProfile) (string, error) {
	now := s.now()
	return jwt.Sign(jwt.NewClaims(u.ID, u.Email, u.Role, now, now.Add(s.ttl)), s.secret)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info("mock api request",
			logger.Component("mockapi"),
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(ww.Status()),
			logger.Latency(time.Since(start)),
		)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeUnauthorized(w, "Unauthorized")
			return
		}

		claims, err := jwt.Verify(raw, s.secret)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrTokenExpired) {
				writeUnauthorized(w, "Token expired")
				return
			}
			writeUnauthorized(w, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(ctx context.Context) *jwt.Claims {
	c, _ := ctx.Value(claimsKey{}).(*jwt.Claims)
	return c
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, []string{"request body must be valid JSON"})
		return false
	}
	return true
}

func validationMessages(err error) []string {
	var verr *apperrors.ValidationErrors
	if !apperrors.As(err, &verr) {
		return []string{err.Error()}
	}
	out := make([]string, len(verr.Errors))
	for i, e := range verr.Errors {
		out[i] = e.Message
	}
	return out
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeBadRequest(w, validationMessages(err))
		return
	}

	u, ok := s.users.Authenticate(req.Email, req.Password)
	if !ok {
		writeUnauthorized(w, "Invalid credentials")
		return
	}

	token, err := s.IssueToken(u)
	if err != nil {
		s.log.Error("failed to sign token", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	refresh, err := newRefreshToken()
	if err != nil {
		s.log.Error("failed to generate refresh token", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, dto.LoginResponse{
		AccessToken:  token,
		RefreshToken: refresh,
		UserID:       u.ID,
		Role:         u.Role,
		ExpiresIn:    int64(s.ttl / time.Second),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeBadRequest(w, validationMessages(err))
		return
	}

	u, ok := s.users.Register(req.Name, req.Email, req.Password, req.Role)
	if !ok {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}

	writeJSON(w, http.StatusCreated, dto.LoginResponse{UserID: u.ID, Role: u.Role})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	u, ok := s.users.Get(claims.Subject)
	if !ok {
		writeUnauthorized(w, "Unauthorized")
		return
	}
	if u.CompanyID == "" {
		writeForbidden(w, "User is not assigned to a company")
		return
	}

	writeJSON(w, http.StatusOK, session.Profile{User: u, Permissions: Permissions(u)})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	id := chi.URLParam(r, "id")

	self := claims.Subject == id
	if !self && claims.Role != session.RoleAdmin {
		writeForbidden(w, "Forbidden")
		return
	}

	var req dto.ChangePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeBadRequest(w, validationMessages(err))
		return
	}
	if self && req.CurrentPassword == "" {
		writeBadRequest(w, []string{"currentPassword is required"})
		return
	}

	if !self {
		// Admin resets skip the current-password check.
		if !s.users.SetPassword(id, req.NewPassword) {
			writeNotFound(w, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
		return
	}

	found, matched := s.users.ChangePassword(id, req.CurrentPassword, req.NewPassword)
	switch {
	case !found:
		writeNotFound(w, "User not found")
	case !matched:
		writeUnauthorized(w, "Current password is incorrect")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
	}
}
