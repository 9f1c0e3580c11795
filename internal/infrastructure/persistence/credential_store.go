package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/transport-saas-ms/console/internal/domain/session"
	apperrors "github.com/transport-saas-ms/console/pkg/errors"
	"github.com/transport-saas-ms/console/pkg/logger"
)

// Storage keys.
const (
	KeyToken        = "auth-token"
	KeyRefreshToken = "refresh-token"
	KeyUser         = "auth-user"
	KeyPermissions  = "auth-permissions"
	KeyState        = "auth-storage"
)

var allKeys = []string{KeyToken, KeyRefreshToken, KeyUser, KeyPermissions, KeyState}

// CookieOptions controls the mirrored session cookie.
type CookieOptions struct {
	Jar  *CookieJar
	URL  *url.URL
	Name string
	TTL  time.Duration
}

// CredentialStore implements session.CredentialStore on top of a KV.
type CredentialStore struct {
	kv     KV
	cookie CookieOptions
	log    logger.Logger
}

// persistedState is the whole-state record, kept in the layout older
// console builds wrote so their sessions can still be rehydrated.
type persistedState struct {
	State   session.Snapshot `json:"state"`
	Version int              `json:"version"`
}

// NewCredentialStore creates a store. cookie.Jar may be nil, in which case no
// cookie is mirrored.
func NewCredentialStore(kv KV, cookie CookieOptions, log logger.Logger) *CredentialStore {
	if log == nil {
		log = logger.Default()
	}
	if cookie.Name == "" {
		cookie.Name = KeyToken
	}
	if cookie.TTL <= 0 {
		cookie.TTL = 7 * 24 * time.Hour
	}
	return &CredentialStore{
		kv:     kv,
		cookie: cookie,
		log:    log.With(logger.Component("credential_store")),
	}
}

var _ session.CredentialStore = (*CredentialStore)(nil)

// Write stores every present field of p, then rewrites the whole-state record.
func (s *CredentialStore) Write(ctx context.Context, p session.Partial) error {
	if p.Token != nil {
		if err := s.kv.Set(ctx, KeyToken, *p.Token); err != nil {
			return apperrors.Wrap(err, "failed to store access token")
		}
		s.setCookie(*p.Token)
	}
	if p.RefreshToken != nil {
		if err := s.kv.Set(ctx, KeyRefreshToken, *p.RefreshToken); err != nil {
			return apperrors.Wrap(err, "failed to store refresh token")
		}
	}
	if p.User != nil {
		if err := s.setJSON(ctx, KeyUser, p.User); err != nil {
			return apperrors.Wrap(err, "failed to store user")
		}
	}
	if p.Permissions != nil {
		if err := s.setJSON(ctx, KeyPermissions, p.Permissions); err != nil {
			return apperrors.Wrap(err, "failed to store permissions")
		}
	}

	snap, err := s.readKeys(ctx)
	if err != nil {
		return err
	}
	if err := s.setJSON(ctx, KeyState, persistedState{State: snap}); err != nil {
		return apperrors.Wrap(err, "failed to store session state")
	}
	return nil
}

// Read returns whatever is present. Per-key entries win; the whole-state
// record only fills fields that have no per-key entry.
func (s *CredentialStore) Read(ctx context.Context) (session.Snapshot, error) {
	snap, err := s.readKeys(ctx)
	if err != nil {
		return session.Snapshot{}, err
	}

	var whole persistedState
	found, err := s.getJSON(ctx, KeyState, &whole)
	if err != nil {
		return session.Snapshot{}, err
	}
	if found {
		if snap.Token == nil {
			snap.Token = whole.State.Token
		}
		if snap.RefreshToken == nil {
			snap.RefreshToken = whole.State.RefreshToken
		}
		if snap.User == nil {
			snap.User = whole.State.User
		}
		if snap.Permissions == nil {
			snap.Permissions = whole.State.Permissions
		}
	}

	snap.IsAuthenticated = snap.Token != nil && *snap.Token != ""
	return snap, nil
}

// Clear deletes every key and expires the cookie, whether or not anything
// was stored.
func (s *CredentialStore) Clear(ctx context.Context) error {
	s.expireCookie()
	if err := s.kv.Delete(ctx, allKeys...); err != nil {
		return apperrors.Wrap(err, "failed to clear credentials")
	}
	return nil
}

// AccessToken reads only the access token.
func (s *CredentialStore) AccessToken(ctx context.Context) (string, bool, error) {
	tok, err := s.kv.Get(ctx, KeyToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, apperrors.Wrap(err, "failed to read access token")
	}
	return tok, tok != "", nil
}

func (s *CredentialStore) readKeys(ctx context.Context) (session.Snapshot, error) {
	var snap session.Snapshot

	tok, err := s.getString(ctx, KeyToken)
	if err != nil {
		return snap, err
	}
	snap.Token = tok

	refresh, err := s.getString(ctx, KeyRefreshToken)
	if err != nil {
		return snap, err
	}
	snap.RefreshToken = refresh

	var user session.UserProfile
	if found, err := s.getJSON(ctx, KeyUser, &user); err != nil {
		return snap, err
	} else if found {
		snap.User = &user
	}

	var perms session.Permissions
	if found, err := s.getJSON(ctx, KeyPermissions, &perms); err != nil {
		return snap, err
	} else if found {
		snap.Permissions = &perms
	}

	snap.IsAuthenticated = snap.Token != nil && *snap.Token != ""
	return snap, nil
}

func (s *CredentialStore) getString(ctx context.Context, key string) (*string, error) {
	v, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, "failed to read "+key)
	}
	return &v, nil
}

// getJSON decodes key into dst. Corrupt entries are logged and reported as absent.
func (s *CredentialStore) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := s.getString(ctx, key)
	if err != nil || raw == nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(*raw), dst); err != nil {
		s.log.Warn("ignoring unreadable stored value", logger.Key(key), logger.Error(err))
		return false, nil
	}
	return true, nil
}

func (s *CredentialStore) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, string(data))
}

func (s *CredentialStore) setCookie(token string) {
	if s.cookie.Jar == nil || s.cookie.URL == nil {
		return
	}
	s.cookie.Jar.SetCookies(s.cookie.URL, []*http.Cookie{{
		Name:   s.cookie.Name,
		Value:  token,
		Path:   "/",
		MaxAge: int(s.cookie.TTL / time.Second),
	}})
}

func (s *CredentialStore) expireCookie() {
	if s.cookie.Jar == nil || s.cookie.URL == nil {
		return
	}
	s.cookie.Jar.SetCookies(s.cookie.URL, []*http.Cookie{{
		Name:    s.cookie.Name,
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	}})
}
