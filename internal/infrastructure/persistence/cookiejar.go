package persistence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "github.com/transport-saas-ms/console/pkg/errors"
	"github.com/transport-saas-ms/console/pkg/logger"
)

const cookieJarKey = "cookies"

// CookieJar is an http.CookieJar persisted through a KV so cookies survive
// restarts. It keeps host-only cookies, which is all the console needs for
// talking to a single API origin.
type CookieJar struct {
	kv  KV
	now func() time.Time
	log logger.Logger

	mu sync.Mutex
}

type storedCookie struct {
	Host     string    `json:"host"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

// NewCookieJar creates a jar over kv. A nil clock uses time.Now.
func NewCookieJar(kv KV, now func() time.Time, log logger.Logger) *CookieJar {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Default()
	}
	return &CookieJar{kv: kv, now: now, log: log.With(logger.Component("cookiejar"))}
}

// SetCookies implements http.CookieJar. A cookie with MaxAge < 0 or an
// Expires in the past deletes the stored cookie of the same name.
func (j *CookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if u == nil || len(cookies) == 0 {
		return
	}
	ctx := context.Background()

	j.mu.Lock()
	defer j.mu.Unlock()

	stored := j.load(ctx)
	now := j.now()
	host := canonicalHost(u)

	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		stored = removeCookie(stored, host, c.Name, path)

		switch {
		case c.MaxAge < 0:
			continue
		case c.MaxAge > 0:
			c.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero() && !c.Expires.After(now):
			continue
		}

		stored = append(stored, storedCookie{
			Host:     host,
			Name:     c.Name,
			Value:    c.Value,
			Path:     path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}

	j.save(ctx, stored)
}

// Cookies implements http.CookieJar.
func (j *CookieJar) Cookies(u *url.URL) []*http.Cookie {
	if u == nil {
		return nil
	}
	ctx := context.Background()

	j.mu.Lock()
	stored := j.load(ctx)
	j.mu.Unlock()

	now := j.now()
	host := canonicalHost(u)
	path := u.Path
	if path == "" {
		path = "/"
	}

	var out []*http.Cookie
	for _, c := range stored {
		if c.Host != host || !pathMatch(c.Path, path) {
			continue
		}
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		if c.Secure && u.Scheme != "https" {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// Lookup returns the value of the named cookie for u.
func (j *CookieJar) Lookup(u *url.URL, name string) (string, bool) {
	for _, c := range j.Cookies(u) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func (j *CookieJar) load(ctx context.Context) []storedCookie {
	raw, err := j.kv.Get(ctx, cookieJarKey)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrKeyNotFound) {
			j.log.Warn("failed to read cookies", logger.Error(err))
		}
		return nil
	}

	var stored []storedCookie
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		j.log.Warn("discarding unreadable cookie jar", logger.Error(err))
		return nil
	}
	return stored
}

func (j *CookieJar) save(ctx context.Context, stored []storedCookie) {
	now := j.now()
	live := stored[:0]
	for _, c := range stored {
		if c.Expires.IsZero() || c.Expires.After(now) {
			live = append(live, c)
		}
	}

	if len(live) == 0 {
		if err := j.kv.Delete(ctx, cookieJarKey); err != nil {
			j.log.Warn("failed to delete cookies", logger.Error(err))
		}
		return
	}

	data, err := json.Marshal(live)
	if err != nil {
		j.log.Error("failed to marshal cookies", logger.Error(err))
		return
	}
	if err := j.kv.Set(ctx, cookieJarKey, string(data)); err != nil {
		j.log.Warn("failed to persist cookies", logger.Error(err))
	}
}

func removeCookie(stored []storedCookie, host, name, path string) []storedCookie {
	out := stored[:0]
	for _, c := range stored {
		if c.Host == host && c.Name == name && c.Path == path {
			continue
		}
		out = append(out, c)
	}
	return out
}

func canonicalHost(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}

func pathMatch(cookiePath, requestPath string) bool {
	if cookiePath == "/" || cookiePath == requestPath {
		return true
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || requestPath[len(cookiePath)] == '/'
}
