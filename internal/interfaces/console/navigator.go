package console

import (
	"net/url"
	"strings"
	"sync"

	"github.com/transport-saas-ms/console/internal/application/services"
	"github.com/transport-saas-ms/console/pkg/logger"
)

// CookieLookup reports whether the session cookie is present for a URL.
type CookieLookup interface {
	Lookup(u *url.URL, name string) (string, bool)
}

// RoutePaths are the routes the coarse gate knows about.
type RoutePaths struct {
	Login     string
	Dashboard string
	// Auth routes bounce a signed-in operator to the dashboard.
	Auth []string
}

// NavigatorOptions configures a Navigator.
type NavigatorOptions struct {
	Cookies    CookieLookup
	Origin     *url.URL
	CookieName string
	Paths      RoutePaths
	Start      string
	Logger     logger.Logger
}

// Navigator holds the current location of the console. Every navigation
// passes the route-level gate, which only checks for the session cookie and
// never decodes it.
type Navigator struct {
	mu       sync.RWMutex
	location string
	watchers map[int]func(string)
	nextID   int

	cookies    CookieLookup
	origin     *url.URL
	cookieName string
	paths      RoutePaths
	log        logger.Logger
}

func NewNavigator(opts NavigatorOptions) *Navigator {
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Paths.Login == "" {
		opts.Paths.Login = "/login"
	}
	if opts.Paths.Dashboard == "" {
		opts.Paths.Dashboard = "/dashboard"
	}
	if opts.Start == "" {
		opts.Start = "/"
	}

	n := &Navigator{
		watchers:   make(map[int]func(string)),
		cookies:    opts.Cookies,
		origin:     opts.Origin,
		cookieName: opts.CookieName,
		paths:      opts.Paths,
		log:        opts.Logger.With(logger.Component("navigator")),
	}
	n.location = n.Resolve(opts.Start)
	return n
}

// Location returns the current path and query.
func (n *Navigator) Location() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.location
}

// Path returns the current path without the query.
func (n *Navigator) Path() string {
	p, _ := splitLocation(n.Location())
	return p
}

// Redirect moves to the gated form of to and notifies watchers.
func (n *Navigator) Redirect(to string) {
	n.Navigate(to)
}

// Navigate moves to the gated form of to and returns where it landed.
func (n *Navigator) Navigate(to string) string {
	dest := n.Resolve(to)

	n.mu.Lock()
	changed := dest != n.location
	n.location = dest
	watchers := make([]func(string), 0, len(n.watchers))
	for _, fn := range n.watchers {
		watchers = append(watchers, fn)
	}
	n.mu.Unlock()

	if dest != to {
		n.log.Debug("route gate redirected", logger.String("from", to), logger.String("to", dest))
	}
	if changed {
		for _, fn := range watchers {
			fn(dest)
		}
	}
	return dest
}

// Watch calls fn after every location change.
func (n *Navigator) Watch(fn func(location string)) (stop func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.watchers[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.watchers, id)
			n.mu.Unlock()
		})
	}
}

// Resolve applies the route-level gate to to without moving.
func (n *Navigator) Resolve(to string) string {
	path, _ := splitLocation(to)
	signedIn := n.hasCookie()

	if path == "/" || path == "" {
		if signedIn {
			return n.paths.Dashboard
		}
		return n.paths.Login
	}
	if signedIn && n.isAuthRoute(path) {
		return n.paths.Dashboard
	}
	return to
}

// SessionExpired reports whether the console landed on the login route
// because the session expired.
func (n *Navigator) SessionExpired() bool {
	path, query := splitLocation(n.Location())
	if !strings.HasPrefix(path, n.paths.Login) {
		return false
	}
	return query.Get("message") == services.SessionExpiredMessage
}

func (n *Navigator) hasCookie() bool {
	if n.cookies == nil || n.origin == nil {
		return false
	}
	v, ok := n.cookies.Lookup(n.origin, n.cookieName)
	return ok && v != ""
}

func (n *Navigator) isAuthRoute(path string) bool {
	auth := n.paths.Auth
	if len(auth) == 0 {
		auth = []string{n.paths.Login}
	}
	for _, route := range auth {
		if strings.HasPrefix(path, route) {
			return true
		}
	}
	return false
}

func splitLocation(location string) (string, url.Values) {
	u, err := url.Parse(location)
	if err != nil {
		return location, url.Values{}
	}
	return u.Path, u.Query()
}
