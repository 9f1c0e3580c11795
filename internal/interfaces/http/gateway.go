package apihttp

import (
	"net/http"

	"github.com/transport-saas-ms/console/internal/interfaces/http/middleware"
	"github.com/transport-saas-ms/console/pkg/logger"
)

// Gateway is the single outbound path to the API. Every request gets a
// request id and the current bearer token; every 401 outside the password
// change carve-out expires the session.
type Gateway struct {
	rt http.RoundTripper
}

// GatewayDeps holds what the standard hook chain needs.
type GatewayDeps struct {
	Base    http.RoundTripper
	Tokens  middleware.TokenSource
	Expirer middleware.SessionExpirer
	Logger  logger.Logger
}

// NewGateway builds the standard chain. Extra middlewares run innermost,
// closest to the wire.
func NewGateway(deps GatewayDeps, extra ...middleware.Middleware) *Gateway {
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}

	mws := []middleware.Middleware{
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.JSONContent(),
	}
	if deps.Tokens != nil {
		mws = append(mws, middleware.Bearer(deps.Tokens, log))
	}
	if deps.Expirer != nil {
		mws = append(mws, middleware.SessionGuard(deps.Expirer, log))
	}
	mws = append(mws, extra...)

	return &Gateway{rt: middleware.Chain(deps.Base, mws...)}
}

// RoundTrip implements http.RoundTripper.
func (g *Gateway) RoundTrip(req *http.Request) (*http.Response, error) {
	return g.rt.RoundTrip(req)
}
