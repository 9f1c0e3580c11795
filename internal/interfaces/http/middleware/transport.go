package middleware

import (
	"net/http"
)

// Middleware wraps an outbound transport. Hooks that only edit the request
// run before send; hooks that inspect the response run after receive.
type Middleware func(http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain wraps base so that mws[0] sees the request first and the response last.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(mws) - 1; i >= 0; i-- {
		rt = mws[i](rt)
	}
	return rt
}

// PreSend runs fn on a clone of every outbound request. An error aborts the send.
func PreSend(fn func(*http.Request) error) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			req = req.Clone(req.Context())
			if err := fn(req); err != nil {
				return nil, err
			}
			return next.RoundTrip(req)
		})
	}
}

// PostReceive runs fn on every response that arrived. Transport errors skip it.
func PostReceive(fn func(*http.Request, *http.Response)) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil {
				return resp, err
			}
			fn(req, resp)
			return resp, nil
		})
	}
}
