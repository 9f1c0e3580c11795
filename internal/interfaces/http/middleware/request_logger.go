package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/transport-saas-ms/console/pkg/logger"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// ContextKey is a type for context keys.
type ContextKey string

const (
	// ContextKeyRequestID is the context key for request ID.
	ContextKeyRequestID ContextKey = "request_id"
)

// RequestID stamps every outbound request with a fresh id unless the caller set one.
func RequestID() Middleware {
	return PreSend(func(req *http.Request) error {
		if req.Header.Get(HeaderRequestID) == "" {
			req.Header.Set(HeaderRequestID, uuid.New().String())
		}
		return nil
	})
}

// JSONContent defaults Content-Type and Accept to JSON.
func JSONContent() Middleware {
	return PreSend(func(req *http.Request) error {
		if req.Header.Get("Content-Type") == "" && req.Body != nil && req.Body != http.NoBody {
			req.Header.Set("Content-Type", "application/json")
		}
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "application/json")
		}
		return nil
	})
}

// RequestLogger logs every outbound exchange with structured fields. Headers
// are never logged, so tokens stay out of the log.
func RequestLogger(l logger.Logger) Middleware {
	l = l.With(logger.Component("gateway"))
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			latency := time.Since(start)

			fields := []logger.Field{
				logger.RequestID(req.Header.Get(HeaderRequestID)),
				logger.Method(req.Method),
				logger.Path(req.URL.Path),
				logger.Latency(latency),
			}

			if err != nil {
				l.Error("API request failed", append(fields, logger.Error(err))...)
				return resp, err
			}

			status := resp.StatusCode
			fields = append(fields, logger.Status(status))

			// Choose log level based on status
			msg := "API request"
			switch {
			case status >= 500:
				l.Error(msg, fields...)
			case status >= 400:
				l.Warn(msg, fields...)
			default:
				l.Info(msg, fields...)
			}
			return resp, nil
		})
	}
}

// GinRequestLogger logs requests served by the dev panel.
func GinRequestLogger(l logger.Logger) gin.HandlerFunc {
	l = l.With(logger.Component("devpanel"))
	return func(c *gin.Context) {
		// Generate or extract request ID
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(string(ContextKeyRequestID), requestID)
		c.Header(HeaderRequestID, requestID)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []logger.Field{
			logger.RequestID(requestID),
			logger.Method(c.Request.Method),
			logger.Path(c.Request.URL.Path),
			logger.Status(status),
			logger.Latency(time.Since(start)),
		}

		if len(c.Errors) > 0 {
			fields = append(fields, logger.String("errors", c.Errors.String()))
		}

		if status >= 500 {
			l.Error("dev panel request", fields...)
			return
		}
		l.Debug("dev panel request", fields...)
	}
}

// GetRequestID extracts request ID from context.
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(string(ContextKeyRequestID)); exists {
		if rid, ok := requestID.(string); ok {
			return rid
		}
	}
	return ""
}
