package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker interface for checking backend health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports the health of the storage backends.
type HealthHandler struct {
	checkers map[string]HealthChecker
}

// NewHealthHandler creates a new health handler. Nil checkers are skipped.
func NewHealthHandler(checkers map[string]HealthChecker) *HealthHandler {
	live := make(map[string]HealthChecker, len(checkers))
	for name, c := range checkers {
		if c != nil {
			live[name] = c
		}
	}
	return &HealthHandler{checkers: live}
}

// Health returns the backend health status.
// GET /debug/health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checkers[name].Health(ctx); err != nil {
			checks[name] = "unhealthy"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "healthy"
	}

	c.JSON(httpStatus, gin.H{
		"status": status,
		"checks": checks,
	})
}

// Live returns whether the console is alive.
// GET /debug/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alive": true})
}
