package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/transport-saas-ms/console/pkg/logger"
)

// LogQuerier reads stored log entries.
type LogQuerier interface {
	Query(ctx context.Context, filter logger.QueryFilter) ([]logger.LogEntry, error)
}

// LogsHandler exposes the log store to the dev panel.
type LogsHandler struct {
	logs LogQuerier
}

func NewLogsHandler(logs LogQuerier) *LogsHandler {
	return &LogsHandler{logs: logs}
}

// Logs returns stored entries, newest first.
// GET /debug/logs?level=&request_id=&user_id=&since=&limit=
func (h *LogsHandler) Logs(c *gin.Context) {
	filter := logger.QueryFilter{
		Level:     c.Query("level"),
		RequestID: c.Query("request_id"),
		UserID:    c.Query("user_id"),
		Limit:     50,
	}

	if since := c.Query("since"); since != "" {
		d, err := time.ParseDuration(since)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a positive duration"})
			return
		}
		filter.Since = time.Now().Add(-d)
	}

	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 && l <= 200 {
			filter.Limit = l
		}
	}

	entries, err := h.logs.Query(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []logger.LogEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
