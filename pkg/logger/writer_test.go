package logger

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T, path string, opts WriterOptions) *SQLiteWriter {
	t.Helper()
	w, err := NewSQLiteWriter(path, opts)
	require.NoError(t, err)
	return w
}

func TestSQLiteWriter_TeeAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.db")
	w := newTestWriter(t, path, WriterOptions{FlushInterval: time.Hour})

	l, err := New(Config{Level: "info", Output: io.Discard, Writer: w})
	require.NoError(t, err)

	gw := l.With(Component("gateway"))
	gw.Info("API request", RequestID("req-1"), Status(200))
	gw.Warn("API request", RequestID("req-2"), Status(401), UserID("u-7"))
	l.Debug("below level")

	// Close drains the buffer before the hourly tick.
	require.NoError(t, w.Close())

	w = newTestWriter(t, path, WriterOptions{})
	t.Cleanup(func() { w.Close() })

	all, err := w.Query(context.Background(), QueryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	got, err := w.Query(context.Background(), QueryFilter{RequestID: "req-2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "warn", got[0].Level)
	assert.Equal(t, "u-7", got[0].UserID)
	assert.Equal(t, "gateway", got[0].Fields["component"])
	assert.EqualValues(t, 401, got[0].Fields["status"])

	got, err = w.Query(context.Background(), QueryFilter{Level: "info"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "req-1", got[0].RequestID)
}

func TestSQLiteWriter_RetentionOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.db")
	w := newTestWriter(t, path, WriterOptions{})

	old := time.Now().AddDate(0, 0, -30).UnixMilli()
	require.NoError(t, w.Write(LogEntry{Timestamp: old, Level: "info", Message: "ancient"}))
	require.NoError(t, w.Write(LogEntry{Timestamp: time.Now().UnixMilli(), Level: "info", Message: "recent"}))
	require.NoError(t, w.Close())

	w = newTestWriter(t, path, WriterOptions{RetentionDays: 7})
	t.Cleanup(func() { w.Close() })

	got, err := w.Query(context.Background(), QueryFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "recent", got[0].Message)
}

func TestSQLiteWriter_CloseIsIdempotent(t *testing.T) {
	w := newTestWriter(t, filepath.Join(t.TempDir(), "logs.db"), WriterOptions{})
	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
