package logger

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// WriterOptions tunes a SQLiteWriter.
type WriterOptions struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	// RetentionDays prunes older entries when the writer opens. Zero keeps everything.
	RetentionDays int
}

func (o *WriterOptions) setDefaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = 1024
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = time.Second
	}
}

// SQLiteWriter writes log entries to SQLite asynchronously. Console runs are
// short, so retention is applied once on open instead of by a background job.
type SQLiteWriter struct {
	db       *sql.DB
	buffer   chan LogEntry
	done     chan struct{}
	wg       sync.WaitGroup
	opts     WriterOptions
	stopOnce sync.Once
}

func NewSQLiteWriter(path string, opts WriterOptions) (*SQLiteWriter, error) {
	opts.setDefaults()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	w := &SQLiteWriter{
		db:     db,
		buffer: make(chan LogEntry, opts.BufferSize),
		done:   make(chan struct{}),
		opts:   opts,
	}

	if opts.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -opts.RetentionDays)
		if _, err := w.DeleteOlderThan(context.Background(), cutoff); err != nil {
			db.Close()
			return nil, err
		}
	}

	w.wg.Add(1)
	go w.worker()

	return w, nil
}

func runMigrations(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		caller TEXT,
		fields TEXT,
		request_id TEXT,
		user_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_logs_request_id ON logs(request_id) WHERE request_id IS NOT NULL AND request_id != '';
	`
	_, err := db.Exec(schema)
	return err
}

// Write queues an entry. A full buffer drops it.
func (w *SQLiteWriter) Write(entry LogEntry) error {
	select {
	case w.buffer <- entry:
	default:
	}
	return nil
}

// Close flushes queued entries and closes the database.
func (w *SQLiteWriter) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		err = w.db.Close()
	})
	return err
}

func (w *SQLiteWriter) worker() {
	defer w.wg.Done()

	batch := make([]LogEntry, 0, w.opts.BatchSize)
	ticker := time.NewTicker(w.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-w.buffer:
			batch = append(batch, entry)
			if len(batch) >= w.opts.BatchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-w.done:
			for {
				select {
				case entry := <-w.buffer:
					batch = append(batch, entry)
				default:
					w.flush(batch)
					return
				}
			}
		}
	}
}

func (w *SQLiteWriter) flush(entries []LogEntry) {
	if len(entries) == 0 {
		return
	}

	tx, err := w.db.Begin()
	if err != nil {
		return
	}

	stmt, err := tx.Prepare(`
		INSERT INTO logs (timestamp, level, message, caller, fields, request_id, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for _, entry := range entries {
		var fieldsJSON []byte
		if len(entry.Fields) > 0 {
			fieldsJSON, _ = json.Marshal(entry.Fields)
		}
		// A bad entry must not lose the rest of the batch.
		_, _ = stmt.Exec(
			entry.Timestamp,
			entry.Level,
			entry.Message,
			entry.Caller,
			string(fieldsJSON),
			entry.RequestID,
			entry.UserID,
		)
	}

	tx.Commit()
}

// QueryFilter narrows Query. Zero fields do not filter.
type QueryFilter struct {
	Level     string
	RequestID string
	UserID    string
	Since     time.Time
	Limit     int
}

// Query returns matching entries, newest first.
func (w *SQLiteWriter) Query(ctx context.Context, filter QueryFilter) ([]LogEntry, error) {
	query := `SELECT timestamp, level, message, caller, fields, request_id, user_id FROM logs WHERE 1=1`
	var args []any

	if filter.Level != "" {
		query += ` AND level = ?`
		args = append(args, filter.Level)
	}
	if filter.RequestID != "" {
		query += ` AND request_id = ?`
		args = append(args, filter.RequestID)
	}
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if !filter.Since.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, filter.Since.UnixMilli())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var entry LogEntry
		var caller, fieldsJSON, requestID, userID sql.NullString

		if err := rows.Scan(&entry.Timestamp, &entry.Level, &entry.Message,
			&caller, &fieldsJSON, &requestID, &userID); err != nil {
			return nil, err
		}

		entry.Caller = caller.String
		entry.RequestID = requestID.String
		entry.UserID = userID.String
		if fieldsJSON.Valid && fieldsJSON.String != "" {
			_ = json.Unmarshal([]byte(fieldsJSON.String), &entry.Fields)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteOlderThan removes entries logged before the given time.
func (w *SQLiteWriter) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := w.db.ExecContext(ctx, `DELETE FROM logs WHERE timestamp < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
