package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/transport-saas-ms/console/pkg/errors"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS console_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// KV stores console keys in a single table so several operator profiles
// can share one database.
type KV struct {
	pool Pool
}

func NewKV(db *DB) *KV {
	return &KV{pool: db.Pool}
}

// Migrate creates the table if it does not exist.
func (r *KV) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createTableSQL); err != nil {
		return apperrors.Wrap(err, "failed to create console_kv table")
	}
	return nil
}

func (r *KV) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM console_kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.ErrKeyNotFound
		}
		return "", apperrors.Wrap(err, "failed to get key")
	}
	return value, nil
}

func (r *KV) Set(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO console_kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value)
	if err != nil {
		return apperrors.Wrap(err, "failed to set key")
	}
	return nil
}

func (r *KV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM console_kv WHERE key = ANY($1)`, keys); err != nil {
		return apperrors.Wrap(err, "failed to delete keys")
	}
	return nil
}
