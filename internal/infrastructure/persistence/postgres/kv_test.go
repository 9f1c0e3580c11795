package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/transport-saas-ms/console/pkg/errors"
)

func newMockKV(t *testing.T) (*KV, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewKV(&DB{Pool: mock}), mock
}

func TestKV_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		kv, mock := newMockKV(t)
		mock.ExpectQuery("SELECT value FROM console_kv").
			WithArgs("default:auth-token").
			WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("tok"))

		v, err := kv.Get(ctx, "default:auth-token")
		require.NoError(t, err)
		assert.Equal(t, "tok", v)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing maps to ErrKeyNotFound", func(t *testing.T) {
		kv, mock := newMockKV(t)
		mock.ExpectQuery("SELECT value FROM console_kv").
			WithArgs("nope").
			WillReturnError(pgx.ErrNoRows)

		_, err := kv.Get(ctx, "nope")
		assert.ErrorIs(t, err, apperrors.ErrKeyNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver error is wrapped", func(t *testing.T) {
		kv, mock := newMockKV(t)
		boom := errors.New("connection reset")
		mock.ExpectQuery("SELECT value FROM console_kv").
			WithArgs("k").
			WillReturnError(boom)

		_, err := kv.Get(ctx, "k")
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, apperrors.ErrKeyNotFound)
	})
}

func TestKV_SetUpserts(t *testing.T) {
	kv, mock := newMockKV(t)
	mock.ExpectExec("INSERT INTO console_kv").
		WithArgs("k", "v").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, kv.Set(context.Background(), "k", "v"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKV_Delete(t *testing.T) {
	kv, mock := newMockKV(t)
	mock.ExpectExec("DELETE FROM console_kv").
		WithArgs([]string{"a", "b"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, kv.Delete(context.Background(), "a", "b"))
	require.NoError(t, kv.Delete(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKV_Migrate(t *testing.T) {
	kv, mock := newMockKV(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS console_kv").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, kv.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
