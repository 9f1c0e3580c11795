package redis

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transport-saas-ms/console/config"
	apperrors "github.com/transport-saas-ms/console/pkg/errors"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := config.Defaults().Redis
	cfg.Host = mr.Host()
	cfg.Port = mustPort(t, mr.Port())

	c, err := NewClient(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func mustPort(t *testing.T, s string) int {
	t.Helper()
	p, err := strconv.Atoi(s)
	require.NoError(t, err)
	return p
}

func TestClient_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrKeyNotFound)

	require.NoError(t, c.Set(ctx, "ops:auth-token", "tok"))
	v, err := c.Get(ctx, "ops:auth-token")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	assert.Equal(t, "tok", mustGet(t, mr, "ops:auth-token"))
	assert.Zero(t, mr.TTL("ops:auth-token"))

	require.NoError(t, c.Delete(ctx, "ops:auth-token", "ops:absent"))
	assert.False(t, mr.Exists("ops:auth-token"))
	assert.NoError(t, c.Delete(ctx))
}

func TestClient_Health(t *testing.T) {
	c, mr := newTestClient(t)
	assert.NoError(t, c.Health(context.Background()))

	mr.Close()
	assert.Error(t, c.Health(context.Background()))
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := config.Defaults().Redis
	cfg.Host = "127.0.0.1"
	cfg.Port = 1

	_, err := NewClient(&cfg)
	assert.Error(t, err)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
