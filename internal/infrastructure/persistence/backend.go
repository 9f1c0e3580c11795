package persistence

import (
	"context"
	"fmt"

	"github.com/transport-saas-ms/console/config"
	"github.com/transport-saas-ms/console/internal/infrastructure/cache/redis"
	"github.com/transport-saas-ms/console/internal/infrastructure/persistence/memory"
	"github.com/transport-saas-ms/console/internal/infrastructure/persistence/postgres"
	"github.com/transport-saas-ms/console/internal/infrastructure/persistence/sqlite"
)

// Backend is the opened storage behind the credential store.
type Backend struct {
	// Driver is the configured storage driver name.
	Driver string
	// KV is already namespaced.
	KV KV

	health func(ctx context.Context) error
	close  func() error
}

// OpenBackend connects the KV backend selected by cfg.Storage.Driver.
func OpenBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	b := &Backend{Driver: cfg.Storage.Driver}

	var raw KV
	switch cfg.Storage.Driver {
	case "memory":
		raw = memory.NewKV()

	case "sqlite":
		kv, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		raw, b.health, b.close = kv, kv.Health, kv.Close

	case "redis":
		client, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		raw, b.health, b.close = client, client.Health, client.Close

	case "postgres":
		db, err := postgres.NewDB(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		kv := postgres.NewKV(db)
		if err := kv.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		raw, b.health = kv, db.Health
		b.close = func() error {
			db.Close()
			return nil
		}

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	b.KV = WithNamespace(raw, cfg.Storage.Namespace)
	return b, nil
}

// Health checks the backend connection. The memory backend is always healthy.
func (b *Backend) Health(ctx context.Context) error {
	if b.health == nil {
		return nil
	}
	return b.health(ctx)
}

// Close releases the backend connection.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}
