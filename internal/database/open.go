package database

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/config"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/log"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/repository"
)

// Open returns the store selected by cfg.Store.Driver. When the configured
// backend is unreachable and FallbackToFixtures is set, it returns the
// read-only fixture store instead.
func Open(ctx context.Context, cfg config.Config) (repository.Store, error) {
	store, err := open(ctx, cfg)
	if err == nil {
		log.Info(log.CatDB, "store ready", "driver", store.Name())
		return store, nil
	}
	if !cfg.Store.FallbackToFixtures || cfg.Store.Driver == config.DriverFixture {
		return nil, err
	}

	log.ErrorErr(log.CatDB, "store unavailable, serving read-only fixtures", err, "driver", cfg.Store.Driver)
	fixtures, ferr := repository.LoadFixtures(cfg.Store.FixturesPath)
	if ferr != nil {
		return nil, fmt.Errorf("%w (fixture fallback: %v)", err, ferr)
	}
	return fixtures, nil
}

func open(ctx context.Context, cfg config.Config) (repository.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.AutoMigrate {
			if err := Migrate(cfg.Postgres); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return repository.NewPostgresStore(pool), nil

	case config.DriverMongo:
		client, err := ConnectMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		store := repository.NewMongoStore(client, cfg.Mongo.Database)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, err
		}
		return store, nil

	case config.DriverMemory:
		log.Warn(log.CatDB, "memory store keeps data in this process only; run a single instance")
		return repository.NewMemoryStore(), nil

	case config.DriverFixture:
		return repository.LoadFixtures(cfg.Store.FixturesPath)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
