// Package database opens the configured store: a pgx connection pool with
// migrations, a MongoDB client, or the in-process adapters.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/config"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewPool creates and validates a pgxpool connection pool.
// It retries cfg.ConnectAttempts times to accommodate containers starting up.
func NewPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	attempts := max(cfg.ConnectAttempts, 1)
	var pool *pgxpool.Pool
	for attempt := 1; attempt <= attempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		log.Warn(log.CatDB, "postgres connect attempt failed",
			"attempt", attempt, "of", attempts, "error", err)
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.ConnectBackoff):
			}
		}
	}
	return nil, fmt.Errorf("connect to postgres: %w", err)
}

// Migrate applies every pending up migration.
func Migrate(cfg config.PostgresConfig) error {
	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}
	defer closeMigrate(m)

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info(log.CatDB, "migrations up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, _, _ := m.Version()
	log.Info(log.CatDB, "migrations applied", "version", version)
	return nil
}

// MigrateDown rolls back every migration.
func MigrateDown(cfg config.PostgresConfig) error {
	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}
	defer closeMigrate(m)

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	return nil
}

func newMigrate(cfg config.PostgresConfig) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return m, nil
}

func closeMigrate(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		log.Warn(log.CatDB, "close migrate", "error", err)
	}
}
