package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"carboniq/pkg/config"
	"carboniq/pkg/database"
	"carboniq/pkg/logger"
	"carboniq/pkg/utils"
)

// Store owns the connections behind a Repositories bundle
type Store struct {
	Repos Repositories
	db    *database.DB
	pool  *pgxpool.Pool
}

// Open connects to the configured storage driver and applies the schema.
// PostgreSQL is served by pgx; the database/sql handle runs migrations and health checks.
func Open(ctx context.Context, cfg config.StorageConfig, dbCfg config.DatabaseConfig) (*Store, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := database.NewDB(dbCfg.Connection())
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}

		pool, err := database.NewPGXPool(dbCfg.Connection())
		if err != nil {
			db.Close()
			return nil, err
		}

		logger.Infof("Connected to PostgreSQL at %s:%d/%s", dbCfg.Host, dbCfg.Port, dbCfg.Name)
		return &Store{Repos: NewPostgresRepositories(pool), db: db, pool: pool}, nil

	case "sqlite":
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}

		logger.Infof("Opened SQLite database at %s", cfg.SQLitePath)
		return &Store{Repos: NewSQLiteRepositories(db), db: db}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Dialect names the backing database
func (s *Store) Dialect() string {
	return s.db.Dialect()
}

// HealthCheck pings every connection the store holds
func (s *Store) HealthCheck(ctx context.Context) error {
	var poolErr error
	if s.pool != nil {
		if err := s.pool.Ping(ctx); err != nil {
			poolErr = fmt.Errorf("pgx pool unhealthy: %w", err)
		}
	}
	return utils.CombineErrors(poolErr, s.db.HealthCheck(ctx))
}

// Close releases every connection
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return s.db.Close()
}
