package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"carboniq/pkg/database"
)

// Repositories bundles the stores the rewards engine needs
type Repositories struct {
	Ledger  LedgerRepository
	Stats   StatsRepository
	Signups SignupRepository
}

// NewPostgresRepositories wires the pgx implementations
func NewPostgresRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Ledger:  NewLedgerRepository(pool),
		Stats:   NewStatsRepository(pool),
		Signups: NewSignupRepository(pool),
	}
}

// NewSQLiteRepositories wires the embedded SQLite implementations
func NewSQLiteRepositories(db *database.DB) Repositories {
	return Repositories{
		Ledger:  NewSQLiteLedgerRepository(db.DB),
		Stats:   NewSQLiteStatsRepository(db.DB),
		Signups: NewSQLiteSignupRepository(db.DB),
	}
}
