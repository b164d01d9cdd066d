package core

import (
	"context"
	"errors"
	"fmt"

	"carboniq/internal/metrics"
	"carboniq/internal/repository"
	"carboniq/pkg/logger"
	"carboniq/pkg/models"
)

// StatsAggregator owns the stored UserStats. Writers for one user are
// serialised by Lock, and each user has a single writer process: Apply folds
// only entries past the stored checkpoint, so an entry another process
// commits below it stays unfolded until SyncStats or RecalculateAll replays
// the ledger. The version check on save turns a second writer into a
// conflict and a reload rather than a silent overwrite.
type StatsAggregator struct {
	ledger  repository.LedgerRepository
	stats   repository.StatsRepository
	locks   *userLocks
	retries int
}

// NewStatsAggregator creates an aggregator retrying version conflicts up to retries times
func NewStatsAggregator(ledger repository.LedgerRepository, stats repository.StatsRepository, retries int) *StatsAggregator {
	if retries <= 0 {
		retries = 3
	}
	return &StatsAggregator{
		ledger:  ledger,
		stats:   stats,
		locks:   newUserLocks(),
		retries: retries,
	}
}

// Lock enters the user's critical section
func (a *StatsAggregator) Lock(userID string) func() {
	return a.locks.Lock(userID)
}

// Load returns the stored stats, or zero stats for a user without a row
func (a *StatsAggregator) Load(ctx context.Context, userID string) (models.UserStats, error) {
	stored, err := a.stats.Get(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		logger.Debugf("%v: %s, serving zero stats", models.ErrUnknownUser, userID)
		return models.NewUserStats(userID), nil
	}
	if err != nil {
		return models.UserStats{}, fmt.Errorf("failed to load stats: %w", err)
	}
	return *stored, nil
}

// Apply folds every ledger entry past the stored checkpoint into the user's
// stats and saves them as one write. Called after a batch is appended it
// lands the whole batch; called first it recovers entries a crash left
// unapplied. Callers hold the user's lock.
func (a *StatsAggregator) Apply(ctx context.Context, userID string) (models.UserStats, error) {
	var lastErr error
	for attempt := 0; attempt < a.retries; attempt++ {
		current, err := a.Load(ctx, userID)
		if err != nil {
			return models.UserStats{}, err
		}

		pending, err := a.ledger.ListByUser(ctx, userID, current.LedgerCheckpoint)
		if err != nil {
			return models.UserStats{}, fmt.Errorf("failed to read pending ledger entries: %w", err)
		}
		if len(pending) == 0 {
			return current, nil
		}

		next := current.Clone()
		fold(&next, pending)
		err = a.stats.Save(ctx, &next, current.Version)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, models.ErrVersionConflict) {
			return models.UserStats{}, fmt.Errorf("failed to save stats: %w", err)
		}

		metrics.StatsConflicts.Inc()
		logger.WithFields(map[string]interface{}{
			"user_id": userID,
			"attempt": attempt + 1,
		}).Warn("Stats version conflict, reloading")
		lastErr = err
	}
	return models.UserStats{}, fmt.Errorf("failed to apply ledger entries after %d attempts: %w", a.retries, lastErr)
}

// FullRebuild replays the user's entire ledger from empty stats. It does not save.
func (a *StatsAggregator) FullRebuild(ctx context.Context, userID string) (models.UserStats, error) {
	entries, err := a.ledger.ListByUser(ctx, userID, 0)
	if err != nil {
		return models.UserStats{}, fmt.Errorf("failed to read ledger: %w", err)
	}
	rebuilt := models.NewUserStats(userID)
	fold(&rebuilt, entries)
	return rebuilt, nil
}

// Overwrite replaces the stored row with rebuilt, which must not be older
// than expectedVersion. It returns the saved stats.
func (a *StatsAggregator) Overwrite(ctx context.Context, rebuilt models.UserStats, expectedVersion int64) (models.UserStats, error) {
	next := rebuilt.Clone()
	if err := a.stats.Save(ctx, &next, expectedVersion); err != nil {
		return models.UserStats{}, fmt.Errorf("failed to overwrite stats: %w", err)
	}
	return next, nil
}
