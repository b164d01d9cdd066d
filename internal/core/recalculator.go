package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"carboniq/internal/metrics"
	"carboniq/pkg/logger"
	"carboniq/pkg/models"
)

// RecalculateAll rebuilds every user's stats from the ledger, overwriting
// rows that drifted, then awards cross-user badges and rebuilds every board.
// Running it again without new events fixes nothing.
func (s *rewardsService) RecalculateAll(ctx context.Context) (*models.RecalculationSummary, error) {
	start := time.Now()

	ids, err := s.knownUsers(ctx)
	if err != nil {
		return nil, err
	}

	summary := &models.RecalculationSummary{}
	for _, userID := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		unlock := s.agg.Lock(userID)
		_, fixed, err := s.repairLocked(ctx, userID)
		unlock()
		if err != nil {
			return nil, fmt.Errorf("failed to recalculate %s: %w", userID, err)
		}

		summary.UsersProcessed++
		if fixed {
			summary.DiscrepanciesFixed++
		}
	}

	awarded, err := s.awardBatchBadges(ctx)
	if err != nil {
		return nil, err
	}
	summary.BadgesAwarded = awarded

	if err := s.Warm(ctx); err != nil {
		return nil, err
	}

	summary.Duration = time.Since(start)
	metrics.RecalcDuration.Observe(summary.Duration.Seconds())
	logger.WithFields(map[string]interface{}{
		"users_processed":     summary.UsersProcessed,
		"discrepancies_fixed": summary.DiscrepanciesFixed,
		"badges_awarded":      summary.BadgesAwarded,
		"duration_ms":         summary.Duration.Milliseconds(),
	}).Info("Recalculation complete")
	return summary, nil
}

// knownUsers is every user with ledger history or a stats row
func (s *rewardsService) knownUsers(ctx context.Context) ([]string, error) {
	fromLedger, err := s.ledger.UserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger users: %w", err)
	}
	stored, err := s.stats.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stats: %w", err)
	}

	seen := make(map[string]struct{}, len(fromLedger)+len(stored))
	for _, id := range fromLedger {
		seen[id] = struct{}{}
	}
	for _, st := range stored {
		seen[st.UserID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// repairLocked compares stored stats with a full rebuild and overwrites
// them on mismatch. It reports whether a discrepancy was fixed. Callers
// hold the user's lock.
func (s *rewardsService) repairLocked(ctx context.Context, userID string) (models.UserStats, bool, error) {
	rebuilt, err := s.agg.FullRebuild(ctx, userID)
	if err != nil {
		return models.UserStats{}, false, err
	}

	stored := models.NewUserStats(userID)
	row, err := s.stats.Get(ctx, userID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		if rebuilt.LedgerCheckpoint == 0 {
			return rebuilt, false, nil
		}
	case err != nil:
		return models.UserStats{}, false, fmt.Errorf("failed to load stats: %w", err)
	default:
		stored = *row
	}

	diff := stored.Diff(rebuilt)
	if len(diff) == 0 {
		s.ranker.Update(stored)
		return stored, false, nil
	}

	logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"fields":  diff,
		"error":   models.ErrInconsistentLedger.Error(),
	}).Warn("Stored stats disagree with ledger, overwriting")

	saved, err := s.agg.Overwrite(ctx, rebuilt, stored.Version)
	if err != nil {
		return models.UserStats{}, false, err
	}
	metrics.RecalcDiscrepancies.Inc()
	s.ranker.Update(saved)
	return saved, true, nil
}

// communityLeaders picks, per institution, the member with the most reports.
// Ties go to the earlier last report, then the lower user id.
func communityLeaders(all []models.UserStats) map[string]bool {
	best := map[string]models.UserStats{}
	for _, st := range all {
		if st.InstitutionID == nil || st.TotalReports == 0 {
			continue
		}
		cur, ok := best[*st.InstitutionID]
		if !ok || leads(st, cur) {
			best[*st.InstitutionID] = st
		}
	}

	leaders := make(map[string]bool, len(best))
	for _, st := range best {
		leaders[st.UserID] = true
	}
	return leaders
}

func leads(a, b models.UserStats) bool {
	if a.TotalReports != b.TotalReports {
		return a.TotalReports > b.TotalReports
	}
	at, bt := a.LastReportAt, b.LastReportAt
	if at != nil && bt != nil && !at.Equal(*bt) {
		return at.Before(*bt)
	}
	return a.UserID < b.UserID
}

// awardBatchBadges evaluates every badge for every user against one stats
// snapshot, including the cross-user ones, and returns the number awarded
func (s *rewardsService) awardBatchBadges(ctx context.Context) (int, error) {
	all, err := s.stats.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list stats: %w", err)
	}
	leaders := communityLeaders(all)

	awarded := 0
	for _, st := range all {
		ectx, err := s.evalContext(ctx, st.UserID)
		if err != nil {
			return awarded, err
		}
		ectx.InstitutionLeader = leaders[st.UserID]
		if len(s.catalog.Evaluate(st, ectx)) == 0 {
			continue
		}

		n, err := s.awardBadges(ctx, st.UserID, ectx)
		if err != nil {
			return awarded, err
		}
		awarded += n
	}
	return awarded, nil
}

// awardBadges grants the badges a user's current stats unlock. They are
// dated at the user's last report, so replays stay deterministic.
func (s *rewardsService) awardBadges(ctx context.Context, userID string, ectx EvalContext) (int, error) {
	unlock := s.agg.Lock(userID)
	defer unlock()

	current, err := s.agg.Apply(ctx, userID)
	if err != nil {
		return 0, err
	}
	if current.LastReportAt == nil {
		return 0, nil
	}

	preview := current.Clone()
	entries := s.planner.planBadges(&preview, "", *current.LastReportAt, ectx)
	if len(entries) == 0 {
		return 0, nil
	}

	inserted, _, err := s.commit(ctx, userID, entries)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, e := range inserted {
		if e.Kind == models.RewardKindBadge {
			n++
		}
	}
	return n, nil
}
