package core

import (
	"context"
	"time"

	"carboniq/internal/repository"
	"carboniq/pkg/logger"
	"carboniq/pkg/models"
)

// RankRefresher is the part of the engine the scheduler drives
type RankRefresher interface {
	RefreshRanks(ctx context.Context) error
	Snapshot() []models.LeaderboardResult
}

// Scheduler periodically recomputes the batch boards and publishes every
// board to the mirror, when one is configured
type Scheduler struct {
	refresher RankRefresher
	mirror    repository.LeaderboardMirror
	interval  time.Duration
}

// NewScheduler creates a scheduler; mirror may be nil
func NewScheduler(refresher RankRefresher, mirror repository.LeaderboardMirror, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{refresher: refresher, mirror: mirror, interval: interval}
}

// Run ticks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Infof("Rank scheduler running every %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Rank scheduler stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				logger.Errorf("Rank refresh failed: %v", err)
			}
		}
	}
}

// RunOnce refreshes the boards and publishes them
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if err := s.refresher.RefreshRanks(ctx); err != nil {
		return err
	}
	if s.mirror == nil {
		return nil
	}

	for _, board := range s.refresher.Snapshot() {
		if err := s.mirror.Publish(ctx, board); err != nil {
			// a mirror outage must not stop the refresh loop
			logger.Warnf("Failed to publish %s to mirror: %v", board.Scope, err)
		}
	}
	return nil
}
