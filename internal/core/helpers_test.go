package core

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"carboniq/internal/repository"
	"carboniq/pkg/database"
	"carboniq/pkg/models"
)

var testDay = time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC)

// testClock is a settable clock for staleness checks
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEngine struct {
	svc   *rewardsService
	repos repository.Repositories
	clock *testClock
}

func newTestEngine(t *testing.T, opts Options) *testEngine {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "rewards.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	catalog, err := LoadBadgeCatalog()
	require.NoError(t, err)

	clock := &testClock{now: testDay.AddDate(0, 0, 30)}
	if opts.Now == nil {
		opts.Now = clock.Now
	}
	repos := repository.NewSQLiteRepositories(db)
	svc := NewRewardsService(repos, catalog, opts).(*rewardsService)
	return &testEngine{svc: svc, repos: repos, clock: clock}
}

func report(userID, reportID string, at time.Time) models.ReportCreated {
	return models.ReportCreated{
		UserID:         userID,
		SourceReportID: reportID,
		Timestamp:      at,
		WasteType:      models.WasteOrganic,
		IsUrban:        true,
	}
}

func (e *testEngine) process(t *testing.T, ev models.ReportCreated) *models.ProcessResult {
	t.Helper()
	res, err := e.svc.ProcessReport(context.Background(), ev)
	require.NoError(t, err)
	return res
}

func (e *testEngine) ledger(t *testing.T, userID string) []models.RewardEvent {
	t.Helper()
	entries, err := e.repos.Ledger.ListByUser(context.Background(), userID, 0)
	require.NoError(t, err)
	return entries
}

func countReason(entries []models.RewardEvent, reason string) int {
	n := 0
	for _, e := range entries {
		if e.Reason == reason {
			n++
		}
	}
	return n
}

func countBadge(entries []models.RewardEvent, badgeID string) int {
	n := 0
	for _, e := range entries {
		if e.Kind == models.RewardKindBadge && e.BadgeID == badgeID {
			n++
		}
	}
	return n
}

func strPtr(s string) *string { return &s }
