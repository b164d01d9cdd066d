package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboniq/pkg/database"
	"carboniq/pkg/models"
)

var baseTime = time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC)

func newSQLiteRepos(t *testing.T) Repositories {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteRepositories(db)
}

func pointsEntry(userID, reportID, reason string, points int, at time.Time) models.RewardEvent {
	return models.RewardEvent{
		ID:             uuid.NewString(),
		UserID:         userID,
		Kind:           models.RewardKindPoints,
		Points:         points,
		SourceReportID: reportID,
		Reason:         reason,
		EarnedAt:       at,
	}
}

func badgeEntry(userID, badgeID string, at time.Time) models.RewardEvent {
	return models.RewardEvent{
		ID:       uuid.NewString(),
		UserID:   userID,
		Kind:     models.RewardKindBadge,
		BadgeID:  badgeID,
		Reason:   models.ReasonBadgeEarned,
		EarnedAt: at,
	}
}

func TestSQLiteLedger_AppendBatchDedups(t *testing.T) {
	ctx := context.Background()
	ledger := newSQLiteRepos(t).Ledger

	base := pointsEntry("alice", "r1", models.ReasonReportCreated, 10, baseTime)
	base.Report = &models.ReportFacts{WasteType: models.WasteMixed, HasImage: true, InstitutionID: strPtr("school-1")}

	inserted, err := ledger.AppendBatch(ctx, []models.RewardEvent{
		base,
		pointsEntry("alice", "r1", models.ReasonHasImage, 5, baseTime),
		badgeEntry("alice", "first_report", baseTime),
	})
	require.NoError(t, err)
	require.Len(t, inserted, 3)
	assert.Less(t, inserted[0].Seq, inserted[1].Seq)
	assert.Less(t, inserted[1].Seq, inserted[2].Seq)

	// a replay with fresh ids adds nothing
	again, err := ledger.AppendBatch(ctx, []models.RewardEvent{
		pointsEntry("alice", "r1", models.ReasonReportCreated, 10, baseTime),
		badgeEntry("alice", "first_report", baseTime.Add(time.Hour)),
		pointsEntry("alice", "r2", models.ReasonReportCreated, 10, baseTime.Add(time.Hour)),
	})
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "r2", again[0].SourceReportID)

	_, err = ledger.Append(ctx, badgeEntry("alice", "first_report", baseTime))
	assert.ErrorIs(t, err, models.ErrDuplicateEvent)

	exists, err := ledger.Exists(ctx, base.DedupKey())
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = ledger.Exists(ctx, "alice|r9|report_created")
	require.NoError(t, err)
	assert.False(t, exists)

	all, err := ledger.ListByUser(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.NotNil(t, all[0].Report)
	assert.Equal(t, models.WasteMixed, all[0].Report.WasteType)
	assert.Equal(t, "school-1", *all[0].Report.InstitutionID)
	assert.True(t, all[0].EarnedAt.Equal(baseTime))
	assert.Equal(t, time.UTC, all[0].EarnedAt.Location())
	assert.Nil(t, all[1].Report)

	after, err := ledger.ListByUser(ctx, "alice", inserted[2].Seq)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "r2", after[0].SourceReportID)
}

func TestSQLiteLedger_Queries(t *testing.T) {
	ctx := context.Background()
	ledger := newSQLiteRepos(t).Ledger

	var entries []models.RewardEvent
	for i := 0; i < 5; i++ {
		at := baseTime.AddDate(0, 0, i)
		entries = append(entries, pointsEntry("alice", fmt.Sprintf("r%d", i), models.ReasonReportCreated, 10, at))
	}
	entries = append(entries,
		badgeEntry("alice", "first_report", baseTime),
		pointsEntry("bob", "b1", models.ReasonReportCreated, 10, baseTime.AddDate(0, 0, 4)),
		pointsEntry("bob", "b1", models.ReasonHasImage, 5, baseTime.AddDate(0, 0, 4)),
		badgeEntry("bob", "photo_master", baseTime.AddDate(0, 0, 4)),
	)
	_, err := ledger.AppendBatch(ctx, entries)
	require.NoError(t, err)

	page, total, err := ledger.ListPage(ctx, "alice", "", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	require.Len(t, page, 2)
	assert.Equal(t, "r4", page[0].SourceReportID, "newest first")

	page, total, err = ledger.ListPage(ctx, "alice", models.RewardKindBadge, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, "first_report", page[0].BadgeID)

	page, _, err = ledger.ListPage(ctx, "alice", "", 10, 5)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	recent, err := ledger.RecentBadges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "photo_master", recent[0].BadgeID)

	scores, err := ledger.PointsSince(ctx, baseTime.AddDate(0, 0, 3))
	require.NoError(t, err)
	byUser := map[string]models.WindowScore{}
	for _, s := range scores {
		byUser[s.UserID] = s
	}
	assert.Equal(t, 20, byUser["alice"].Points)
	assert.Equal(t, 15, byUser["bob"].Points)
	assert.True(t, byUser["bob"].LastEarnedAt.Equal(baseTime.AddDate(0, 0, 4)))

	breakdown, err := ledger.PointsBreakdown(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{models.ReasonReportCreated: 10, models.ReasonHasImage: 5}, breakdown)

	ids, err := ledger.UserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids)
}

func TestSQLiteStats_OptimisticSave(t *testing.T) {
	ctx := context.Background()
	stats := newSQLiteRepos(t).Stats

	_, err := stats.Get(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrNotFound)

	day := baseTime.Truncate(24 * time.Hour)
	s := models.NewUserStats("alice")
	s.TotalPoints = 68
	s.TotalReports = 1
	s.CurrentStreak = 1
	s.LongestStreak = 1
	s.ReportsByWasteType[models.WasteOrganic] = 1
	s.ReportsByArea.Urban = 1
	s.LastReportDate = &day
	s.LastReportAt = &baseTime
	s.InstitutionID = strPtr("school-1")
	s.RecentDays = []models.DayCount{{Day: day, Count: 1}}
	s.AddBadge("first_report")
	s.LedgerCheckpoint = 4

	require.NoError(t, stats.Save(ctx, &s, 0))
	assert.Equal(t, int64(1), s.Version)

	stale := s.Clone()
	s.TotalPoints = 80
	require.NoError(t, stats.Save(ctx, &s, 1))
	assert.Equal(t, int64(2), s.Version)

	stale.TotalPoints = 999
	err = stats.Save(ctx, &stale, 1)
	assert.ErrorIs(t, err, models.ErrVersionConflict)

	dup := models.NewUserStats("alice")
	assert.ErrorIs(t, stats.Save(ctx, &dup, 0), models.ErrVersionConflict)

	got, err := stats.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 80, got.TotalPoints)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, int64(4), got.LedgerCheckpoint)
	assert.Equal(t, []string{"first_report"}, got.BadgesEarned)
	assert.Equal(t, 1, got.ReportsByWasteType[models.WasteOrganic])
	assert.Equal(t, "school-1", *got.InstitutionID)
	require.NotNil(t, got.LastReportAt)
	assert.True(t, got.LastReportAt.Equal(baseTime))
	require.Len(t, got.RecentDays, 1)
	assert.True(t, got.RecentDays[0].Day.Equal(day))
	assert.Nil(t, got.WeeklyGoalAwardedOn)

	bob := models.NewUserStats("bob")
	require.NoError(t, stats.Save(ctx, &bob, 0))
	all, err := stats.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].UserID)
	assert.Empty(t, all[1].BadgesEarned)
	assert.NotNil(t, all[1].ReportsByWasteType)
}

func TestSQLiteSignups(t *testing.T) {
	ctx := context.Background()
	signups := newSQLiteRepos(t).Signups

	_, err := signups.Get(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, signups.Put(ctx, "alice", 7))
	order, err := signups.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), order)

	require.NoError(t, signups.Put(ctx, "alice", 8), "corrections overwrite")
	order, err = signups.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(8), order)

	assert.ErrorIs(t, signups.Put(ctx, "bob", 8), models.ErrInvalidInput)
	assert.ErrorIs(t, signups.Put(ctx, "bob", 0), models.ErrInvalidInput)
}

func strPtr(s string) *string { return &s }
