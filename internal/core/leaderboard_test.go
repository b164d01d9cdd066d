package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboniq/pkg/models"
)

func rankedStats(userID string, points int, at time.Time, institution *string) models.UserStats {
	s := models.NewUserStats(userID)
	s.TotalPoints = points
	s.TotalReports = points / 10
	s.LastReportAt = &at
	s.InstitutionID = institution
	return s
}

func userIDs(entries []models.LeaderboardEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.UserID
	}
	return out
}

func TestRanker_OrderAndTieBreaks(t *testing.T) {
	r := NewRanker(0, nil)
	r.Update(rankedStats("dave", 100, testDay.Add(time.Hour), nil))
	r.Update(rankedStats("carol", 100, testDay, nil))
	r.Update(rankedStats("bob", 100, testDay, nil))
	r.Update(rankedStats("alice", 250, testDay.Add(5*time.Hour), nil))

	res, err := r.Top(models.GlobalScope(), "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, userIDs(res.Entries))
	for i, e := range res.Entries {
		assert.Equal(t, i+1, e.Rank)
		assert.Equal(t, "global", e.Scope)
	}
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, models.PeriodAllTime, res.Period)

	top2, err := r.Top(models.GlobalScope(), models.PeriodAllTime, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, userIDs(top2.Entries))
	assert.Equal(t, 4, top2.Total)
}

func TestRanker_UpdateMovesUser(t *testing.T) {
	inst := strPtr("school-1")
	r := NewRanker(0, nil)
	r.Update(rankedStats("alice", 50, testDay, inst))
	r.Update(rankedStats("bob", 80, testDay, nil))
	assert.Equal(t, 2, r.Position("alice"))

	r.Update(rankedStats("alice", 90, testDay.Add(time.Hour), strPtr("school-2")))
	assert.Equal(t, 1, r.Position("alice"))

	old, err := r.Top(models.InstitutionScope("school-1"), "", 10)
	require.NoError(t, err)
	assert.Empty(t, old.Entries, "user left the institution board")

	moved, err := r.Top(models.InstitutionScope("school-2"), "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, userIDs(moved.Entries))

	rank, err := r.Rank("alice", models.GlobalScope(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, rank.Position)
	assert.Equal(t, 90, rank.Score)
	assert.InDelta(t, 100.0, rank.Percentile, 0.001)

	rank, err = r.Rank("bob", models.GlobalScope(), "")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, rank.Percentile, 0.001)

	rank, err = r.Rank("zed", models.GlobalScope(), "")
	require.NoError(t, err)
	assert.Zero(t, rank.Position)
	assert.Equal(t, 2, rank.Total)
}

func TestRanker_CategoryBoards(t *testing.T) {
	r := NewRanker(0, nil)
	a := rankedStats("alice", 10, testDay, nil)
	a.CurrentStreak = 9
	b := rankedStats("bob", 500, testDay, nil)
	b.CurrentStreak = 2
	b.AddBadge("first_report")
	r.Rebuild([]models.UserStats{a, b})

	streak, err := r.Top(models.CategoryScope(models.CategoryStreak), "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, userIDs(streak.Entries))

	badges, err := r.Top(models.CategoryScope(models.CategoryBadges), "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, userIDs(badges.Entries))
	assert.Equal(t, 1, badges.Entries[0].Score)

	_, err = r.Top(models.CategoryScope(models.CategoryStreak), models.PeriodWeekly, 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = r.Top(models.CategoryScope("karma"), "", 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestRanker_WindowBoards(t *testing.T) {
	now := testDay
	r := NewRanker(time.Minute, func() time.Time { return now })
	r.Update(rankedStats("alice", 100, testDay, strPtr("school-1")))
	r.Update(rankedStats("bob", 100, testDay, nil))

	res, err := r.Top(models.GlobalScope(), models.PeriodWeekly, 10)
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.Contains(t, res.Warning, models.ErrStaleRankSnapshot.Error())

	r.ReplaceWindow(models.PeriodWeekly, []models.WindowScore{
		{UserID: "alice", Points: 20, LastEarnedAt: testDay},
		{UserID: "bob", Points: 35, LastEarnedAt: testDay},
	}, now)
	assert.True(t, r.WindowComputedAt(models.PeriodWeekly).Equal(now))

	res, err = r.Top(models.TimeWindowScope(models.PeriodWeekly), "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, userIDs(res.Entries))
	assert.Empty(t, res.Warning)

	inst, err := r.Top(models.InstitutionScope("school-1"), models.PeriodWeekly, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, userIDs(inst.Entries))
	assert.Equal(t, 1, inst.Entries[0].Rank)

	now = now.Add(2 * time.Minute)
	rank, err := r.Rank("alice", models.GlobalScope(), models.PeriodWeekly)
	require.NoError(t, err)
	assert.Equal(t, 2, rank.Position)
	assert.Contains(t, rank.Warning, models.ErrStaleRankSnapshot.Error())
}

func TestRanker_InstitutionRankingsAndSnapshot(t *testing.T) {
	r := NewRanker(0, nil)
	r.Rebuild([]models.UserStats{
		rankedStats("alice", 100, testDay, strPtr("b-school")),
		rankedStats("bob", 50, testDay, strPtr("b-school")),
		rankedStats("carol", 150, testDay, strPtr("a-school")),
		rankedStats("dave", 400, testDay, nil),
	})

	rankings := r.InstitutionRankings()
	require.Len(t, rankings, 2)
	assert.Equal(t, "a-school", rankings[0].InstitutionID)
	assert.Equal(t, 1, rankings[0].Rank)
	assert.Equal(t, "b-school", rankings[1].InstitutionID)
	assert.Equal(t, 2, rankings[1].Members)
	assert.InDelta(t, 75.0, rankings[1].AveragePoints, 0.001)

	snapshot := r.Snapshot()
	scopes := map[string]int{}
	for _, board := range snapshot {
		scopes[board.Scope] = board.Total
	}
	assert.Equal(t, 4, scopes["global"])
	assert.Equal(t, 2, scopes["institution:b-school"])
	assert.Equal(t, 4, scopes["category:points"])

	assert.Len(t, r.Members(), 4)
}

func TestRanker_RebuildKeepsNewerMembers(t *testing.T) {
	r := NewRanker(0, nil)

	fresh := rankedStats("alice", 100, testDay.Add(time.Hour), nil)
	fresh.Version = 2
	r.Update(fresh)
	late := rankedStats("carol", 30, testDay, nil)
	late.Version = 1
	r.Update(late)

	stale := rankedStats("alice", 10, testDay, nil)
	stale.Version = 1
	bob := rankedStats("bob", 50, testDay, nil)
	bob.Version = 4
	r.Rebuild([]models.UserStats{stale, bob})

	res, err := r.Top(models.GlobalScope(), models.PeriodAllTime, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, userIDs(res.Entries))
	assert.Equal(t, 100, res.Entries[0].Score)
	assert.Equal(t, 1, r.Position("alice"))

	// an older in-memory row gives way to the snapshot
	newer := rankedStats("bob", 5, testDay, nil)
	newer.Version = 5
	r.Rebuild([]models.UserStats{newer})
	assert.Equal(t, 3, r.Position("bob"))
}
