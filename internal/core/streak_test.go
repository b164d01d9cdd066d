package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboniq/pkg/models"
	"carboniq/pkg/utils"
)

func TestNextStreak(t *testing.T) {
	last := utils.DayOf(testDay)

	assert.Equal(t, StreakStart, NextStreak(nil, last))
	assert.Equal(t, StreakSameDay, NextStreak(&last, testDay.Add(10*time.Hour)))
	assert.Equal(t, StreakExtend, NextStreak(&last, last.AddDate(0, 0, 1)))
	assert.Equal(t, StreakReset, NextStreak(&last, last.AddDate(0, 0, 2)))
	assert.Equal(t, StreakLate, NextStreak(&last, last.AddDate(0, 0, -1)))
}

func TestNextStreak_UsesUTCDays(t *testing.T) {
	// 23:30 and 00:30 UTC the next day are consecutive days
	last := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	next := time.Date(2025, 1, 2, 0, 30, 0, 0, time.UTC)
	assert.Equal(t, StreakExtend, NextStreak(&last, next))

	// a non-UTC timestamp is judged by its UTC day
	plus7 := time.FixedZone("UTC+7", 7*3600)
	assert.Equal(t, StreakLate, NextStreak(&last, time.Date(2025, 1, 1, 6, 0, 0, 0, plus7)))
	sameUTCDay := time.Date(2025, 1, 1, 10, 0, 0, 0, plus7)
	assert.Equal(t, StreakSameDay, NextStreak(&last, sameUTCDay))
}

func foldReports(s *models.UserStats, days ...int) {
	for i, d := range days {
		ev := report(s.UserID, fmt.Sprintf("r%d", i), testDay.AddDate(0, 0, d))
		fold(s, ComputePoints(ev))
	}
}

func TestFold_StreakAndWindows(t *testing.T) {
	s := models.NewUserStats("u1")
	foldReports(&s, 0, 1, 2, 2, 4, 5, 6, 7, 8)

	assert.Equal(t, 9, s.TotalReports)
	assert.Equal(t, 5, s.CurrentStreak)
	assert.Equal(t, 5, s.LongestStreak)
	assert.Equal(t, 90, s.TotalPoints)

	// days 2..8 hold 7 reports on 6 distinct days
	assert.Equal(t, 7, s.BestWeeklyReports)
	assert.Equal(t, 9, s.BestMonthlyReports)
	assert.Equal(t, 6, DistinctDaysInWindow(s.RecentDays, testDay.AddDate(0, 0, 8), WeeklyGoalWindow))
}

func TestFold_RecentDaysPruned(t *testing.T) {
	s := models.NewUserStats("u1")
	foldReports(&s, 0, 1, 40)

	require.Len(t, s.RecentDays, 1)
	assert.True(t, s.RecentDays[0].Day.Equal(utils.DayOf(testDay.AddDate(0, 0, 40))))
	assert.Equal(t, 2, s.BestWeeklyReports, "best windows never decrease")

	// too old for the retained window: counted, but not in windows
	foldReports(&s, 5)
	assert.Equal(t, 4, s.TotalReports)
	assert.Len(t, s.RecentDays, 1)
}

func TestGoalEntries(t *testing.T) {
	day := testDay.AddDate(0, 0, 4)
	s := models.NewUserStats("u1")
	foldReports(&s, 0, 1, 2, 3, 4)
	ev := report("u1", "goal", day)

	goals := goalEntries(s, ev, true)
	require.Len(t, goals, 1)
	assert.Equal(t, models.ReasonWeeklyGoal, goals[0].Reason)
	assert.Equal(t, PointsWeeklyGoal, goals[0].Points)

	fold(&s, goals)
	require.NotNil(t, s.WeeklyGoalAwardedOn)
	assert.True(t, s.WeeklyGoalAwardedOn.Equal(utils.DayOf(day)))

	// same window: no second award
	assert.Empty(t, goalEntries(s, report("u1", "again", day.AddDate(0, 0, 1)), true))
}

func TestGoalDue(t *testing.T) {
	awarded := utils.DayOf(testDay)

	assert.True(t, goalDue(nil, testDay, WeeklyGoalWindow, false))
	assert.False(t, goalDue(&awarded, testDay.AddDate(0, 0, 6), WeeklyGoalWindow, true))
	assert.True(t, goalDue(&awarded, testDay.AddDate(0, 0, 7), WeeklyGoalWindow, true))
	assert.False(t, goalDue(&awarded, testDay.AddDate(0, 0, 30), WeeklyGoalWindow, false))
	assert.False(t, goalDue(&awarded, testDay.AddDate(0, 0, -10), WeeklyGoalWindow, true))
}

func TestPlanReport_BadgesReachFixpoint(t *testing.T) {
	catalog, err := LoadBadgeCatalog()
	require.NoError(t, err)
	p := planner{catalog: catalog, reawardGoals: true}

	current := models.NewUserStats("u1")
	entries := p.planReport(current, report("u1", "r1", testDay), EvalContext{SignupOrder: 3})

	var badges []string
	for _, e := range entries {
		if e.Kind == models.RewardKindBadge {
			badges = append(badges, e.BadgeID)
		}
	}
	assert.ElementsMatch(t, []string{"first_report", "early_adopter"}, badges)
	assert.Equal(t, 2, countReason(entries, models.ReasonBadgeBonus))
	assert.Equal(t, 110, models.PointsTotal(entries))
}
