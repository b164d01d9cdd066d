package core

import (
	"time"

	"carboniq/pkg/models"
	"carboniq/pkg/utils"
)

// StreakTransition is what a report on a given day does to a streak
type StreakTransition int

const (
	// StreakStart is the user's first report day
	StreakStart StreakTransition = iota
	// StreakSameDay is another report on the last report day
	StreakSameDay
	// StreakExtend is a report on the day after the last report day
	StreakExtend
	// StreakReset is a report after a gap of one or more days
	StreakReset
	// StreakLate is a report dated before the last report day
	StreakLate
)

// Goal windows in calendar days and the distinct report days they require
const (
	WeeklyGoalWindow  = 7
	WeeklyGoalDays    = 5
	MonthlyGoalWindow = 30
	MonthlyGoalDays   = 20
)

// NextStreak classifies a report day against the last report day
func NextStreak(lastReportDate *time.Time, day time.Time) StreakTransition {
	if lastReportDate == nil {
		return StreakStart
	}
	switch gap := utils.DaysBetween(*lastReportDate, day); {
	case gap == 0:
		return StreakSameDay
	case gap == 1:
		return StreakExtend
	case gap > 1:
		return StreakReset
	default:
		return StreakLate
	}
}

// advanceStreak moves the streak state of s for a report on day
func advanceStreak(s *models.UserStats, day time.Time) StreakTransition {
	day = utils.DayOf(day)
	t := NextStreak(s.LastReportDate, day)
	switch t {
	case StreakStart, StreakReset:
		s.CurrentStreak = 1
		s.LastReportDate = &day
	case StreakExtend:
		s.CurrentStreak++
		s.LastReportDate = &day
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	return t
}

// DistinctDaysInWindow counts days with at least one report in the
// trailing window of n days ending on day
func DistinctDaysInWindow(days []models.DayCount, day time.Time, n int) int {
	count := 0
	for _, d := range days {
		if d.Count > 0 && utils.InWindow(d.Day, day, n) {
			count++
		}
	}
	return count
}

// goalDue decides whether a goal reached on day may be awarded, given the
// day it was last awarded. Without reaward a goal is awarded once ever;
// with it, once per non-overlapping window.
func goalDue(lastAwarded *time.Time, day time.Time, window int, reaward bool) bool {
	if lastAwarded == nil {
		return true
	}
	return reaward && utils.DaysBetween(*lastAwarded, day) >= window
}

// goalEntries returns the weekly and monthly goal entries a report on day
// earns, judged against the stats after the report was folded in
func goalEntries(s models.UserStats, ev models.ReportCreated, reaward bool) []models.RewardEvent {
	day := utils.DayOf(ev.Timestamp)
	var out []models.RewardEvent

	goal := func(points int, reason string) models.RewardEvent {
		return models.RewardEvent{
			UserID:         ev.UserID,
			Kind:           models.RewardKindPoints,
			Points:         points,
			SourceReportID: ev.SourceReportID,
			Reason:         reason,
			EarnedAt:       ev.Timestamp,
		}
	}

	if DistinctDaysInWindow(s.RecentDays, day, WeeklyGoalWindow) >= WeeklyGoalDays &&
		goalDue(s.WeeklyGoalAwardedOn, day, WeeklyGoalWindow, reaward) {
		out = append(out, goal(PointsWeeklyGoal, models.ReasonWeeklyGoal))
	}
	if DistinctDaysInWindow(s.RecentDays, day, MonthlyGoalWindow) >= MonthlyGoalDays &&
		goalDue(s.MonthlyGoalAwardedOn, day, MonthlyGoalWindow, reaward) {
		out = append(out, goal(PointsMonthlyGoal, models.ReasonMonthlyGoal))
	}
	return out
}
