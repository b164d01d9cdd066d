package core

import (
	"sort"
	"time"

	"carboniq/pkg/models"
	"carboniq/pkg/utils"
)

// fold applies ledger entries to s in order. Live application and full
// rebuilds both go through here, so the same ledger yields the same stats.
func fold(s *models.UserStats, entries []models.RewardEvent) {
	for _, e := range entries {
		applyEntry(s, e)
	}
}

func applyEntry(s *models.UserStats, e models.RewardEvent) {
	if e.Seq > s.LedgerCheckpoint {
		s.LedgerCheckpoint = e.Seq
	}
	if e.Kind == models.RewardKindPoints {
		s.TotalPoints += e.Points
	}

	switch {
	case e.Kind == models.RewardKindBadge:
		s.AddBadge(e.BadgeID)
	case e.Reason == models.ReasonReportCreated && e.Report != nil:
		foldReport(s, e.EarnedAt, *e.Report)
	case e.Reason == models.ReasonWeeklyGoal:
		s.WeeklyGoalAwardedOn = laterDay(s.WeeklyGoalAwardedOn, e.EarnedAt)
	case e.Reason == models.ReasonMonthlyGoal:
		s.MonthlyGoalAwardedOn = laterDay(s.MonthlyGoalAwardedOn, e.EarnedAt)
	}
}

func foldReport(s *models.UserStats, at time.Time, f models.ReportFacts) {
	if s.ReportsByWasteType == nil {
		s.ReportsByWasteType = map[models.WasteType]int{}
	}

	s.TotalReports++
	if f.HasImage {
		s.ReportsWithImages++
	}
	if f.Detailed() {
		s.ReportsWithDetail++
	}
	if f.IsSafe {
		s.ReportsMarkedSafe++
	}
	if f.WasteType != "" {
		s.ReportsByWasteType[f.WasteType]++
	}
	if f.IsUrban {
		s.ReportsByArea.Urban++
	} else {
		s.ReportsByArea.Rural++
	}
	if f.InstitutionID != nil {
		id := *f.InstitutionID
		s.InstitutionID = &id
	}
	if s.LastReportAt == nil || at.After(*s.LastReportAt) {
		t := at.UTC()
		s.LastReportAt = &t
	}

	advanceStreak(s, at)
	recordReportDay(s, utils.DayOf(at))
}

func laterDay(current *time.Time, at time.Time) *time.Time {
	day := utils.DayOf(at)
	if current != nil && !day.After(*current) {
		return current
	}
	return &day
}

// recordReportDay counts a report in RecentDays, keeps only the trailing
// monthly window before the latest day and raises the best window totals.
// Reports older than the retained window do not count toward windows.
func recordReportDay(s *models.UserStats, day time.Time) {
	latest := day
	if n := len(s.RecentDays); n > 0 && s.RecentDays[n-1].Day.After(latest) {
		latest = s.RecentDays[n-1].Day
	}
	start := utils.WindowStart(latest, MonthlyGoalWindow)
	if day.Before(start) {
		return
	}

	days := s.RecentDays
	i := sort.Search(len(days), func(i int) bool { return !days[i].Day.Before(day) })
	if i < len(days) && days[i].Day.Equal(day) {
		days[i].Count++
	} else {
		days = append(days, models.DayCount{})
		copy(days[i+1:], days[i:])
		days[i] = models.DayCount{Day: day, Count: 1}
	}

	j := sort.Search(len(days), func(i int) bool { return !days[i].Day.Before(start) })
	s.RecentDays = append([]models.DayCount(nil), days[j:]...)

	if best := bestWindow(s.RecentDays, day, latest, WeeklyGoalWindow); best > s.BestWeeklyReports {
		s.BestWeeklyReports = best
	}
	if best := bestWindow(s.RecentDays, day, latest, MonthlyGoalWindow); best > s.BestMonthlyReports {
		s.BestMonthlyReports = best
	}
}

// bestWindow is the largest report count over the n-day windows that
// contain day and end no later than latest
func bestWindow(days []models.DayCount, day, latest time.Time, n int) int {
	best := 0
	for end := day; !end.After(latest) && utils.DaysBetween(day, end) < n; end = utils.AddDays(end, 1) {
		if sum := windowSum(days, end, n); sum > best {
			best = sum
		}
	}
	return best
}

func windowSum(days []models.DayCount, end time.Time, n int) int {
	sum := 0
	for _, d := range days {
		if utils.InWindow(d.Day, end, n) {
			sum += d.Count
		}
	}
	return sum
}
