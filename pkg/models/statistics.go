package models

import (
	"sort"
	"time"
)

// AreaCounts splits reports by the area they were filed in
type AreaCounts struct {
	Urban int `json:"urban"`
	Rural int `json:"rural"`
}

// DayCount is the number of reports filed on one UTC calendar day
type DayCount struct {
	Day   time.Time `json:"day"`
	Count int       `json:"count"`
}

// UserStats is the per-user aggregate folded from the ledger
type UserStats struct {
	UserID             string            `json:"user_id" db:"user_id"`
	TotalPoints        int               `json:"total_points" db:"total_points"`
	TotalReports       int               `json:"total_reports" db:"total_reports"`
	BadgesEarned       []string          `json:"badges_earned" db:"badges_earned"`
	CurrentStreak      int               `json:"current_streak" db:"current_streak"`
	LongestStreak      int               `json:"longest_streak" db:"longest_streak"`
	ReportsWithImages  int               `json:"reports_with_images" db:"reports_with_images"`
	ReportsWithDetail  int               `json:"reports_with_detail" db:"reports_with_detail"`
	ReportsMarkedSafe  int               `json:"reports_marked_safe" db:"reports_marked_safe"`
	ReportsByWasteType map[WasteType]int `json:"reports_by_waste_type" db:"reports_by_waste_type"`
	ReportsByArea      AreaCounts        `json:"reports_by_area" db:"reports_by_area"`
	LastReportDate     *time.Time        `json:"last_report_date,omitempty" db:"last_report_date"`
	LastReportAt       *time.Time        `json:"last_report_at,omitempty" db:"last_report_at"`
	InstitutionID      *string           `json:"institution_id,omitempty" db:"institution_id"`
	Rank               *int              `json:"rank,omitempty" db:"-"`

	// Rolling report history backing the window badges and goals.
	BestWeeklyReports    int        `json:"best_weekly_reports" db:"best_weekly_reports"`
	BestMonthlyReports   int        `json:"best_monthly_reports" db:"best_monthly_reports"`
	RecentDays           []DayCount `json:"recent_days,omitempty" db:"recent_days"`
	WeeklyGoalAwardedOn  *time.Time `json:"weekly_goal_awarded_on,omitempty" db:"weekly_goal_awarded_on"`
	MonthlyGoalAwardedOn *time.Time `json:"monthly_goal_awarded_on,omitempty" db:"monthly_goal_awarded_on"`

	LedgerCheckpoint int64 `json:"-" db:"ledger_checkpoint"`
	Version          int64 `json:"-" db:"version"`
}

// NewUserStats returns the zero-valued aggregate for a user with no history
func NewUserStats(userID string) UserStats {
	return UserStats{
		UserID:             userID,
		BadgesEarned:       []string{},
		ReportsByWasteType: map[WasteType]int{},
	}
}

// HasBadge reports whether badgeID was already earned
func (s UserStats) HasBadge(badgeID string) bool {
	i := sort.SearchStrings(s.BadgesEarned, badgeID)
	return i < len(s.BadgesEarned) && s.BadgesEarned[i] == badgeID
}

// AddBadge inserts badgeID keeping BadgesEarned sorted and unique
func (s *UserStats) AddBadge(badgeID string) bool {
	i := sort.SearchStrings(s.BadgesEarned, badgeID)
	if i < len(s.BadgesEarned) && s.BadgesEarned[i] == badgeID {
		return false
	}
	s.BadgesEarned = append(s.BadgesEarned, "")
	copy(s.BadgesEarned[i+1:], s.BadgesEarned[i:])
	s.BadgesEarned[i] = badgeID
	return true
}

// WasteTypesCovered counts known waste types with at least one report
func (s UserStats) WasteTypesCovered() int {
	n := 0
	for _, t := range AllWasteTypes {
		if s.ReportsByWasteType[t] > 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy
func (s UserStats) Clone() UserStats {
	out := s
	out.BadgesEarned = append([]string{}, s.BadgesEarned...)
	out.ReportsByWasteType = make(map[WasteType]int, len(s.ReportsByWasteType))
	for k, v := range s.ReportsByWasteType {
		out.ReportsByWasteType[k] = v
	}
	if s.RecentDays != nil {
		out.RecentDays = append([]DayCount{}, s.RecentDays...)
	}
	out.LastReportDate = cloneTime(s.LastReportDate)
	out.LastReportAt = cloneTime(s.LastReportAt)
	out.WeeklyGoalAwardedOn = cloneTime(s.WeeklyGoalAwardedOn)
	out.MonthlyGoalAwardedOn = cloneTime(s.MonthlyGoalAwardedOn)
	if s.InstitutionID != nil {
		id := *s.InstitutionID
		out.InstitutionID = &id
	}
	if s.Rank != nil {
		r := *s.Rank
		out.Rank = &r
	}
	return out
}

// Diff lists the aggregate fields that differ between s and other.
// Rank and Version are bookkeeping and never compared.
func (s UserStats) Diff(other UserStats) []string {
	var fields []string
	add := func(name string, differs bool) {
		if differs {
			fields = append(fields, name)
		}
	}
	add("total_points", s.TotalPoints != other.TotalPoints)
	add("total_reports", s.TotalReports != other.TotalReports)
	add("badges_earned", !equalStrings(s.BadgesEarned, other.BadgesEarned))
	add("current_streak", s.CurrentStreak != other.CurrentStreak)
	add("longest_streak", s.LongestStreak != other.LongestStreak)
	add("reports_with_images", s.ReportsWithImages != other.ReportsWithImages)
	add("reports_with_detail", s.ReportsWithDetail != other.ReportsWithDetail)
	add("reports_marked_safe", s.ReportsMarkedSafe != other.ReportsMarkedSafe)
	add("reports_by_waste_type", !equalCounts(s.ReportsByWasteType, other.ReportsByWasteType))
	add("reports_by_area", s.ReportsByArea != other.ReportsByArea)
	add("last_report_date", !equalTime(s.LastReportDate, other.LastReportDate))
	add("last_report_at", !equalTime(s.LastReportAt, other.LastReportAt))
	add("institution_id", !equalString(s.InstitutionID, other.InstitutionID))
	add("best_weekly_reports", s.BestWeeklyReports != other.BestWeeklyReports)
	add("best_monthly_reports", s.BestMonthlyReports != other.BestMonthlyReports)
	add("recent_days", !equalDays(s.RecentDays, other.RecentDays))
	add("weekly_goal_awarded_on", !equalTime(s.WeeklyGoalAwardedOn, other.WeeklyGoalAwardedOn))
	add("monthly_goal_awarded_on", !equalTime(s.MonthlyGoalAwardedOn, other.MonthlyGoalAwardedOn))
	add("ledger_checkpoint", s.LedgerCheckpoint != other.LedgerCheckpoint)
	return fields
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalCounts(a, b map[WasteType]int) bool {
	for k, v := range a {
		if v != 0 && b[k] != v {
			return false
		}
	}
	for k, v := range b {
		if v != 0 && a[k] != v {
			return false
		}
	}
	return true
}

func equalDays(a, b []DayCount) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Day.Equal(b[i].Day) || a[i].Count != b[i].Count {
			return false
		}
	}
	return true
}

// StatsResponse is UserStats plus the derived level and points breakdown
type StatsResponse struct {
	UserStats
	Level             int            `json:"level"`
	NextLevelPoints   int            `json:"next_level_points"`
	PointsToNextLevel int            `json:"points_to_next_level"`
	PointsBreakdown   map[string]int `json:"points_breakdown"`
}

// Profile is the combined view a user sees on their rewards page
type Profile struct {
	Stats               StatsResponse         `json:"stats"`
	RecentRewards       []RewardEvent         `json:"recent_rewards"`
	AchievementProgress []AchievementProgress `json:"achievement_progress"`
}

// RecalculationSummary is returned by the admin repair pass
type RecalculationSummary struct {
	UsersProcessed     int           `json:"users_processed"`
	DiscrepanciesFixed int           `json:"discrepancies_fixed"`
	BadgesAwarded      int           `json:"badges_awarded"`
	Duration           time.Duration `json:"duration_ns"`
}
