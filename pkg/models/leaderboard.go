package models

import (
	"fmt"
	"strings"
	"time"
)

// ScopeKind is the population a leaderboard ranks over
type ScopeKind string

const (
	ScopeGlobal      ScopeKind = "global"
	ScopeInstitution ScopeKind = "institution"
	ScopeCategory    ScopeKind = "category"
	ScopeTimeWindow  ScopeKind = "window"
)

// Category metrics for ScopeCategory
const (
	CategoryPoints  = "points"
	CategoryReports = "reports"
	CategoryStreak  = "streak"
	CategoryBadges  = "badges"
)

// Period selects a time window
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all_time"
)

// ParsePeriod accepts the period names used by the API, defaulting to all_time
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case "", PeriodAllTime, "all-time", "alltime":
		return PeriodAllTime, nil
	case PeriodWeekly:
		return PeriodWeekly, nil
	case PeriodMonthly:
		return PeriodMonthly, nil
	}
	return "", fmt.Errorf("%w: unknown period %q", ErrInvalidInput, s)
}

// Scope identifies one leaderboard. Value is the institution id, the
// category metric or the period, depending on Kind.
type Scope struct {
	Kind  ScopeKind `json:"kind"`
	Value string    `json:"value,omitempty"`
}

func GlobalScope() Scope                  { return Scope{Kind: ScopeGlobal} }
func InstitutionScope(id string) Scope    { return Scope{Kind: ScopeInstitution, Value: id} }
func CategoryScope(metric string) Scope   { return Scope{Kind: ScopeCategory, Value: metric} }
func TimeWindowScope(period Period) Scope { return Scope{Kind: ScopeTimeWindow, Value: string(period)} }

// Key is the stable string form used for board lookups and mirror keys
func (s Scope) Key() string {
	if s.Value == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + ":" + s.Value
}

func (s Scope) String() string {
	return s.Key()
}

// Validate checks that the scope names a board the ranker maintains
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeGlobal:
		return nil
	case ScopeInstitution:
		if s.Value == "" {
			return fmt.Errorf("%w: institution id is required", ErrInvalidInput)
		}
		return nil
	case ScopeCategory:
		switch s.Value {
		case CategoryPoints, CategoryReports, CategoryStreak, CategoryBadges:
			return nil
		}
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, s.Value)
	case ScopeTimeWindow:
		if _, err := ParsePeriod(s.Value); err != nil {
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: unknown scope %q", ErrInvalidInput, s.Kind)
}

// LeaderboardEntry is one ranked row
type LeaderboardEntry struct {
	Scope         string    `json:"scope"`
	UserID        string    `json:"user_id"`
	Score         int       `json:"score"`
	Rank          int       `json:"rank"`
	AchievedAt    time.Time `json:"achieved_at"`
	InstitutionID *string   `json:"institution_id,omitempty"`
}

// LeaderboardQuery selects a board and an optional window
type LeaderboardQuery struct {
	Scope  Scope
	Period Period
	Limit  int
}

// LeaderboardResult is a board listing. Warning is set when a batch
// board is served from a snapshot older than the staleness bound.
type LeaderboardResult struct {
	Scope      string             `json:"scope"`
	Period     Period             `json:"period"`
	Entries    []LeaderboardEntry `json:"entries"`
	Total      int                `json:"total"`
	ComputedAt time.Time          `json:"computed_at"`
	Warning    string             `json:"warning,omitempty"`
}

// UserRank answers "where am I" for one board
type UserRank struct {
	UserID     string  `json:"user_id"`
	Scope      string  `json:"scope"`
	Period     Period  `json:"period"`
	Position   int     `json:"position"`
	Total      int     `json:"total"`
	Score      int     `json:"score"`
	Percentile float64 `json:"percentile"`
	Warning    string  `json:"warning,omitempty"`
}

// WindowScore is a user's points earned inside a time window
type WindowScore struct {
	UserID       string    `json:"user_id"`
	Points       int       `json:"points"`
	LastEarnedAt time.Time `json:"last_earned_at"`
}

// InstitutionRanking aggregates members of one institution
type InstitutionRanking struct {
	InstitutionID string  `json:"institution_id"`
	Rank          int     `json:"rank"`
	Members       int     `json:"members"`
	TotalPoints   int     `json:"total_points"`
	TotalReports  int     `json:"total_reports"`
	AveragePoints float64 `json:"average_points"`
	TopStreak     int     `json:"top_streak"`
}
