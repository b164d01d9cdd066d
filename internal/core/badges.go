package core

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"carboniq/pkg/models"
)

//go:embed badges.yaml
var defaultBadges []byte

// Metrics a badge threshold can be declared over
const (
	MetricTotalReports       = "total_reports"
	MetricBestWeeklyReports  = "best_weekly_reports"
	MetricBestMonthlyReports = "best_monthly_reports"
	MetricReportsWithImages  = "reports_with_images"
	MetricReportsWithDetail  = "reports_with_detail"
	MetricReportsMarkedSafe  = "reports_marked_safe"
	MetricUrbanReports       = "urban_reports"
	MetricRuralReports       = "rural_reports"
	MetricWasteTypesCovered  = "waste_types_covered"
	MetricLongestStreak      = "longest_streak"
	MetricSignupOrder        = "signup_order"
	MetricInstitutionLeader  = "institution_leader"
)

var statMetrics = map[string]func(models.UserStats) int{
	MetricTotalReports:       func(s models.UserStats) int { return s.TotalReports },
	MetricBestWeeklyReports:  func(s models.UserStats) int { return s.BestWeeklyReports },
	MetricBestMonthlyReports: func(s models.UserStats) int { return s.BestMonthlyReports },
	MetricReportsWithImages:  func(s models.UserStats) int { return s.ReportsWithImages },
	MetricReportsWithDetail:  func(s models.UserStats) int { return s.ReportsWithDetail },
	MetricReportsMarkedSafe:  func(s models.UserStats) int { return s.ReportsMarkedSafe },
	MetricUrbanReports:       func(s models.UserStats) int { return s.ReportsByArea.Urban },
	MetricRuralReports:       func(s models.UserStats) int { return s.ReportsByArea.Rural },
	MetricWasteTypesCovered:  func(s models.UserStats) int { return s.WasteTypesCovered() },
	MetricLongestStreak:      func(s models.UserStats) int { return s.LongestStreak },
}

// EvalContext carries the cross-user inputs some badges need. They are
// read-only snapshots supplied by the caller.
type EvalContext struct {
	// SignupOrder is the user's signup sequence number, 0 when unknown.
	SignupOrder int64
	// EarlyAdopterLimit overrides the signup_order threshold when positive.
	EarlyAdopterLimit int
	// InstitutionLeader is set only by the cross-user recomputation pass.
	InstitutionLeader bool
}

// Badge is a catalogue entry with its unlock predicate
type Badge struct {
	models.BadgeDefinition `yaml:",inline"`
	Metric                 string `yaml:"metric"`
}

// Current is the value of the badge's metric for s
func (b Badge) Current(s models.UserStats, ectx EvalContext) int {
	switch b.Metric {
	case MetricSignupOrder:
		return int(ectx.SignupOrder)
	case MetricInstitutionLeader:
		if ectx.InstitutionLeader {
			return 1
		}
		return 0
	}
	return statMetrics[b.Metric](s)
}

// Target is the threshold the metric is compared against
func (b Badge) Target(ectx EvalContext) int {
	if b.Metric == MetricSignupOrder && ectx.EarlyAdopterLimit > 0 {
		return ectx.EarlyAdopterLimit
	}
	return b.Threshold
}

// Unlocked evaluates the predicate. Every predicate is monotone in the
// counters it reads.
func (b Badge) Unlocked(s models.UserStats, ectx EvalContext) bool {
	if b.Metric == MetricSignupOrder {
		return ectx.SignupOrder > 0 && ectx.SignupOrder <= int64(b.Target(ectx))
	}
	return b.Current(s, ectx) >= b.Target(ectx)
}

// BadgeCatalog is the closed set of badges, fixed at process start
type BadgeCatalog struct {
	badges []Badge
	byID   map[string]int
}

// LoadBadgeCatalog parses the embedded catalogue
func LoadBadgeCatalog() (*BadgeCatalog, error) {
	return ParseBadgeCatalog(defaultBadges)
}

// ParseBadgeCatalog parses and validates a YAML badge list
func ParseBadgeCatalog(raw []byte) (*BadgeCatalog, error) {
	var badges []Badge
	if err := yaml.Unmarshal(raw, &badges); err != nil {
		return nil, fmt.Errorf("failed to parse badge catalogue: %w", err)
	}

	c := &BadgeCatalog{badges: badges, byID: make(map[string]int, len(badges))}
	for i, b := range badges {
		if b.ID == "" {
			return nil, fmt.Errorf("%w: badge %d has no id", models.ErrInvalidInput, i)
		}
		if _, dup := c.byID[b.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate badge %s", models.ErrInvalidInput, b.ID)
		}
		if !b.Category.Valid() {
			return nil, fmt.Errorf("%w: badge %s has unknown category %q", models.ErrInvalidInput, b.ID, b.Category)
		}
		if _, ok := statMetrics[b.Metric]; !ok && b.Metric != MetricSignupOrder && b.Metric != MetricInstitutionLeader {
			return nil, fmt.Errorf("%w: badge %s has unknown metric %q", models.ErrInvalidInput, b.ID, b.Metric)
		}
		if b.Threshold <= 0 || b.RewardPoints < 0 {
			return nil, fmt.Errorf("%w: badge %s needs a positive threshold", models.ErrInvalidInput, b.ID)
		}
		c.byID[b.ID] = i
	}
	return c, nil
}

// Definitions returns the public metadata of every badge in catalogue order
func (c *BadgeCatalog) Definitions() []models.BadgeDefinition {
	defs := make([]models.BadgeDefinition, len(c.badges))
	for i, b := range c.badges {
		defs[i] = b.BadgeDefinition
	}
	return defs
}

// Get looks a badge up by id
func (c *BadgeCatalog) Get(id string) (Badge, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Badge{}, false
	}
	return c.badges[i], true
}

// Evaluate returns the badges s unlocks that it does not hold yet
func (c *BadgeCatalog) Evaluate(s models.UserStats, ectx EvalContext) []Badge {
	var unlocked []Badge
	for _, b := range c.badges {
		if !s.HasBadge(b.ID) && b.Unlocked(s, ectx) {
			unlocked = append(unlocked, b)
		}
	}
	return unlocked
}

// Progress reports each badge's unlock state for s
func (c *BadgeCatalog) Progress(s models.UserStats, ectx EvalContext) []models.AchievementProgress {
	out := make([]models.AchievementProgress, 0, len(c.badges))
	for _, b := range c.badges {
		p := models.AchievementProgress{
			Badge:    b.BadgeDefinition,
			Unlocked: s.HasBadge(b.ID),
			Current:  b.Current(s, ectx),
			Target:   b.Target(ectx),
		}

		switch {
		case p.Unlocked:
			p.Percentage = 100
		case b.Metric == MetricSignupOrder:
			// lower is better; progress is all or nothing
			if b.Unlocked(s, ectx) {
				p.Percentage = 100
			}
		case p.Target > 0:
			p.Percentage = float64(p.Current) / float64(p.Target) * 100
			if p.Percentage > 100 {
				p.Percentage = 100
			}
		}
		out = append(out, p)
	}
	return out
}

// badgeEntries builds the ledger entries for newly unlocked badges: the
// badge itself and its point bonus, both dated at at
func badgeEntries(userID, sourceReportID string, badges []Badge, at time.Time) []models.RewardEvent {
	var out []models.RewardEvent
	for _, b := range badges {
		out = append(out, models.RewardEvent{
			UserID:         userID,
			Kind:           models.RewardKindBadge,
			BadgeID:        b.ID,
			SourceReportID: sourceReportID,
			Reason:         models.ReasonBadgeEarned,
			EarnedAt:       at,
		})
		if b.RewardPoints > 0 {
			out = append(out, models.RewardEvent{
				UserID:         userID,
				Kind:           models.RewardKindPoints,
				Points:         b.RewardPoints,
				BadgeID:        b.ID,
				SourceReportID: sourceReportID,
				Reason:         models.ReasonBadgeBonus,
				EarnedAt:       at,
			})
		}
	}
	return out
}
