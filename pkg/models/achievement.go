// Package models - Badge catalogue and achievement progress
package models

import "time"

// BadgeCategory groups badges for display
type BadgeCategory string

const (
	BadgeCategoryReporting BadgeCategory = "reporting"
	BadgeCategoryQuality   BadgeCategory = "quality"
	BadgeCategoryCommunity BadgeCategory = "community"
	BadgeCategorySpecial   BadgeCategory = "special"
)

// Valid reports whether c is one of the four catalogue categories
func (c BadgeCategory) Valid() bool {
	switch c {
	case BadgeCategoryReporting, BadgeCategoryQuality, BadgeCategoryCommunity, BadgeCategorySpecial:
		return true
	}
	return false
}

// BadgeDefinition is the public metadata of a catalogue badge
type BadgeDefinition struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	Description  string        `json:"description" yaml:"description"`
	Category     BadgeCategory `json:"category" yaml:"category"`
	Icon         string        `json:"icon,omitempty" yaml:"icon"`
	Threshold    int           `json:"threshold" yaml:"threshold"`
	RewardPoints int           `json:"reward_points" yaml:"points"`
}

// AchievementProgress is one badge's unlock state for a user
type AchievementProgress struct {
	Badge      BadgeDefinition `json:"badge"`
	Unlocked   bool            `json:"unlocked"`
	Current    int             `json:"current"`
	Target     int             `json:"target"`
	Percentage float64         `json:"percentage"`
}

// RecentAchievement is a badge unlock shown on the community feed
type RecentAchievement struct {
	UserID    string    `json:"user_id"`
	BadgeID   string    `json:"badge_id"`
	BadgeName string    `json:"badge_name"`
	Icon      string    `json:"icon,omitempty"`
	EarnedAt  time.Time `json:"earned_at"`
}
