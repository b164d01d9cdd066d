// Package models - Rewards ledger and report intake types
package models

import (
	"fmt"
	"strings"
	"time"
)

// RewardKind separates point grants from badge unlocks in the ledger
type RewardKind string

const (
	RewardKindPoints RewardKind = "points"
	RewardKindBadge  RewardKind = "badge"
)

// Valid reports whether k is a known kind
func (k RewardKind) Valid() bool {
	return k == RewardKindPoints || k == RewardKindBadge
}

// Ledger reasons
const (
	ReasonReportCreated = "report_created"
	ReasonHasImage      = "has_image"
	ReasonDetailed      = "detailed"
	ReasonDailyStreak   = "daily_streak"
	ReasonWeeklyGoal    = "weekly_goal"
	ReasonMonthlyGoal   = "monthly_goal"
	ReasonBadgeEarned   = "badge_earned"
	ReasonBadgeBonus    = "badge_bonus"
)

// WasteType is the category a report was filed under
type WasteType string

const (
	WasteOrganic           WasteType = "organic"
	WasteRecyclablePlastic WasteType = "recyclable_plastic"
	WasteRecyclablePaper   WasteType = "recyclable_paper"
	WasteRecyclableGlass   WasteType = "recyclable_glass"
	WasteElectronic        WasteType = "e_waste"
	WasteCollection        WasteType = "waste_collection"
	WasteMixed             WasteType = "mixed"
)

// AllWasteTypes lists every known waste type in display order
var AllWasteTypes = []WasteType{
	WasteOrganic,
	WasteRecyclablePlastic,
	WasteRecyclablePaper,
	WasteRecyclableGlass,
	WasteElectronic,
	WasteCollection,
	WasteMixed,
}

// Known reports whether w is one of AllWasteTypes
func (w WasteType) Known() bool {
	for _, t := range AllWasteTypes {
		if t == w {
			return true
		}
	}
	return false
}

// ReportFacts are the report attributes a report_created ledger entry keeps,
// so counters can be rebuilt from the ledger alone.
type ReportFacts struct {
	WasteType       WasteType `json:"waste_type"`
	HasImage        bool      `json:"has_image"`
	HasMeasurements bool      `json:"has_measurements"`
	HasFeedback     bool      `json:"has_feedback"`
	IsSafe          bool      `json:"is_safe"`
	IsUrban         bool      `json:"is_urban"`
	InstitutionID   *string   `json:"institution_id,omitempty"`
}

// Detailed is true when both measurements and feedback text were supplied
func (f ReportFacts) Detailed() bool {
	return f.HasMeasurements && f.HasFeedback
}

// RewardEvent is one immutable ledger entry
type RewardEvent struct {
	ID             string       `json:"id" db:"id"`
	Seq            int64        `json:"seq" db:"seq"`
	UserID         string       `json:"user_id" db:"user_id"`
	Kind           RewardKind   `json:"kind" db:"kind"`
	Points         int          `json:"points,omitempty" db:"points"`
	BadgeID        string       `json:"badge_id,omitempty" db:"badge_id"`
	SourceReportID string       `json:"source_report_id" db:"source_report_id"`
	Reason         string       `json:"reason" db:"reason"`
	EarnedAt       time.Time    `json:"earned_at" db:"earned_at"`
	Report         *ReportFacts `json:"report,omitempty" db:"report"`
}

// DedupKey is the idempotency key enforced by the ledger. Report-driven entries
// are keyed by (user, report, reason); badges and their bonus by (user, badge).
func (e RewardEvent) DedupKey() string {
	switch {
	case e.Kind == RewardKindBadge:
		return strings.Join([]string{e.UserID, "badge", e.BadgeID}, "|")
	case e.Reason == ReasonBadgeBonus:
		return strings.Join([]string{e.UserID, ReasonBadgeBonus, e.BadgeID}, "|")
	default:
		return strings.Join([]string{e.UserID, e.SourceReportID, e.Reason}, "|")
	}
}

// ReportCreated is the single event the engine consumes
type ReportCreated struct {
	UserID          string    `json:"user_id"`
	SourceReportID  string    `json:"source_report_id"`
	Timestamp       time.Time `json:"timestamp"`
	HasImage        bool      `json:"has_image"`
	HasMeasurements bool      `json:"has_measurements"`
	HasFeedback     bool      `json:"has_feedback"`
	WasteType       WasteType `json:"waste_type"`
	IsSafe          bool      `json:"is_safe"`
	IsUrban         bool      `json:"is_urban"`
	InstitutionID   *string   `json:"institution_id,omitempty"`
}

// Normalize pins the timestamp to UTC at microsecond precision, the
// resolution every store keeps, so replayed and live folds agree.
func (e *ReportCreated) Normalize() {
	e.UserID = strings.TrimSpace(e.UserID)
	e.SourceReportID = strings.TrimSpace(e.SourceReportID)
	e.Timestamp = e.Timestamp.UTC().Truncate(time.Microsecond)
	if e.InstitutionID != nil && strings.TrimSpace(*e.InstitutionID) == "" {
		e.InstitutionID = nil
	}
}

// Validate checks the fields the engine depends on
func (e ReportCreated) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if e.SourceReportID == "" {
		return fmt.Errorf("%w: source_report_id is required", ErrInvalidInput)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidInput)
	}
	return nil
}

// Facts extracts the attributes kept on the ledger
func (e ReportCreated) Facts() *ReportFacts {
	facts := &ReportFacts{
		WasteType:       e.WasteType,
		HasImage:        e.HasImage,
		HasMeasurements: e.HasMeasurements,
		HasFeedback:     e.HasFeedback,
		IsSafe:          e.IsSafe,
		IsUrban:         e.IsUrban,
	}
	if e.InstitutionID != nil {
		id := *e.InstitutionID
		facts.InstitutionID = &id
	}
	return facts
}

// HistoryPage is one page of a user's ledger, newest first
type HistoryPage struct {
	Rewards []RewardEvent  `json:"rewards"`
	Meta    PaginationMeta `json:"meta"`
}

// ProcessResult reports what one ReportCreated pass did
type ProcessResult struct {
	Duplicate bool          `json:"duplicate"`
	Awarded   []RewardEvent `json:"awarded"`
	Stats     UserStats     `json:"stats"`
}

// PointsTotal sums the points carried by entries
func PointsTotal(entries []RewardEvent) int {
	total := 0
	for _, e := range entries {
		total += e.Points
	}
	return total
}
