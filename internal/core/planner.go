package core

import (
	"time"

	"carboniq/pkg/models"
	"carboniq/pkg/utils"
)

// planner turns one report into the ledger entries it earns
type planner struct {
	catalog      *BadgeCatalog
	reawardGoals bool
}

// planReport computes every entry a report earns against the user's current
// stats: report points, the streak bonus, goals and badges. It is pure;
// entries come back without ids or sequence numbers.
func (p planner) planReport(current models.UserStats, ev models.ReportCreated, ectx EvalContext) []models.RewardEvent {
	preview := current.Clone()
	entries := ComputePoints(ev)
	fold(&preview, entries)

	if NextStreak(current.LastReportDate, utils.DayOf(ev.Timestamp)) == StreakExtend {
		bonus := models.RewardEvent{
			UserID:         ev.UserID,
			Kind:           models.RewardKindPoints,
			Points:         PointsDailyStreak,
			SourceReportID: ev.SourceReportID,
			Reason:         models.ReasonDailyStreak,
			EarnedAt:       ev.Timestamp,
		}
		fold(&preview, []models.RewardEvent{bonus})
		entries = append(entries, bonus)
	}

	goals := goalEntries(preview, ev, p.reawardGoals)
	fold(&preview, goals)
	entries = append(entries, goals...)

	return append(entries, p.planBadges(&preview, ev.SourceReportID, ev.Timestamp, ectx)...)
}

// planBadges evaluates the catalogue against preview until no further
// badge unlocks, folding each award into preview as it goes
func (p planner) planBadges(preview *models.UserStats, sourceReportID string, at time.Time, ectx EvalContext) []models.RewardEvent {
	var out []models.RewardEvent
	for {
		unlocked := p.catalog.Evaluate(*preview, ectx)
		if len(unlocked) == 0 {
			return out
		}
		awarded := badgeEntries(preview.UserID, sourceReportID, unlocked, at)
		fold(preview, awarded)
		out = append(out, awarded...)
	}
}
