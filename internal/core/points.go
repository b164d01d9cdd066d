package core

import "carboniq/pkg/models"

// Point values granted by the engine
const (
	PointsReportCreated = 10
	PointsHasImage      = 5
	PointsDetailed      = 3
	PointsDailyStreak   = 2
	PointsWeeklyGoal    = 25
	PointsMonthlyGoal   = 100
)

// ComputePoints derives the report-driven point entries for one event.
// It knows nothing about the user's history; the report_created entry
// carries the report facts so counters can be rebuilt from the ledger.
func ComputePoints(ev models.ReportCreated) []models.RewardEvent {
	entry := func(points int, reason string) models.RewardEvent {
		return models.RewardEvent{
			UserID:         ev.UserID,
			Kind:           models.RewardKindPoints,
			Points:         points,
			SourceReportID: ev.SourceReportID,
			Reason:         reason,
			EarnedAt:       ev.Timestamp,
		}
	}

	base := entry(PointsReportCreated, models.ReasonReportCreated)
	base.Report = ev.Facts()
	entries := []models.RewardEvent{base}

	if ev.HasImage {
		entries = append(entries, entry(PointsHasImage, models.ReasonHasImage))
	}
	if ev.HasMeasurements && ev.HasFeedback {
		entries = append(entries, entry(PointsDetailed, models.ReasonDetailed))
	}
	return entries
}
