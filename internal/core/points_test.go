package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboniq/pkg/models"
)

func TestComputePoints(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.ReportCreated)
		reasons []string
		total   int
	}{
		{
			name:    "plain report",
			mutate:  func(*models.ReportCreated) {},
			reasons: []string{models.ReasonReportCreated},
			total:   10,
		},
		{
			name:    "with image",
			mutate:  func(ev *models.ReportCreated) { ev.HasImage = true },
			reasons: []string{models.ReasonReportCreated, models.ReasonHasImage},
			total:   15,
		},
		{
			name: "measurements without feedback is not detailed",
			mutate: func(ev *models.ReportCreated) {
				ev.HasMeasurements = true
			},
			reasons: []string{models.ReasonReportCreated},
			total:   10,
		},
		{
			name: "fully detailed",
			mutate: func(ev *models.ReportCreated) {
				ev.HasImage = true
				ev.HasMeasurements = true
				ev.HasFeedback = true
				ev.IsSafe = true
			},
			reasons: []string{models.ReasonReportCreated, models.ReasonHasImage, models.ReasonDetailed},
			total:   18,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := report("u1", "r1", testDay)
			tt.mutate(&ev)

			entries := ComputePoints(ev)
			var reasons []string
			for _, e := range entries {
				reasons = append(reasons, e.Reason)
				assert.Equal(t, models.RewardKindPoints, e.Kind)
				assert.Equal(t, "r1", e.SourceReportID)
				assert.True(t, e.EarnedAt.Equal(testDay))
			}
			assert.Equal(t, tt.reasons, reasons)
			assert.Equal(t, tt.total, models.PointsTotal(entries))

			require.NotNil(t, entries[0].Report)
			assert.Equal(t, ev.IsSafe, entries[0].Report.IsSafe)
			for _, e := range entries[1:] {
				assert.Nil(t, e.Report)
			}
		})
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		points, level, next int
	}{
		{0, 1, 100},
		{99, 1, 100},
		{100, 2, 250},
		{68, 1, 100},
		{12000, 10, 17000},
		{75000, 15, 75000},
		{1000000, 15, 75000},
	}
	for _, tt := range tests {
		level, next := LevelFor(tt.points)
		assert.Equal(t, tt.level, level, "points=%d", tt.points)
		assert.Equal(t, tt.next, next, "points=%d", tt.points)
	}
}
