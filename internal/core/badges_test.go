package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboniq/pkg/models"
)

func TestLoadBadgeCatalog(t *testing.T) {
	catalog, err := LoadBadgeCatalog()
	require.NoError(t, err)

	defs := catalog.Definitions()
	require.Len(t, defs, 14)
	assert.Equal(t, "first_report", defs[0].ID)

	seen := map[string]bool{}
	for _, d := range defs {
		assert.False(t, seen[d.ID], "duplicate badge %s", d.ID)
		seen[d.ID] = true
		assert.True(t, d.Category.Valid(), d.ID)
		assert.Equal(t, 50, d.RewardPoints, d.ID)
		assert.NotEmpty(t, d.Name, d.ID)
	}

	b, ok := catalog.Get("streak_master")
	require.True(t, ok)
	assert.Equal(t, MetricLongestStreak, b.Metric)
	assert.Equal(t, 7, b.Threshold)

	weekly, ok := catalog.Get("weekly_reporter")
	require.True(t, ok)
	assert.Equal(t, "Weekly Warrior", weekly.Name)

	dedicated, ok := catalog.Get("dedicated_reporter")
	require.True(t, ok)
	assert.Equal(t, MetricTotalReports, dedicated.Metric)
	assert.Equal(t, 25, dedicated.Threshold)

	_, ok = catalog.Get("nope")
	assert.False(t, ok)
}

func TestParseBadgeCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing id", "- {name: x, category: reporting, metric: total_reports, threshold: 1}"},
		{"duplicate", "- {id: a, category: reporting, metric: total_reports, threshold: 1}\n- {id: a, category: reporting, metric: total_reports, threshold: 2}"},
		{"unknown category", "- {id: a, category: shiny, metric: total_reports, threshold: 1}"},
		{"unknown metric", "- {id: a, category: reporting, metric: karma, threshold: 1}"},
		{"zero threshold", "- {id: a, category: reporting, metric: total_reports, threshold: 0}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBadgeCatalog([]byte(tt.raw))
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}

	_, err := ParseBadgeCatalog([]byte("{not: a list"))
	assert.Error(t, err)
}

func TestBadgeCatalog_Evaluate(t *testing.T) {
	catalog, err := LoadBadgeCatalog()
	require.NoError(t, err)

	s := models.NewUserStats("u1")
	assert.Empty(t, catalog.Evaluate(s, EvalContext{}))

	s.TotalReports = 25
	s.LongestStreak = 7
	s.ReportsByArea.Rural = 20
	ids := func(badges []Badge) []string {
		var out []string
		for _, b := range badges {
			out = append(out, b.ID)
		}
		return out
	}
	assert.ElementsMatch(t,
		[]string{"first_report", "dedicated_reporter", "streak_master", "rural_protector"},
		ids(catalog.Evaluate(s, EvalContext{})))

	s.AddBadge("first_report")
	s.AddBadge("streak_master")
	assert.ElementsMatch(t,
		[]string{"dedicated_reporter", "rural_protector", "early_adopter", "community_leader"},
		ids(catalog.Evaluate(s, EvalContext{SignupOrder: 100, InstitutionLeader: true})))

	// order 101 is past the default limit but inside a raised one
	assert.NotContains(t, ids(catalog.Evaluate(s, EvalContext{SignupOrder: 101})), "early_adopter")
	assert.Contains(t, ids(catalog.Evaluate(s, EvalContext{SignupOrder: 101, EarlyAdopterLimit: 500})), "early_adopter")
}

func TestBadgeCatalog_Progress(t *testing.T) {
	catalog, err := LoadBadgeCatalog()
	require.NoError(t, err)

	s := models.NewUserStats("u1")
	s.TotalReports = 10
	s.ReportsByWasteType[models.WasteOrganic] = 4
	s.ReportsByWasteType[models.WasteMixed] = 1
	s.AddBadge("first_report")

	progress := map[string]models.AchievementProgress{}
	for _, p := range catalog.Progress(s, EvalContext{SignupOrder: 250}) {
		progress[p.Badge.ID] = p
	}
	require.Len(t, progress, 14)

	assert.True(t, progress["first_report"].Unlocked)
	assert.Equal(t, 100.0, progress["first_report"].Percentage)

	assert.Equal(t, 10, progress["dedicated_reporter"].Current)
	assert.InDelta(t, 40.0, progress["dedicated_reporter"].Percentage, 0.001)

	assert.Equal(t, 2, progress["waste_categorizer"].Current)
	assert.Equal(t, 7, progress["waste_categorizer"].Target)

	assert.False(t, progress["early_adopter"].Unlocked)
	assert.Equal(t, 250, progress["early_adopter"].Current)
	assert.Zero(t, progress["early_adopter"].Percentage)
}

func TestBadgeEntries(t *testing.T) {
	catalog, err := LoadBadgeCatalog()
	require.NoError(t, err)
	b, _ := catalog.Get("photo_master")

	entries := badgeEntries("u1", "r9", []Badge{b}, testDay)
	require.Len(t, entries, 2)

	assert.Equal(t, models.RewardKindBadge, entries[0].Kind)
	assert.Equal(t, "photo_master", entries[0].BadgeID)
	assert.Equal(t, "u1|badge|photo_master", entries[0].DedupKey())

	assert.Equal(t, models.RewardKindPoints, entries[1].Kind)
	assert.Equal(t, models.ReasonBadgeBonus, entries[1].Reason)
	assert.Equal(t, 50, entries[1].Points)
	assert.Equal(t, "u1|badge_bonus|photo_master", entries[1].DedupKey())
}
