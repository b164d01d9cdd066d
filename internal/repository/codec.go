package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"carboniq/pkg/models"
)

// Column codecs shared by the PostgreSQL and SQLite implementations.
// Collections are stored as JSON documents; SQLite stores times as unix microseconds.

func encodeJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode column: %w", err)
	}
	return string(b), nil
}

func encodeReport(f *models.ReportFacts) (*string, error) {
	if f == nil {
		return nil, nil
	}
	s, err := encodeJSON(f)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func decodeReport(raw []byte) (*models.ReportFacts, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	f := &models.ReportFacts{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("decode report facts: %w", err)
	}
	return f, nil
}

// statsDocuments are the JSON-encoded collection columns of user_reward_stats
type statsDocuments struct {
	badges     string
	wasteTypes string
	recentDays string
}

func encodeStatsDocuments(s *models.UserStats) (statsDocuments, error) {
	var docs statsDocuments
	var err error

	badges := s.BadgesEarned
	if badges == nil {
		badges = []string{}
	}
	if docs.badges, err = encodeJSON(badges); err != nil {
		return docs, err
	}

	waste := s.ReportsByWasteType
	if waste == nil {
		waste = map[models.WasteType]int{}
	}
	if docs.wasteTypes, err = encodeJSON(waste); err != nil {
		return docs, err
	}

	days := s.RecentDays
	if days == nil {
		days = []models.DayCount{}
	}
	if docs.recentDays, err = encodeJSON(days); err != nil {
		return docs, err
	}
	return docs, nil
}

func decodeStatsDocuments(s *models.UserStats, badges, wasteTypes, recentDays []byte) error {
	s.BadgesEarned = []string{}
	if len(badges) > 0 {
		if err := json.Unmarshal(badges, &s.BadgesEarned); err != nil {
			return fmt.Errorf("decode badges_earned: %w", err)
		}
	}

	s.ReportsByWasteType = map[models.WasteType]int{}
	if len(wasteTypes) > 0 {
		if err := json.Unmarshal(wasteTypes, &s.ReportsByWasteType); err != nil {
			return fmt.Errorf("decode reports_by_waste_type: %w", err)
		}
	}

	s.RecentDays = nil
	if len(recentDays) > 0 {
		if err := json.Unmarshal(recentDays, &s.RecentDays); err != nil {
			return fmt.Errorf("decode recent_days: %w", err)
		}
		for i := range s.RecentDays {
			s.RecentDays[i].Day = s.RecentDays[i].Day.UTC()
		}
		if len(s.RecentDays) == 0 {
			s.RecentDays = nil
		}
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func toMicros(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMicro()
}

func fromMicros(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := time.UnixMicro(*v).UTC()
	return &t
}
