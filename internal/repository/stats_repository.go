package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"carboniq/pkg/models"
)

// StatsRepository persists the per-user aggregate. Writes are guarded by a
// per-user version number so concurrent writers cannot lose updates.
type StatsRepository interface {
	// Get returns ErrNotFound for users without a stats row.
	Get(ctx context.Context, userID string) (*models.UserStats, error)
	// Save writes stats if the stored version equals expectedVersion (0 inserts a new row),
	// bumping stats.Version on success and returning ErrVersionConflict otherwise.
	Save(ctx context.Context, stats *models.UserStats, expectedVersion int64) error
	// List returns every stats row ordered by user id.
	List(ctx context.Context) ([]models.UserStats, error)
}

type statsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new PostgreSQL stats repository
func NewStatsRepository(pool *pgxpool.Pool) StatsRepository {
	return &statsRepository{pool: pool}
}

const statsColumns = `
	user_id, total_points, total_reports, badges_earned, current_streak, longest_streak,
	reports_with_images, reports_with_detail, reports_marked_safe, reports_by_waste_type,
	urban_reports, rural_reports, last_report_date, last_report_at, institution_id,
	best_weekly_reports, best_monthly_reports, recent_days, weekly_goal_awarded_on,
	monthly_goal_awarded_on, ledger_checkpoint, version`

// Get retrieves statistics for a user
func (r *statsRepository) Get(ctx context.Context, userID string) (*models.UserStats, error) {
	query := `SELECT ` + statsColumns + ` FROM user_reward_stats WHERE user_id = $1`
	stats, err := r.scan(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, r.mapDBError(err, "get_user_stats")
	}
	return stats, nil
}

// Save inserts or conditionally updates a stats row
func (r *statsRepository) Save(ctx context.Context, stats *models.UserStats, expectedVersion int64) error {
	docs, err := encodeStatsDocuments(stats)
	if err != nil {
		return err
	}

	args := []interface{}{
		stats.UserID,
		stats.TotalPoints,
		stats.TotalReports,
		docs.badges,
		stats.CurrentStreak,
		stats.LongestStreak,
		stats.ReportsWithImages,
		stats.ReportsWithDetail,
		stats.ReportsMarkedSafe,
		docs.wasteTypes,
		stats.ReportsByArea.Urban,
		stats.ReportsByArea.Rural,
		utcPtr(stats.LastReportDate),
		utcPtr(stats.LastReportAt),
		stats.InstitutionID,
		stats.BestWeeklyReports,
		stats.BestMonthlyReports,
		docs.recentDays,
		utcPtr(stats.WeeklyGoalAwardedOn),
		utcPtr(stats.MonthlyGoalAwardedOn),
		stats.LedgerCheckpoint,
		expectedVersion + 1,
	}

	var query string
	if expectedVersion == 0 {
		query = `
			INSERT INTO user_reward_stats (` + statsColumns + `, updated_at)
			VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13, $14, $15,
			        $16, $17, $18::jsonb, $19, $20, $21, $22, NOW())
			ON CONFLICT (user_id) DO NOTHING
		`
	} else {
		query = `
			UPDATE user_reward_stats
			SET total_points = $2, total_reports = $3, badges_earned = $4::jsonb,
			    current_streak = $5, longest_streak = $6, reports_with_images = $7,
			    reports_with_detail = $8, reports_marked_safe = $9, reports_by_waste_type = $10::jsonb,
			    urban_reports = $11, rural_reports = $12, last_report_date = $13, last_report_at = $14,
			    institution_id = $15, best_weekly_reports = $16, best_monthly_reports = $17,
			    recent_days = $18::jsonb, weekly_goal_awarded_on = $19, monthly_goal_awarded_on = $20,
			    ledger_checkpoint = $21, version = $22, updated_at = NOW()
			WHERE user_id = $1 AND version = $23
		`
		args = append(args, expectedVersion)
	}

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return r.mapDBError(err, "save_user_stats")
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("save stats for %s at version %d: %w", stats.UserID, expectedVersion, models.ErrVersionConflict)
	}

	stats.Version = expectedVersion + 1
	return nil
}

// List returns all stats rows
func (r *statsRepository) List(ctx context.Context) ([]models.UserStats, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+statsColumns+` FROM user_reward_stats ORDER BY user_id`)
	if err != nil {
		return nil, r.mapDBError(err, "list_user_stats")
	}
	defer rows.Close()

	var all []models.UserStats
	for rows.Next() {
		stats, err := r.scan(rows)
		if err != nil {
			return nil, r.mapDBError(err, "scan_user_stats")
		}
		all = append(all, *stats)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapDBError(err, "list_user_stats")
	}
	return all, nil
}

func (r *statsRepository) scan(row pgx.Row) (*models.UserStats, error) {
	stats := &models.UserStats{}
	var badges, wasteTypes, recentDays []byte

	err := row.Scan(
		&stats.UserID,
		&stats.TotalPoints,
		&stats.TotalReports,
		&badges,
		&stats.CurrentStreak,
		&stats.LongestStreak,
		&stats.ReportsWithImages,
		&stats.ReportsWithDetail,
		&stats.ReportsMarkedSafe,
		&wasteTypes,
		&stats.ReportsByArea.Urban,
		&stats.ReportsByArea.Rural,
		&stats.LastReportDate,
		&stats.LastReportAt,
		&stats.InstitutionID,
		&stats.BestWeeklyReports,
		&stats.BestMonthlyReports,
		&recentDays,
		&stats.WeeklyGoalAwardedOn,
		&stats.MonthlyGoalAwardedOn,
		&stats.LedgerCheckpoint,
		&stats.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeStatsDocuments(stats, badges, wasteTypes, recentDays); err != nil {
		return nil, err
	}
	stats.LastReportDate = utcPtr(stats.LastReportDate)
	stats.LastReportAt = utcPtr(stats.LastReportAt)
	stats.WeeklyGoalAwardedOn = utcPtr(stats.WeeklyGoalAwardedOn)
	stats.MonthlyGoalAwardedOn = utcPtr(stats.MonthlyGoalAwardedOn)
	return stats, nil
}

// mapDBError maps database errors to application errors
func (r *statsRepository) mapDBError(err error, operation string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, models.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23514": // check_violation
			return fmt.Errorf("%s violates stats invariants: %w", operation, err)
		case "40001": // serialization_failure
			return fmt.Errorf("concurrent update conflict - please retry: %w", models.ErrVersionConflict)
		}
	}

	return fmt.Errorf("database error during %s: %w", operation, err)
}
