package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"carboniq/pkg/models"
)

// SQLite implementations of the repository contracts, used for single-node
// deployments and tests. Queries mirror the PostgreSQL ones with ? placeholders.

type sqliteLedgerRepository struct {
	db *sql.DB
}

// NewSQLiteLedgerRepository creates a ledger backed by SQLite
func NewSQLiteLedgerRepository(db *sql.DB) LedgerRepository {
	return &sqliteLedgerRepository{db: db}
}

func (r *sqliteLedgerRepository) Append(ctx context.Context, entry models.RewardEvent) (models.RewardEvent, error) {
	inserted, err := r.AppendBatch(ctx, []models.RewardEvent{entry})
	if err != nil {
		return models.RewardEvent{}, err
	}
	if len(inserted) == 0 {
		return models.RewardEvent{}, fmt.Errorf("append %s: %w", entry.DedupKey(), models.ErrDuplicateEvent)
	}
	return inserted[0], nil
}

func (r *sqliteLedgerRepository) AppendBatch(ctx context.Context, entries []models.RewardEvent) ([]models.RewardEvent, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	query := `
		INSERT INTO reward_ledger (id, user_id, kind, points, badge_id, source_report_id, reason, earned_at, report, dedup_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (dedup_key) DO NOTHING
	`

	var inserted []models.RewardEvent
	err := withSQLTransaction(ctx, r.db, func(tx *sql.Tx) error {
		for _, e := range entries {
			report, err := encodeReport(e.Report)
			if err != nil {
				return err
			}

			res, err := tx.ExecContext(ctx, query,
				e.ID,
				e.UserID,
				string(e.Kind),
				e.Points,
				e.BadgeID,
				e.SourceReportID,
				e.Reason,
				e.EarnedAt.UTC().UnixMicro(),
				report,
				e.DedupKey(),
			)
			if err != nil {
				return mapSQLiteError(err, "append_reward", models.ErrDuplicateEvent)
			}

			n, err := res.RowsAffected()
			if err != nil {
				return mapSQLiteError(err, "append_reward", models.ErrDuplicateEvent)
			}
			if n == 0 {
				continue
			}

			seq, err := res.LastInsertId()
			if err != nil {
				return mapSQLiteError(err, "append_reward", models.ErrDuplicateEvent)
			}
			e.Seq = seq
			inserted = append(inserted, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func (r *sqliteLedgerRepository) Exists(ctx context.Context, dedupKey string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM reward_ledger WHERE dedup_key = ?`, dedupKey,
	).Scan(&n)
	if err != nil {
		return false, mapSQLiteError(err, "ledger_exists", nil)
	}
	return n > 0, nil
}

func (r *sqliteLedgerRepository) ListByUser(ctx context.Context, userID string, afterSeq int64) ([]models.RewardEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM reward_ledger
		WHERE user_id = ? AND seq > ?
		ORDER BY seq ASC
	`, userID, afterSeq)
	if err != nil {
		return nil, mapSQLiteError(err, "list_ledger_by_user", nil)
	}
	return collectSQLiteLedger(rows, "list_ledger_by_user")
}

func (r *sqliteLedgerRepository) ListPage(ctx context.Context, userID string, kind models.RewardKind, limit, offset int) ([]models.RewardEvent, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reward_ledger
		WHERE user_id = ? AND (? = '' OR kind = ?)
	`, userID, string(kind), string(kind)).Scan(&total)
	if err != nil {
		return nil, 0, mapSQLiteError(err, "count_ledger_page", nil)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM reward_ledger
		WHERE user_id = ? AND (? = '' OR kind = ?)
		ORDER BY earned_at DESC, seq DESC
		LIMIT ? OFFSET ?
	`, userID, string(kind), string(kind), limit, offset)
	if err != nil {
		return nil, 0, mapSQLiteError(err, "list_ledger_page", nil)
	}
	entries, err := collectSQLiteLedger(rows, "list_ledger_page")
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *sqliteLedgerRepository) RecentBadges(ctx context.Context, limit int) ([]models.RewardEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM reward_ledger
		WHERE kind = 'badge'
		ORDER BY earned_at DESC, seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, mapSQLiteError(err, "recent_badges", nil)
	}
	return collectSQLiteLedger(rows, "recent_badges")
}

func (r *sqliteLedgerRepository) PointsSince(ctx context.Context, since time.Time) ([]models.WindowScore, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, COALESCE(SUM(points), 0), MAX(earned_at)
		FROM reward_ledger
		WHERE kind = 'points' AND earned_at >= ?
		GROUP BY user_id
	`, since.UTC().UnixMicro())
	if err != nil {
		return nil, mapSQLiteError(err, "points_since", nil)
	}
	defer rows.Close()

	var scores []models.WindowScore
	for rows.Next() {
		var ws models.WindowScore
		var last int64
		if err := rows.Scan(&ws.UserID, &ws.Points, &last); err != nil {
			return nil, mapSQLiteError(err, "scan_points_since", nil)
		}
		ws.LastEarnedAt = time.UnixMicro(last).UTC()
		scores = append(scores, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err, "points_since", nil)
	}
	return scores, nil
}

func (r *sqliteLedgerRepository) PointsBreakdown(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT reason, COALESCE(SUM(points), 0)
		FROM reward_ledger
		WHERE user_id = ? AND kind = 'points'
		GROUP BY reason
	`, userID)
	if err != nil {
		return nil, mapSQLiteError(err, "points_breakdown", nil)
	}
	defer rows.Close()

	breakdown := map[string]int{}
	for rows.Next() {
		var reason string
		var points int
		if err := rows.Scan(&reason, &points); err != nil {
			return nil, mapSQLiteError(err, "scan_points_breakdown", nil)
		}
		breakdown[reason] = points
	}
	return breakdown, rows.Err()
}

func (r *sqliteLedgerRepository) UserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM reward_ledger ORDER BY user_id`)
	if err != nil {
		return nil, mapSQLiteError(err, "ledger_user_ids", nil)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapSQLiteError(err, "scan_ledger_user_ids", nil)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func collectSQLiteLedger(rows *sql.Rows, operation string) ([]models.RewardEvent, error) {
	defer rows.Close()

	var entries []models.RewardEvent
	for rows.Next() {
		var e models.RewardEvent
		var kind string
		var earnedAt int64
		var report sql.NullString
		if err := rows.Scan(
			&e.Seq,
			&e.ID,
			&e.UserID,
			&kind,
			&e.Points,
			&e.BadgeID,
			&e.SourceReportID,
			&e.Reason,
			&earnedAt,
			&report,
		); err != nil {
			return nil, mapSQLiteError(err, operation, nil)
		}
		e.Kind = models.RewardKind(kind)
		e.EarnedAt = time.UnixMicro(earnedAt).UTC()

		if report.Valid {
			facts, err := decodeReport([]byte(report.String))
			if err != nil {
				return nil, err
			}
			e.Report = facts
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err, operation, nil)
	}
	return entries, nil
}

type sqliteStatsRepository struct {
	db *sql.DB
}

// NewSQLiteStatsRepository creates a stats repository backed by SQLite
func NewSQLiteStatsRepository(db *sql.DB) StatsRepository {
	return &sqliteStatsRepository{db: db}
}

func (r *sqliteStatsRepository) Get(ctx context.Context, userID string) (*models.UserStats, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+statsColumns+` FROM user_reward_stats WHERE user_id = ?`, userID)
	stats, err := scanSQLiteStats(row)
	if err != nil {
		return nil, mapSQLiteError(err, "get_user_stats", nil)
	}
	return stats, nil
}

func (r *sqliteStatsRepository) Save(ctx context.Context, stats *models.UserStats, expectedVersion int64) error {
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
		toMicros(stats.LastReportDate),
		toMicros(stats.LastReportAt),
		stats.InstitutionID,
		stats.BestWeeklyReports,
		stats.BestMonthlyReports,
		docs.recentDays,
		toMicros(stats.WeeklyGoalAwardedOn),
		toMicros(stats.MonthlyGoalAwardedOn),
		stats.LedgerCheckpoint,
		expectedVersion + 1,
		time.Now().UTC().UnixMicro(),
	}

	var query string
	if expectedVersion == 0 {
		query = `
			INSERT INTO user_reward_stats (` + statsColumns + `, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id) DO NOTHING
		`
	} else {
		query = `
			UPDATE user_reward_stats
			SET user_id = ?, total_points = ?, total_reports = ?, badges_earned = ?,
			    current_streak = ?, longest_streak = ?, reports_with_images = ?,
			    reports_with_detail = ?, reports_marked_safe = ?, reports_by_waste_type = ?,
			    urban_reports = ?, rural_reports = ?, last_report_date = ?, last_report_at = ?,
			    institution_id = ?, best_weekly_reports = ?, best_monthly_reports = ?,
			    recent_days = ?, weekly_goal_awarded_on = ?, monthly_goal_awarded_on = ?,
			    ledger_checkpoint = ?, version = ?, updated_at = ?
			WHERE user_id = ? AND version = ?
		`
		args = append(args, stats.UserID, expectedVersion)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapSQLiteError(err, "save_user_stats", models.ErrVersionConflict)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapSQLiteError(err, "save_user_stats", nil)
	}
	if n == 0 {
		return fmt.Errorf("save stats for %s at version %d: %w", stats.UserID, expectedVersion, models.ErrVersionConflict)
	}

	stats.Version = expectedVersion + 1
	return nil
}

func (r *sqliteStatsRepository) List(ctx context.Context) ([]models.UserStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+statsColumns+` FROM user_reward_stats ORDER BY user_id`)
	if err != nil {
		return nil, mapSQLiteError(err, "list_user_stats", nil)
	}
	defer rows.Close()

	var all []models.UserStats
	for rows.Next() {
		stats, err := scanSQLiteStats(rows)
		if err != nil {
			return nil, mapSQLiteError(err, "scan_user_stats", nil)
		}
		all = append(all, *stats)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err, "list_user_stats", nil)
	}
	return all, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteStats(row rowScanner) (*models.UserStats, error) {
	stats := &models.UserStats{}
	var badges, wasteTypes, recentDays string
	var lastDate, lastAt, weeklyOn, monthlyOn *int64

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
		&lastDate,
		&lastAt,
		&stats.InstitutionID,
		&stats.BestWeeklyReports,
		&stats.BestMonthlyReports,
		&recentDays,
		&weeklyOn,
		&monthlyOn,
		&stats.LedgerCheckpoint,
		&stats.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeStatsDocuments(stats, []byte(badges), []byte(wasteTypes), []byte(recentDays)); err != nil {
		return nil, err
	}
	stats.LastReportDate = fromMicros(lastDate)
	stats.LastReportAt = fromMicros(lastAt)
	stats.WeeklyGoalAwardedOn = fromMicros(weeklyOn)
	stats.MonthlyGoalAwardedOn = fromMicros(monthlyOn)
	return stats, nil
}

type sqliteSignupRepository struct {
	db *sql.DB
}

// NewSQLiteSignupRepository creates a signup repository backed by SQLite
func NewSQLiteSignupRepository(db *sql.DB) SignupRepository {
	return &sqliteSignupRepository{db: db}
}

func (r *sqliteSignupRepository) Get(ctx context.Context, userID string) (int64, error) {
	var order int64
	err := r.db.QueryRowContext(ctx,
		`SELECT signup_order FROM user_signups WHERE user_id = ?`, userID,
	).Scan(&order)
	if err != nil {
		return 0, mapSQLiteError(err, "get_signup_order", nil)
	}
	return order, nil
}

func (r *sqliteSignupRepository) Put(ctx context.Context, userID string, order int64) error {
	if order <= 0 {
		return fmt.Errorf("%w: signup order must be positive", models.ErrInvalidInput)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_signups (user_id, signup_order, registered_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET signup_order = excluded.signup_order
	`, userID, order, time.Now().UTC().UnixMicro())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: signup order already assigned to another user", models.ErrInvalidInput)
		}
		return mapSQLiteError(err, "put_signup_order", nil)
	}
	return nil
}

// withSQLTransaction executes fn within a database/sql transaction
func withSQLTransaction(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteError(err, "begin_transaction", nil)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// mapSQLiteError maps driver errors to application errors; unique
// violations map to onUnique when it is set.
func mapSQLiteError(err error, operation string, onUnique error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, models.ErrNotFound)
	}
	if onUnique != nil && isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", operation, onUnique)
	}
	return fmt.Errorf("database error during %s: %w", operation, err)
}
