package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"carboniq/pkg/models"
)

// LedgerRepository is the append-only reward ledger. It is the source of truth
// every other piece of reward state is derived from.
type LedgerRepository interface {
	// Append writes one entry; ErrDuplicateEvent if its dedup key exists.
	Append(ctx context.Context, entry models.RewardEvent) (models.RewardEvent, error)
	// AppendBatch writes entries in one transaction, skipping duplicates.
	// It returns the inserted entries with Seq assigned, in input order.
	AppendBatch(ctx context.Context, entries []models.RewardEvent) ([]models.RewardEvent, error)
	Exists(ctx context.Context, dedupKey string) (bool, error)

	// ListByUser returns a user's entries with seq > afterSeq in append order.
	ListByUser(ctx context.Context, userID string, afterSeq int64) ([]models.RewardEvent, error)
	// ListPage returns one page of a user's entries, newest first. kind "" means all kinds.
	ListPage(ctx context.Context, userID string, kind models.RewardKind, limit, offset int) ([]models.RewardEvent, int, error)
	RecentBadges(ctx context.Context, limit int) ([]models.RewardEvent, error)

	// PointsSince sums points per user earned at or after since.
	PointsSince(ctx context.Context, since time.Time) ([]models.WindowScore, error)
	PointsBreakdown(ctx context.Context, userID string) (map[string]int, error)
	UserIDs(ctx context.Context) ([]string, error)
}

type ledgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a PostgreSQL ledger
func NewLedgerRepository(pool *pgxpool.Pool) LedgerRepository {
	return &ledgerRepository{pool: pool}
}

const ledgerColumns = `seq, id, user_id, kind, points, badge_id, source_report_id, reason, earned_at, report`

// Append writes a single entry
func (r *ledgerRepository) Append(ctx context.Context, entry models.RewardEvent) (models.RewardEvent, error) {
	inserted, err := r.AppendBatch(ctx, []models.RewardEvent{entry})
	if err != nil {
		return models.RewardEvent{}, err
	}
	if len(inserted) == 0 {
		return models.RewardEvent{}, fmt.Errorf("append %s: %w", entry.DedupKey(), models.ErrDuplicateEvent)
	}
	return inserted[0], nil
}

// AppendBatch inserts entries atomically, ignoring ones whose dedup key already exists
func (r *ledgerRepository) AppendBatch(ctx context.Context, entries []models.RewardEvent) ([]models.RewardEvent, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	query := `
		INSERT INTO reward_ledger (id, user_id, kind, points, badge_id, source_report_id, reason, earned_at, report, dedup_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)
		ON CONFLICT (dedup_key) DO NOTHING
		RETURNING seq
	`

	var inserted []models.RewardEvent
	err := r.WithTransaction(ctx, func(tx pgx.Tx) error {
		inserted = inserted[:0]
		for _, e := range entries {
			report, err := encodeReport(e.Report)
			if err != nil {
				return err
			}

			var seq int64
			err = tx.QueryRow(ctx, query,
				e.ID,
				e.UserID,
				string(e.Kind),
				e.Points,
				e.BadgeID,
				e.SourceReportID,
				e.Reason,
				e.EarnedAt.UTC(),
				report,
				e.DedupKey(),
			).Scan(&seq)
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if err != nil {
				return r.mapDBError(err, "append_reward")
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

// Exists checks whether an entry with the dedup key was already written
func (r *ledgerRepository) Exists(ctx context.Context, dedupKey string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reward_ledger WHERE dedup_key = $1)`, dedupKey,
	).Scan(&exists)
	if err != nil {
		return false, r.mapDBError(err, "ledger_exists")
	}
	return exists, nil
}

// ListByUser returns entries after a checkpoint, in append order
func (r *ledgerRepository) ListByUser(ctx context.Context, userID string, afterSeq int64) ([]models.RewardEvent, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM reward_ledger
		WHERE user_id = $1 AND seq > $2
		ORDER BY seq ASC
	`
	rows, err := r.pool.Query(ctx, query, userID, afterSeq)
	if err != nil {
		return nil, r.mapDBError(err, "list_ledger_by_user")
	}
	return r.collect(rows, "list_ledger_by_user")
}

// ListPage returns a page of history, newest first
func (r *ledgerRepository) ListPage(ctx context.Context, userID string, kind models.RewardKind, limit, offset int) ([]models.RewardEvent, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM reward_ledger
		WHERE user_id = $1 AND ($2 = '' OR kind = $2)
	`, userID, string(kind)).Scan(&total)
	if err != nil {
		return nil, 0, r.mapDBError(err, "count_ledger_page")
	}

	query := `
		SELECT ` + ledgerColumns + `
		FROM reward_ledger
		WHERE user_id = $1 AND ($2 = '' OR kind = $2)
		ORDER BY earned_at DESC, seq DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, userID, string(kind), limit, offset)
	if err != nil {
		return nil, 0, r.mapDBError(err, "list_ledger_page")
	}
	entries, err := r.collect(rows, "list_ledger_page")
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// RecentBadges returns the latest badge unlocks across all users
func (r *ledgerRepository) RecentBadges(ctx context.Context, limit int) ([]models.RewardEvent, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM reward_ledger
		WHERE kind = 'badge'
		ORDER BY earned_at DESC, seq DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, r.mapDBError(err, "recent_badges")
	}
	return r.collect(rows, "recent_badges")
}

// PointsSince aggregates points per user inside a window
func (r *ledgerRepository) PointsSince(ctx context.Context, since time.Time) ([]models.WindowScore, error) {
	query := `
		SELECT user_id, COALESCE(SUM(points), 0), MAX(earned_at)
		FROM reward_ledger
		WHERE kind = 'points' AND earned_at >= $1
		GROUP BY user_id
	`
	rows, err := r.pool.Query(ctx, query, since.UTC())
	if err != nil {
		return nil, r.mapDBError(err, "points_since")
	}
	defer rows.Close()

	var scores []models.WindowScore
	for rows.Next() {
		var ws models.WindowScore
		if err := rows.Scan(&ws.UserID, &ws.Points, &ws.LastEarnedAt); err != nil {
			return nil, r.mapDBError(err, "scan_points_since")
		}
		ws.LastEarnedAt = ws.LastEarnedAt.UTC()
		scores = append(scores, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapDBError(err, "points_since")
	}
	return scores, nil
}

// PointsBreakdown sums a user's points by reason
func (r *ledgerRepository) PointsBreakdown(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT reason, COALESCE(SUM(points), 0)
		FROM reward_ledger
		WHERE user_id = $1 AND kind = 'points'
		GROUP BY reason
	`, userID)
	if err != nil {
		return nil, r.mapDBError(err, "points_breakdown")
	}
	defer rows.Close()

	breakdown := map[string]int{}
	for rows.Next() {
		var reason string
		var points int
		if err := rows.Scan(&reason, &points); err != nil {
			return nil, r.mapDBError(err, "scan_points_breakdown")
		}
		breakdown[reason] = points
	}
	return breakdown, rows.Err()
}

// UserIDs lists every user with ledger history
func (r *ledgerRepository) UserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT user_id FROM reward_ledger ORDER BY user_id`)
	if err != nil {
		return nil, r.mapDBError(err, "ledger_user_ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, r.mapDBError(err, "scan_ledger_user_ids")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// WithTransaction executes fn within a transaction, rolling back on error or panic
func (r *ledgerRepository) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return r.mapDBError(err, "begin_transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

func (r *ledgerRepository) collect(rows pgx.Rows, operation string) ([]models.RewardEvent, error) {
	defer rows.Close()

	var entries []models.RewardEvent
	for rows.Next() {
		var e models.RewardEvent
		var kind string
		var report []byte
		if err := rows.Scan(
			&e.Seq,
			&e.ID,
			&e.UserID,
			&kind,
			&e.Points,
			&e.BadgeID,
			&e.SourceReportID,
			&e.Reason,
			&e.EarnedAt,
			&report,
		); err != nil {
			return nil, r.mapDBError(err, operation)
		}
		e.Kind = models.RewardKind(kind)
		e.EarnedAt = e.EarnedAt.UTC()

		facts, err := decodeReport(report)
		if err != nil {
			return nil, err
		}
		e.Report = facts
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapDBError(err, operation)
	}
	return entries, nil
}

// mapDBError maps database errors to application errors
func (r *ledgerRepository) mapDBError(err error, operation string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, models.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", operation, models.ErrDuplicateEvent)
		case "40001": // serialization_failure
			return fmt.Errorf("concurrent update conflict - please retry: %w", err)
		}
	}

	return fmt.Errorf("database error during %s: %w", operation, err)
}
