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

// SignupRepository stores the signup sequence numbers assigned by the identity service
type SignupRepository interface {
	// Get returns ErrNotFound when no order was registered for the user.
	Get(ctx context.Context, userID string) (int64, error)
	Put(ctx context.Context, userID string, order int64) error
}

type signupRepository struct {
	pool *pgxpool.Pool
}

// NewSignupRepository creates a PostgreSQL signup repository
func NewSignupRepository(pool *pgxpool.Pool) SignupRepository {
	return &signupRepository{pool: pool}
}

// Get reads a user's signup order
func (r *signupRepository) Get(ctx context.Context, userID string) (int64, error) {
	var order int64
	err := r.pool.QueryRow(ctx,
		`SELECT signup_order FROM user_signups WHERE user_id = $1`, userID,
	).Scan(&order)
	if err != nil {
		return 0, r.mapDBError(err, "get_signup_order")
	}
	return order, nil
}

// Put registers or corrects a user's signup order
func (r *signupRepository) Put(ctx context.Context, userID string, order int64) error {
	if order <= 0 {
		return fmt.Errorf("%w: signup order must be positive", models.ErrInvalidInput)
	}

	query := `
		INSERT INTO user_signups (user_id, signup_order, registered_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET signup_order = EXCLUDED.signup_order
	`
	if _, err := r.pool.Exec(ctx, query, userID, order); err != nil {
		return r.mapDBError(err, "put_signup_order")
	}
	return nil
}

// mapDBError maps database errors to application errors
func (r *signupRepository) mapDBError(err error, operation string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", operation, models.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: signup order already assigned to another user", models.ErrInvalidInput)
	}

	return fmt.Errorf("database error during %s: %w", operation, err)
}
