package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"carboniq/pkg/models"
)

// LeaderboardMirror publishes ranked boards to an external read cache
type LeaderboardMirror interface {
	Publish(ctx context.Context, board models.LeaderboardResult) error
	// Top reads back at most limit entries of a published board, best first.
	Top(ctx context.Context, scopeKey string, limit int) ([]models.LeaderboardEntry, time.Time, error)
}

type redisLeaderboardMirror struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisLeaderboardMirror stores each board as a sorted set under <prefix>:lb:<scope>
func NewRedisLeaderboardMirror(rdb *redis.Client, prefix string) LeaderboardMirror {
	if prefix == "" {
		prefix = "carboniq"
	}
	return &redisLeaderboardMirror{rdb: rdb, prefix: prefix}
}

func (m *redisLeaderboardMirror) boardKey(scopeKey string) string {
	return fmt.Sprintf("%s:lb:%s", m.prefix, scopeKey)
}

func (m *redisLeaderboardMirror) metaKey(scopeKey string) string {
	return fmt.Sprintf("%s:lb:%s:meta", m.prefix, scopeKey)
}

// Publish replaces the stored board atomically
func (m *redisLeaderboardMirror) Publish(ctx context.Context, board models.LeaderboardResult) error {
	key := m.boardKey(board.Scope)
	members := make([]redis.Z, 0, len(board.Entries))
	for _, e := range board.Entries {
		members = append(members, redis.Z{Score: float64(e.Score), Member: e.UserID})
	}

	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.ZAdd(ctx, key, members...)
		}
		pipe.HSet(ctx, m.metaKey(board.Scope),
			"computed_at", board.ComputedAt.UTC().Format(time.RFC3339Nano),
			"total", board.Total,
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish board %s: %w", board.Scope, err)
	}
	return nil
}

// Top returns the highest scores of a board with their positions
func (m *redisLeaderboardMirror) Top(ctx context.Context, scopeKey string, limit int) ([]models.LeaderboardEntry, time.Time, error) {
	if limit <= 0 {
		return nil, time.Time{}, fmt.Errorf("%w: limit must be positive", models.ErrInvalidInput)
	}

	zs, err := m.rdb.ZRevRangeWithScores(ctx, m.boardKey(scopeKey), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read board %s: %w", scopeKey, err)
	}

	var computedAt time.Time
	raw, err := m.rdb.HGet(ctx, m.metaKey(scopeKey), "computed_at").Result()
	switch {
	case err == redis.Nil:
		if len(zs) == 0 {
			return nil, time.Time{}, fmt.Errorf("board %s: %w", scopeKey, models.ErrNotFound)
		}
	case err != nil:
		return nil, time.Time{}, fmt.Errorf("read board meta %s: %w", scopeKey, err)
	default:
		if computedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, time.Time{}, fmt.Errorf("parse computed_at for %s: %w", scopeKey, err)
		}
	}

	entries := make([]models.LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		entries = append(entries, models.LeaderboardEntry{
			Scope:  scopeKey,
			UserID: member,
			Score:  int(z.Score),
			Rank:   i + 1,
		})
	}
	return entries, computedAt, nil
}
