package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"carboniq/internal/metrics"
	"carboniq/internal/repository"
	"carboniq/pkg/config"
	"carboniq/pkg/logger"
	"carboniq/pkg/models"
	"carboniq/pkg/utils"
)

// RewardsService defines the rewards engine operations
type RewardsService interface {
	// ProcessReport awards everything one ReportCreated earns. Replaying a
	// processed report is a no-op that reports Duplicate.
	ProcessReport(ctx context.Context, ev models.ReportCreated) (*models.ProcessResult, error)

	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetStats(ctx context.Context, userID string) (*models.StatsResponse, error)
	GetHistory(ctx context.Context, userID string, limit, offset int, kind models.RewardKind) (*models.HistoryPage, error)
	GetAchievementProgress(ctx context.Context, userID string) ([]models.AchievementProgress, error)
	GetBadgeCatalog() []models.BadgeDefinition

	GetLeaderboard(ctx context.Context, query models.LeaderboardQuery) (*models.LeaderboardResult, error)
	GetMyRank(ctx context.Context, userID string, scope models.Scope, period models.Period) (*models.UserRank, error)
	GetInstitutionRankings(ctx context.Context, limit int) ([]models.InstitutionRanking, error)
	GetRecentAchievements(ctx context.Context, limit int) ([]models.RecentAchievement, error)

	SyncStats(ctx context.Context, userID string) (*models.UserStats, error)
	RecalculateAll(ctx context.Context) (*models.RecalculationSummary, error)
	RegisterSignup(ctx context.Context, userID string, order int64) error

	// Warm loads the boards from stored stats at startup.
	Warm(ctx context.Context) error
	// RefreshRanks recomputes the time window boards and runs the
	// cross-user badge pass.
	RefreshRanks(ctx context.Context) error
	Snapshot() []models.LeaderboardResult
}

// Options tunes the engine
type Options struct {
	ReawardGoals         bool
	ApplyRetries         int
	StalenessBound       time.Duration
	EarlyAdopterLimit    int
	HistoryMaxLimit      int
	LeaderboardMaxLimit  int
	ProfileRecentRewards int
	Now                  func() time.Time
}

// OptionsFromConfig maps the rewards config section onto engine options
func OptionsFromConfig(cfg config.RewardsConfig) Options {
	return Options{
		ReawardGoals:         cfg.ReawardGoalsPerWindow,
		ApplyRetries:         cfg.ApplyRetries,
		StalenessBound:       cfg.RankStalenessBound,
		EarlyAdopterLimit:    cfg.EarlyAdopterLimit,
		HistoryMaxLimit:      cfg.HistoryMaxLimit,
		LeaderboardMaxLimit:  cfg.LeaderboardMaxLimit,
		ProfileRecentRewards: cfg.ProfileRecentRewards,
	}
}

func (o *Options) setDefaults() {
	if o.HistoryMaxLimit <= 0 {
		o.HistoryMaxLimit = 100
	}
	if o.LeaderboardMaxLimit <= 0 {
		o.LeaderboardMaxLimit = 100
	}
	if o.ProfileRecentRewards <= 0 {
		o.ProfileRecentRewards = 10
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type rewardsService struct {
	ledger  repository.LedgerRepository
	stats   repository.StatsRepository
	signups repository.SignupRepository
	catalog *BadgeCatalog
	agg     *StatsAggregator
	ranker  *Ranker
	planner planner
	opts    Options
}

// NewRewardsService creates the rewards engine over repos
func NewRewardsService(repos repository.Repositories, catalog *BadgeCatalog, opts Options) RewardsService {
	opts.setDefaults()
	return &rewardsService{
		ledger:  repos.Ledger,
		stats:   repos.Stats,
		signups: repos.Signups,
		catalog: catalog,
		agg:     NewStatsAggregator(repos.Ledger, repos.Stats, opts.ApplyRetries),
		ranker:  NewRanker(opts.StalenessBound, opts.Now),
		planner: planner{catalog: catalog, reawardGoals: opts.ReawardGoals},
		opts:    opts,
	}
}

// ProcessReport runs one report through points, streak, goals and badges
func (s *rewardsService) ProcessReport(ctx context.Context, ev models.ReportCreated) (*models.ProcessResult, error) {
	ev.Normalize()
	if err := ev.Validate(); err != nil {
		metrics.EventsProcessed.WithLabelValues("invalid").Inc()
		return nil, err
	}

	ectx, err := s.evalContext(ctx, ev.UserID)
	if err != nil {
		metrics.EventsProcessed.WithLabelValues("failed").Inc()
		return nil, err
	}

	unlock := s.agg.Lock(ev.UserID)
	defer unlock()

	current, err := s.agg.Apply(ctx, ev.UserID)
	if err != nil {
		metrics.EventsProcessed.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to catch up stats: %w", err)
	}

	base := models.RewardEvent{
		UserID:         ev.UserID,
		Kind:           models.RewardKindPoints,
		SourceReportID: ev.SourceReportID,
		Reason:         models.ReasonReportCreated,
	}
	seen, err := s.ledger.Exists(ctx, base.DedupKey())
	if err != nil {
		metrics.EventsProcessed.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to check ledger: %w", err)
	}
	if seen {
		return s.duplicate(ev, current), nil
	}

	entries := s.planner.planReport(current, ev, ectx)
	inserted, stats, err := s.commit(ctx, ev.UserID, entries)
	if err != nil {
		metrics.EventsProcessed.WithLabelValues("failed").Inc()
		return nil, err
	}
	if len(inserted) == 0 {
		return s.duplicate(ev, stats), nil
	}

	metrics.EventsProcessed.WithLabelValues("awarded").Inc()
	logger.Reward(ev.UserID, ev.SourceReportID, len(inserted), models.PointsTotal(inserted))
	return &models.ProcessResult{Awarded: inserted, Stats: s.withRank(stats)}, nil
}

func (s *rewardsService) duplicate(ev models.ReportCreated, stats models.UserStats) *models.ProcessResult {
	metrics.EventsProcessed.WithLabelValues("duplicate").Inc()
	logger.WithFields(map[string]interface{}{
		"user_id":          ev.UserID,
		"source_report_id": ev.SourceReportID,
	}).Debug("Report already rewarded, skipping replay")
	return &models.ProcessResult{Duplicate: true, Stats: s.withRank(stats)}
}

// commit appends entries ahead of the stats write, then lands them in the
// user's stats and boards. Callers hold the user's lock.
func (s *rewardsService) commit(ctx context.Context, userID string, entries []models.RewardEvent) ([]models.RewardEvent, models.UserStats, error) {
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
	}

	inserted, err := s.ledger.AppendBatch(ctx, entries)
	if err != nil {
		return nil, models.UserStats{}, fmt.Errorf("failed to append rewards: %w", err)
	}

	stats, err := s.agg.Apply(ctx, userID)
	if err != nil {
		// the entries are durable; the next apply for this user folds them
		return nil, models.UserStats{}, err
	}
	s.ranker.Update(stats)

	for _, e := range inserted {
		metrics.LedgerEntries.WithLabelValues(string(e.Kind), e.Reason).Inc()
		metrics.PointsAwarded.Add(float64(e.Points))
		if e.Kind == models.RewardKindBadge {
			metrics.BadgesAwarded.WithLabelValues(e.BadgeID).Inc()
		}
	}
	return inserted, stats, nil
}

// evalContext gathers the read-only cross-user inputs for one user
func (s *rewardsService) evalContext(ctx context.Context, userID string) (EvalContext, error) {
	ectx := EvalContext{EarlyAdopterLimit: s.opts.EarlyAdopterLimit}
	order, err := s.signups.Get(ctx, userID)
	switch {
	case err == nil:
		ectx.SignupOrder = order
	case !errors.Is(err, models.ErrNotFound):
		return ectx, fmt.Errorf("failed to read signup order: %w", err)
	}
	return ectx, nil
}

func (s *rewardsService) withRank(stats models.UserStats) models.UserStats {
	stats.Rank = nil
	if pos := s.ranker.Position(stats.UserID); pos > 0 {
		stats.Rank = &pos
	}
	return stats
}

func (s *rewardsService) loadStats(ctx context.Context, userID string) (models.UserStats, error) {
	if err := utils.ValidateID("user_id", userID); err != nil {
		return models.UserStats{}, err
	}
	stats, err := s.agg.Load(ctx, userID)
	if err != nil {
		return models.UserStats{}, err
	}
	return s.withRank(stats), nil
}

// GetStats returns a user's stats with level and points breakdown.
// Users without history get zero stats.
func (s *rewardsService) GetStats(ctx context.Context, userID string) (*models.StatsResponse, error) {
	stats, err := s.loadStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.ledger.PointsBreakdown(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get points breakdown: %w", err)
	}

	level, next := LevelFor(stats.TotalPoints)
	toNext := next - stats.TotalPoints
	if toNext < 0 {
		toNext = 0
	}
	return &models.StatsResponse{
		UserStats:         stats,
		Level:             level,
		NextLevelPoints:   next,
		PointsToNextLevel: toNext,
		PointsBreakdown:   breakdown,
	}, nil
}

// GetProfile combines stats, the latest rewards and badge progress
func (s *rewardsService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	stats, err := s.GetStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	recent, _, err := s.ledger.ListPage(ctx, userID, "", s.opts.ProfileRecentRewards, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent rewards: %w", err)
	}
	if recent == nil {
		recent = []models.RewardEvent{}
	}

	ectx, err := s.evalContext(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.Profile{
		Stats:               *stats,
		RecentRewards:       recent,
		AchievementProgress: s.catalog.Progress(stats.UserStats, ectx),
	}, nil
}

// GetHistory returns one page of a user's ledger, newest first
func (s *rewardsService) GetHistory(ctx context.Context, userID string, limit, offset int, kind models.RewardKind) (*models.HistoryPage, error) {
	if err := utils.ValidateID("user_id", userID); err != nil {
		return nil, err
	}
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown reward kind %q", models.ErrInvalidInput, kind)
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > s.opts.HistoryMaxLimit {
		limit = s.opts.HistoryMaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	rewards, total, err := s.ledger.ListPage(ctx, userID, kind, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	if rewards == nil {
		rewards = []models.RewardEvent{}
	}

	return &models.HistoryPage{
		Rewards: rewards,
		Meta:    models.NewPaginationMeta(total, limit, offset),
	}, nil
}

// GetAchievementProgress reports every badge's state for a user
func (s *rewardsService) GetAchievementProgress(ctx context.Context, userID string) ([]models.AchievementProgress, error) {
	stats, err := s.loadStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	ectx, err := s.evalContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.catalog.Progress(stats, ectx), nil
}

// GetBadgeCatalog lists badge metadata
func (s *rewardsService) GetBadgeCatalog() []models.BadgeDefinition {
	return s.catalog.Definitions()
}

// GetLeaderboard lists one board. Time window boards that were never
// computed are computed on first read.
func (s *rewardsService) GetLeaderboard(ctx context.Context, query models.LeaderboardQuery) (*models.LeaderboardResult, error) {
	if err := s.ensureWindows(ctx, query.Scope, query.Period); err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > s.opts.LeaderboardMaxLimit {
		limit = s.opts.LeaderboardMaxLimit
	}

	result, err := s.ranker.Top(query.Scope, query.Period, limit)
	if err != nil {
		return nil, err
	}
	if result.Warning != "" {
		logger.WithFields(map[string]interface{}{
			"scope":       result.Scope,
			"period":      result.Period,
			"computed_at": result.ComputedAt,
		}).Warn("Serving stale leaderboard snapshot")
	}
	return &result, nil
}

// GetMyRank returns a user's position on one board
func (s *rewardsService) GetMyRank(ctx context.Context, userID string, scope models.Scope, period models.Period) (*models.UserRank, error) {
	if err := utils.ValidateID("user_id", userID); err != nil {
		return nil, err
	}
	if err := s.ensureWindows(ctx, scope, period); err != nil {
		return nil, err
	}
	rank, err := s.ranker.Rank(userID, scope, period)
	if err != nil {
		return nil, err
	}
	return &rank, nil
}

// GetInstitutionRankings aggregates the boards per institution
func (s *rewardsService) GetInstitutionRankings(ctx context.Context, limit int) ([]models.InstitutionRanking, error) {
	rankings := s.ranker.InstitutionRankings()
	if limit > 0 && limit < len(rankings) {
		rankings = rankings[:limit]
	}
	return rankings, nil
}

// GetRecentAchievements lists the latest badge unlocks across all users
func (s *rewardsService) GetRecentAchievements(ctx context.Context, limit int) ([]models.RecentAchievement, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > s.opts.LeaderboardMaxLimit {
		limit = s.opts.LeaderboardMaxLimit
	}

	events, err := s.ledger.RecentBadges(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent achievements: %w", err)
	}

	out := make([]models.RecentAchievement, 0, len(events))
	for _, e := range events {
		a := models.RecentAchievement{UserID: e.UserID, BadgeID: e.BadgeID, EarnedAt: e.EarnedAt}
		if b, ok := s.catalog.Get(e.BadgeID); ok {
			a.BadgeName = b.Name
			a.Icon = b.Icon
		}
		out = append(out, a)
	}
	return out, nil
}

// SyncStats rebuilds one user's stats from the ledger and stores them
func (s *rewardsService) SyncStats(ctx context.Context, userID string) (*models.UserStats, error) {
	if err := utils.ValidateID("user_id", userID); err != nil {
		return nil, err
	}

	unlock := s.agg.Lock(userID)
	defer unlock()

	stats, _, err := s.repairLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats = s.withRank(stats)
	return &stats, nil
}

// RegisterSignup records the signup order the identity service assigned
func (s *rewardsService) RegisterSignup(ctx context.Context, userID string, order int64) error {
	if err := utils.ValidateID("user_id", userID); err != nil {
		return err
	}
	if err := s.signups.Put(ctx, userID, order); err != nil {
		return fmt.Errorf("failed to register signup: %w", err)
	}
	return nil
}

// Warm loads every stored user into the boards and computes the windows
func (s *rewardsService) Warm(ctx context.Context) error {
	start := time.Now()
	all, err := s.stats.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stats: %w", err)
	}
	s.ranker.Rebuild(all)
	metrics.RankRecompute.WithLabelValues("full").Observe(time.Since(start).Seconds())
	return s.refreshWindows(ctx)
}

// RefreshRanks recomputes the window boards and runs the cross-user badge pass
func (s *rewardsService) RefreshRanks(ctx context.Context) error {
	if err := s.refreshWindows(ctx); err != nil {
		return err
	}
	awarded, err := s.awardBatchBadges(ctx)
	if err != nil {
		return err
	}
	if awarded > 0 {
		logger.Infof("Cross-user badge pass awarded %d badges", awarded)
	}
	return nil
}

// Snapshot returns every board for publishing
func (s *rewardsService) Snapshot() []models.LeaderboardResult {
	return s.ranker.Snapshot()
}

// windowSince is the first instant counted by a period's board
func windowSince(period models.Period, now time.Time) time.Time {
	switch period {
	case models.PeriodWeekly:
		return utils.WindowStart(now, WeeklyGoalWindow)
	case models.PeriodMonthly:
		return utils.WindowStart(now, MonthlyGoalWindow)
	}
	return time.Time{}
}

func (s *rewardsService) refreshWindows(ctx context.Context) error {
	start := time.Now()
	now := s.opts.Now().UTC()
	for _, p := range []models.Period{models.PeriodWeekly, models.PeriodMonthly, models.PeriodAllTime} {
		scores, err := s.ledger.PointsSince(ctx, windowSince(p, now))
		if err != nil {
			return fmt.Errorf("failed to compute %s board: %w", p, err)
		}
		s.ranker.ReplaceWindow(p, scores, now)
	}
	metrics.RankRecompute.WithLabelValues("window").Observe(time.Since(start).Seconds())
	return nil
}

// ensureWindows computes the window boards if a query needs them and they
// were never computed
func (s *rewardsService) ensureWindows(ctx context.Context, scope models.Scope, period models.Period) error {
	needed := period
	if scope.Kind == models.ScopeTimeWindow {
		p, err := models.ParsePeriod(scope.Value)
		if err != nil {
			return err
		}
		needed = p
	}
	if needed == "" || (needed == models.PeriodAllTime && scope.Kind != models.ScopeTimeWindow) {
		return nil
	}
	if !s.ranker.WindowComputedAt(needed).IsZero() {
		return nil
	}
	return s.refreshWindows(ctx)
}
