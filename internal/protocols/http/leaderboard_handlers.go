package http

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"carboniq/pkg/models"
	"carboniq/pkg/utils"
)

// parseBoard reads ?scope=, ?institution_id=, ?category= and ?period=.
// scope defaults to global and period to all_time.
func parseBoard(c *gin.Context) (models.Scope, models.Period, error) {
	period, err := models.ParsePeriod(c.Query("period"))
	if err != nil {
		return models.Scope{}, "", err
	}

	var scope models.Scope
	switch kind := models.ScopeKind(c.DefaultQuery("scope", string(models.ScopeGlobal))); kind {
	case models.ScopeGlobal:
		scope = models.GlobalScope()
	case models.ScopeInstitution:
		scope = models.InstitutionScope(c.Query("institution_id"))
	case models.ScopeCategory:
		scope = models.CategoryScope(c.DefaultQuery("category", models.CategoryPoints))
	case models.ScopeTimeWindow:
		scope = models.TimeWindowScope(period)
	default:
		return models.Scope{}, "", fmt.Errorf("%w: unknown scope %q", models.ErrInvalidInput, kind)
	}

	if err := scope.Validate(); err != nil {
		return models.Scope{}, "", err
	}
	return scope, period, nil
}

// getLeaderboard lists the top of one board (public)
func (s *Server) getLeaderboard(c *gin.Context) {
	scope, period, err := parseBoard(c)
	if err != nil {
		respondServiceError(c, err, "invalid leaderboard")
		return
	}
	limit := utils.ParseLimit(c.Query("limit"), 10, s.config.Rewards.LeaderboardMaxLimit)

	result, err := s.rewards.GetLeaderboard(c.Request.Context(), models.LeaderboardQuery{
		Scope:  scope,
		Period: period,
		Limit:  limit,
	})
	if err != nil {
		respondServiceError(c, err, "failed to get leaderboard")
		return
	}
	respondWarning(c, 200, result, result.Warning)
}

// getInstitutionRankings ranks institutions by total points (public)
func (s *Server) getInstitutionRankings(c *gin.Context) {
	limit := utils.ParseLimit(c.Query("limit"), 10, s.config.Rewards.LeaderboardMaxLimit)

	rankings, err := s.rewards.GetInstitutionRankings(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err, "failed to get institution rankings")
		return
	}
	respond(c, 200, rankings)
}

// getRecentAchievements lists the latest badge unlocks (public)
func (s *Server) getRecentAchievements(c *gin.Context) {
	limit := utils.ParseLimit(c.Query("limit"), 10, s.config.Rewards.LeaderboardMaxLimit)

	achievements, err := s.rewards.GetRecentAchievements(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err, "failed to get recent achievements")
		return
	}
	respond(c, 200, achievements)
}
