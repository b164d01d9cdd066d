package http

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"carboniq/pkg/models"
	"carboniq/pkg/utils"
)

// targetUser resolves whose rewards a request reads. Users read their own;
// admin and service callers may name another user with ?user_id=.
func targetUser(c *gin.Context) (string, bool) {
	principal, ok := GetPrincipal(c)
	if !ok {
		respondError(c, 401, "unauthorized")
		return "", false
	}

	userID := c.Query("user_id")
	if userID == "" || userID == principal.UserID {
		return principal.UserID, true
	}
	if !principal.HasRole(models.UserRoleAdmin, models.UserRoleService) {
		respondServiceError(c, fmt.Errorf("%w: cannot read another user's rewards", models.ErrForbidden), "forbidden")
		return "", false
	}
	return userID, true
}

// getProfile returns stats, recent rewards and badge progress
func (s *Server) getProfile(c *gin.Context) {
	userID, ok := targetUser(c)
	if !ok {
		return
	}

	profile, err := s.rewards.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "failed to get profile")
		return
	}
	respond(c, 200, profile)
}

// getStats returns the aggregate with level information
func (s *Server) getStats(c *gin.Context) {
	userID, ok := targetUser(c)
	if !ok {
		return
	}

	stats, err := s.rewards.GetStats(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "failed to get stats")
		return
	}
	respond(c, 200, stats)
}

// getHistory returns one page of the ledger, newest first
func (s *Server) getHistory(c *gin.Context) {
	userID, ok := targetUser(c)
	if !ok {
		return
	}

	limit := utils.ParseLimit(c.Query("limit"), 20, s.config.Rewards.HistoryMaxLimit)
	offset := utils.ParseOffset(c.Query("offset"))
	kind := models.RewardKind(c.Query("kind"))

	page, err := s.rewards.GetHistory(c.Request.Context(), userID, limit, offset, kind)
	if err != nil {
		respondServiceError(c, err, "failed to get history")
		return
	}
	c.JSON(200, models.PaginatedResponse[models.RewardEvent]{
		Data: page.Rewards,
		Meta: page.Meta,
	})
}

// getAchievements returns progress toward every badge
func (s *Server) getAchievements(c *gin.Context) {
	userID, ok := targetUser(c)
	if !ok {
		return
	}

	progress, err := s.rewards.GetAchievementProgress(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "failed to get achievements")
		return
	}
	respond(c, 200, progress)
}

// getBadgeCatalog lists every badge (public)
func (s *Server) getBadgeCatalog(c *gin.Context) {
	respond(c, 200, s.rewards.GetBadgeCatalog())
}

// getMyRank returns the caller's position on one board
func (s *Server) getMyRank(c *gin.Context) {
	userID, ok := targetUser(c)
	if !ok {
		return
	}
	scope, period, err := parseBoard(c)
	if err != nil {
		respondServiceError(c, err, "invalid leaderboard")
		return
	}

	rank, err := s.rewards.GetMyRank(c.Request.Context(), userID, scope, period)
	if err != nil {
		respondServiceError(c, err, "failed to get rank")
		return
	}
	respondWarning(c, 200, rank, rank.Warning)
}

// syncStats rebuilds the caller's stats from the ledger
func (s *Server) syncStats(c *gin.Context) {
	userID, ok := targetUser(c)
	if !ok {
		return
	}

	stats, err := s.rewards.SyncStats(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "failed to sync stats")
		return
	}
	respond(c, 200, stats)
}
