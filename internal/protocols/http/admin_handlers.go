package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"carboniq/pkg/logger"
	"carboniq/pkg/models"
)

// reportCreated accepts a ReportCreated event and queues it. The report
// service never waits on reward processing.
func (s *Server) reportCreated(c *gin.Context) {
	var ev models.ReportCreated
	if err := c.ShouldBindJSON(&ev); err != nil {
		respondError(c, 400, "invalid request body")
		return
	}

	if err := s.events.Submit(ev); err != nil {
		respondServiceError(c, err, "failed to queue event")
		return
	}

	c.JSON(202, models.APIResponse{
		Success:   true,
		Message:   "Event accepted",
		Timestamp: time.Now(),
	})
}

// recalculateAll rebuilds every user's stats from the ledger
func (s *Server) recalculateAll(c *gin.Context) {
	principal, _ := GetPrincipal(c)

	summary, err := s.rewards.RecalculateAll(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "recalculation failed")
		return
	}

	logger.WithFields(map[string]interface{}{
		"admin_id":            principal.UserID,
		"users_processed":     summary.UsersProcessed,
		"discrepancies_fixed": summary.DiscrepanciesFixed,
	}).Info("Admin triggered recalculation")
	respond(c, 200, summary)
}

// registerSignup stores the signup order the identity service assigned
func (s *Server) registerSignup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, 400, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		respondServiceError(c, err, "invalid signup")
		return
	}

	userID := c.Param("user_id")
	if err := s.rewards.RegisterSignup(c.Request.Context(), userID, req.Order); err != nil {
		respondServiceError(c, err, "failed to register signup")
		return
	}
	respond(c, 200, gin.H{"user_id": userID, "order": req.Order})
}
