package http

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"carboniq/pkg/logger"
	"carboniq/pkg/models"
)

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, models.APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func respondWarning(c *gin.Context, status int, data interface{}, warning string) {
	c.JSON(status, models.APIResponse{
		Success:   true,
		Data:      data,
		Warning:   warning,
		Timestamp: time.Now(),
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, models.APIResponse{
		Success:   false,
		Error:     message,
		Timestamp: time.Now(),
	})
}

// respondServiceError maps a service error to its status. Internal errors
// are logged and answered with fallback so storage details do not leak.
func respondServiceError(c *gin.Context, err error, fallback string) {
	status := models.HTTPStatus(err)
	var appErr *models.AppError
	if errors.As(err, &appErr) && status < 500 {
		respondError(c, status, appErr.Message)
		return
	}
	if status >= 500 {
		logger.WithRequestID(c.Request.Context()).Error(fallback + ": " + err.Error())
		respondError(c, status, fallback)
		return
	}
	respondError(c, status, err.Error())
}

// abortWith answers with an HTTP-facing error and stops the handler chain
func abortWith(c *gin.Context, code string, status int, message string, cause error) {
	respondServiceError(c, models.NewHTTPError(code, message, status, cause), message)
	c.Abort()
}
