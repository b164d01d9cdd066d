package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"carboniq/internal/core"
	"carboniq/internal/metrics"
	"carboniq/pkg/logger"
	"carboniq/pkg/models"
)

const principalKey = "principal"

// AuthMiddleware validates the bearer token and stores the principal
func AuthMiddleware(verifier core.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWith(c, models.ErrCodeUnauthorized, 401, "missing authorization header", models.ErrUnauthorized)
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWith(c, models.ErrCodeUnauthorized, 401, "invalid authorization format", models.ErrUnauthorized)
			return
		}

		principal, err := verifier.ValidateToken(parts[1])
		if err != nil {
			abortWith(c, models.ErrCodeUnauthorized, 401, "unauthorized", err)
			return
		}

		c.Set("user_id", principal.UserID)
		c.Set(principalKey, principal)
		c.Next()
	}
}

// GetPrincipal retrieves the authenticated caller from the context
func GetPrincipal(c *gin.Context) (*models.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return nil, false
	}
	p, ok := v.(*models.Principal)
	return p, ok
}

// RequireRole ensures the caller holds one of roles. Must run after AuthMiddleware.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			abortWith(c, models.ErrCodeUnauthorized, 401, "unauthorized", models.ErrUnauthorized)
			return
		}
		if !principal.HasRole(roles...) {
			abortWith(c, models.ErrCodeForbidden, 403, "forbidden: insufficient role", models.ErrForbidden)
			return
		}
		c.Next()
	}
}

// requestIDMiddleware propagates X-Request-ID into the request context
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// metricsMiddleware counts and logs every request by route template
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		logger.HTTP(c.Request.Method, route, status, int(time.Since(start).Milliseconds()))
	}
}
