package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dominus-Gray/polaris-analytics/internal/auth"
	"github.com/Dominus-Gray/polaris-analytics/internal/dto"
	"github.com/Dominus-Gray/polaris-analytics/internal/observability"
)

const principalKey = "principal"

// Identity headers set by the upstream gateway after credential validation.
// This service never verifies credentials itself.
const (
	headerUserID          = "X-User-Id"
	headerUserRole        = "X-User-Role"
	headerOrganizationKey = "X-Organization-Key"
)

// identityMiddleware extracts the pre-validated identity tuple. Requests
// without one are rejected before reaching any analytics route.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(headerUserID))
		rawRole := strings.TrimSpace(c.GetHeader(headerUserRole))

		if userID == "" || rawRole == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "unauthorized",
				Message: "missing identity headers",
			})
			return
		}

		role, err := auth.ParseRole(rawRole)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "unauthorized",
				Message: err.Error(),
			})
			return
		}

		c.Set(principalKey, auth.Principal{
			UserID:          userID,
			Role:            role,
			OrganizationKey: strings.TrimSpace(c.GetHeader(headerOrganizationKey)),
		})

		c.Next()
	}
}

func principalFrom(c *gin.Context) auth.Principal {
	principal, _ := c.Get(principalKey)
	p, _ := principal.(auth.Principal)
	return p
}

// metricsMiddleware records one counter increment and one duration sample
// per API call.
func metricsMiddleware(obs *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		obs.APICall(c.Request.Context(), c.FullPath(), c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
