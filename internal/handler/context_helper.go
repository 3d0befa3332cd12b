package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/fluxmarket/availability-api/internal/middleware"
	"github.com/fluxmarket/availability-api/internal/models"
)

// claimsFromContext extracts the authenticated claims set by the JWT middleware.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	raw, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, ok := raw.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
