package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fluxmarket/availability-api/internal/models"
	"github.com/fluxmarket/availability-api/internal/service"
	appErrors "github.com/fluxmarket/availability-api/pkg/errors"
	"github.com/fluxmarket/availability-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// JWT protects routes by requiring a valid access token.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// CalendarOwner ensures the :providerID path segment belongs to the caller.
// Admins may act on any provider's calendar.
func CalendarOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := c.Get(ContextUserKey)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := raw.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if claims.Role == models.RoleAdmin {
			c.Next()
			return
		}
		if c.Param("providerID") != claims.UserID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "calendar belongs to another provider"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole restricts a route to the listed roles.
func RequireRole(roles ...models.ProviderRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := c.Get(ContextUserKey)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := raw.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
