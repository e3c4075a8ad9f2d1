package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitekit/backend/internal/interfaces/http/dto"
)

// UserIDKey is the gin context key for the authenticated user ID
const UserIDKey = "user_id"

// UserContext extracts the caller identity set by the authenticating edge
// proxy. The X-User-ID header is trusted here; the proxy strips it from
// external traffic before it reaches this service.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		if raw == "" {
			c.Next()
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(
				dto.ErrCodeValidationFormat,
				"X-User-ID header must be a UUID",
			))
			return
		}

		c.Set(UserIDKey, userID.String())
		c.Next()
	}
}

// RequireUser aborts with 401 when no user identity is present. Place it
// after UserContext on routes that need an authenticated caller.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(
				dto.ErrCodeUnauthorized,
				"Authentication required",
			))
			return
		}
		c.Next()
	}
}

// GetUserID returns the user ID from the gin context, empty when absent
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get(UserIDKey); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}
