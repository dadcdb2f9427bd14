// Package middleware provides Gin HTTP middleware for authentication,
// authorization, rate limiting, security headers, and request audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RequestID → Metrics → RateLimit → Auth → Role → Audit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB work.
// Auth populates the user identity and role; Role gates on that context.
// Request audit runs after Role so only authorized requests are recorded.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openride/openride/internal/auth"
	"github.com/openride/openride/internal/db/repositories"
)

// Context keys populated by AuthMiddleware.
const (
	UserIDKey     = "user_id"
	UserEmailKey  = "user_email"
	UserRoleKey   = "user_role"
	AuthMethodKey = "auth_method"
)

// AuthMiddleware validates the Bearer JWT, confirms the account still exists
// and is not suspended, and stores the caller's identity in the context.
func AuthMiddleware(userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		// The token is stateless; the account lookup catches users deleted
		// or suspended after the token was issued.
		user, err := userRepo.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load user",
			})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not found",
			})
			return
		}
		if user.IsSuspended() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Account is suspended",
			})
			return
		}

		c.Set("user", user)
		c.Set(UserIDKey, user.ID)
		c.Set(UserEmailKey, user.Email)
		c.Set(UserRoleKey, user.Role)
		c.Set(AuthMethodKey, "jwt")

		c.Next()
	}
}
