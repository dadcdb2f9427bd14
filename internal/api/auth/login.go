// Package auth implements the public authentication endpoints. Login verifies
// credentials against the stored bcrypt hash and issues a short-lived JWT;
// every successful login is recorded in the audit trail.
package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openride/openride/internal/auth"
	"github.com/openride/openride/internal/config"
	"github.com/openride/openride/internal/db/models"
	"github.com/openride/openride/internal/db/repositories"
)

// ActionLogger is the audit write dependency. Satisfied by *audit.Recorder.
type ActionLogger interface {
	LogAction(ctx context.Context, record *models.AuditLog) (string, error)
}

// LoginHandlers handles credential-based authentication
type LoginHandlers struct {
	cfg      *config.Config
	userRepo *repositories.UserRepository
	recorder ActionLogger
}

// NewLoginHandlers creates a new LoginHandlers instance
func NewLoginHandlers(cfg *config.Config, userRepo *repositories.UserRepository, recorder ActionLogger) *LoginHandlers {
	return &LoginHandlers{
		cfg:      cfg,
		userRepo: userRepo,
		recorder: recorder,
	}
}

// LoginRequest is the credential payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// @Summary      Login
// @Description  Exchange email and password for a JWT session token. Successful logins are recorded in the audit trail.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  LoginRequest  true  "Credentials"
// @Success      200  {object}  map[string]interface{}  "token: JWT, user: models.User"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      401  {object}  map[string]interface{}  "Invalid email or password"
// @Failure      403  {object}  map[string]interface{}  "Account suspended"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/auth/login [post]
// LoginHandler authenticates a user and issues a JWT
// POST /api/v1/auth/login
func (h *LoginHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		user, err := h.userRepo.GetByEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to authenticate",
			})
			return
		}

		// Same answer for unknown email and wrong password so the endpoint
		// cannot be used to enumerate accounts.
		if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid email or password",
			})
			return
		}

		if user.IsSuspended() {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Account suspended",
			})
			return
		}

		token, err := auth.GenerateJWT(user.ID, user.Email, user.Role, h.cfg.Auth.TokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to issue token",
			})
			return
		}

		// Best effort: a broken audit path must not lock everyone out.
		if _, err := h.recorder.LogAction(c.Request.Context(), &models.AuditLog{
			Action:   models.ActionUserLogin,
			UserID:   &user.ID,
			Severity: models.SeverityInfo,
			Metadata: map[string]interface{}{
				"ip_address": c.ClientIP(),
			},
		}); err != nil {
			slog.Warn("failed to record login", "user_id", user.ID, "error", err)
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  user,
		})
	}
}
