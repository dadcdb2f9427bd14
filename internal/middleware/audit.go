// audit.go records authenticated HTTP requests in the audit trail. This is
// coarse request-level coverage: the admin mutation handlers additionally
// write their own fine-grained records with before/after diffs, so this
// middleware skips the admin mutation routes to avoid double entries.
package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openride/openride/internal/config"
	"github.com/openride/openride/internal/db/models"
	"github.com/openride/openride/internal/safego"
)

// ActionLogger is the audit write dependency. Satisfied by *audit.Recorder.
type ActionLogger interface {
	LogAction(ctx context.Context, record *models.AuditLog) (string, error)
}

// RequestAuditMiddleware logs requests according to the audit configuration.
// By default only successful write operations are recorded; reads and failed
// requests are opt-in. Records are written asynchronously — request-level
// audit is best-effort, unlike the fail-closed records written by the admin
// mutation layer.
func RequestAuditMiddleware(recorder ActionLogger, auditCfg config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if !auditCfg.Enabled || c.Request.Method == "OPTIONS" {
			return
		}

		isReadOp := c.Request.Method == "GET"
		isFailed := c.Writer.Status() >= 400

		if isReadOp && !auditCfg.LogReadOperations {
			return
		}
		if isFailed && !auditCfg.LogFailedRequests {
			return
		}

		// Admin mutations write their own diff-carrying records.
		if !isReadOp && strings.Contains(c.FullPath(), "/admin/") {
			return
		}

		record := &models.AuditLog{
			Action:   c.Request.Method + " " + c.Request.URL.Path,
			Severity: models.SeverityInfo,
		}

		if userID := c.GetString(UserIDKey); userID != "" {
			record.UserID = &userID
		}
		if entityType := entityTypeFromPath(c.Request.URL.Path); entityType != "" {
			record.EntityType = &entityType
		}

		metadata := map[string]interface{}{
			"status_code": c.Writer.Status(),
			"ip_address":  c.ClientIP(),
		}
		if authMethod := c.GetString(AuthMethodKey); authMethod != "" {
			metadata["auth_method"] = authMethod
		}
		if requestID := c.GetString(RequestIDKey); requestID != "" {
			metadata["request_id"] = requestID
		}
		record.Metadata = metadata

		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if _, err := recorder.LogAction(ctx, record); err != nil {
				slog.Warn("failed to record request audit entry",
					"action", record.Action, "error", err)
			}
		})
	}
}

func entityTypeFromPath(path string) string {
	switch {
	case strings.Contains(path, "/users"):
		return "user"
	case strings.Contains(path, "/rides"):
		return "ride"
	case strings.Contains(path, "/payments"):
		return "payment"
	case strings.Contains(path, "/audit-logs"):
		return "audit_log"
	}
	return ""
}
