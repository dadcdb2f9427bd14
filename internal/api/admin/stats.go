// stats.go implements the audit statistics endpoint: live aggregation over the
// audit trail for the admin dashboard. Counts are computed on every call; there
// is no cache to go stale between a mutation and the dashboard reflecting it.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/openride/openride/internal/db/models"
)

// StatsHandler handles audit statistics API requests
type StatsHandler struct {
	db *sqlx.DB
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(database *sqlx.DB) *StatsHandler {
	return &StatsHandler{
		db: database,
	}
}

// @Summary      Get audit statistics
// @Description  Returns aggregated audit trail statistics: total record count, activity in the last 24 hours, and per-action and per-severity distributions. Admin only.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  models.AuditStats
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/audit-logs/stats [get]
// GetAuditStats returns the audit trail summary.
func (h *StatsHandler) GetAuditStats(c *gin.Context) {
	ctx := c.Request.Context()

	var stats models.AuditStats

	// Core counts — single round-trip.
	query := `
		SELECT
			(SELECT COUNT(*) FROM audit_logs) AS total_count,
			(SELECT COUNT(*) FROM audit_logs WHERE timestamp >= $1) AS recent_count
	`
	since := time.Now().UTC().Add(-24 * time.Hour)
	if err := h.db.QueryRowContext(ctx, query, since).Scan(
		&stats.TotalAuditLogs,
		&stats.RecentActivity24h,
	); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit statistics"})
		return
	}

	// Per-action distribution, most frequent first.
	stats.ActionDistribution = []models.AuditActionCount{}
	if err := h.db.SelectContext(ctx, &stats.ActionDistribution, `
		SELECT action, COUNT(*) AS count, MAX(timestamp) AS latest
		FROM audit_logs
		GROUP BY action
		ORDER BY count DESC
	`); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit statistics"})
		return
	}

	// Per-severity distribution.
	stats.SeverityDistribution = []models.AuditSeverityCount{}
	if err := h.db.SelectContext(ctx, &stats.SeverityDistribution, `
		SELECT severity, COUNT(*) AS count
		FROM audit_logs
		GROUP BY severity
		ORDER BY count DESC
	`); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit statistics"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
