// audit.go implements handlers for querying the audit trail. Listing is
// available to every authenticated user but non-admin callers are scoped to
// records where they are the actor or the target; single-record lookup is
// admin only.
package admin

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openride/openride/internal/db/models"
	"github.com/openride/openride/internal/db/repositories"
	"github.com/openride/openride/internal/middleware"
)

// AuditHandlers handles audit trail query endpoints
type AuditHandlers struct {
	auditRepo *repositories.AuditLogRepository
}

// NewAuditHandlers creates a new AuditHandlers instance
func NewAuditHandlers(db *sql.DB) *AuditHandlers {
	return &AuditHandlers{
		auditRepo: repositories.NewAuditLogRepository(db),
	}
}

// @Summary      List audit logs
// @Description  Query the audit trail with filters. Non-admin callers only see records where they are the actor or the target; filters narrow that view but never widen it.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        user_id         query  string  false  "Filter by actor user ID"
// @Param        target_user_id  query  string  false  "Filter by target user ID"
// @Param        action          query  string  false  "Filter by exact action tag"
// @Param        entity_type     query  string  false  "Filter by entity type (user, ride, payment)"
// @Param        entity_id       query  string  false  "Filter by entity ID"
// @Param        severity        query  string  false  "Filter by severity"
// @Param        start_time      query  string  false  "Only records at or after this RFC3339 timestamp"
// @Param        end_time        query  string  false  "Only records at or before this RFC3339 timestamp"
// @Param        search_term     query  string  false  "Substring match over action, entity type, entity ID, and the metadata description"
// @Param        limit           query  int     false  "Page size, max 500 (default 50)"
// @Param        offset          query  int     false  "Rows to skip (default 0)"
// @Success      200  {object}  map[string]interface{}  "audit_logs: []models.AuditLog, pagination: map"
// @Failure      400  {object}  map[string]interface{}  "Invalid filter value"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/audit-logs [get]
// ListAuditLogsHandler lists audit records matching the query filters
// GET /api/v1/audit-logs?action=...&severity=...&limit=50&offset=0
func (h *AuditHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, err := parseAuditFilters(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid filter: " + err.Error(),
			})
			return
		}

		// Non-admin callers are pinned to their own history. The restriction
		// composes with the other filters via AND inside the repository.
		if c.GetString(middleware.UserRoleKey) != models.RoleAdmin {
			callerID := c.GetString(middleware.UserIDKey)
			filters.InvolvedUserID = &callerID
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		records, total, err := h.auditRepo.List(c.Request.Context(), filters, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list audit logs",
			})
			return
		}

		if limit <= 0 {
			limit = repositories.DefaultAuditLimit
		}
		if limit > repositories.MaxAuditLimit {
			limit = repositories.MaxAuditLimit
		}
		if offset < 0 {
			offset = 0
		}

		c.JSON(http.StatusOK, gin.H{
			"audit_logs": records,
			"pagination": gin.H{
				"total":    total,
				"limit":    limit,
				"offset":   offset,
				"has_more": offset+len(records) < total,
			},
		})
	}
}

// @Summary      Get audit log
// @Description  Get a single audit record by ID. Admin only.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Audit record ID"
// @Success      200  {object}  map[string]interface{}  "audit_log: models.AuditLog"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      404  {object}  map[string]interface{}  "Audit log not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/audit-logs/{id} [get]
// GetAuditLogHandler retrieves a single audit record by ID
// GET /api/v1/audit-logs/:id
func (h *AuditHandlers) GetAuditLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := h.auditRepo.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve audit log",
			})
			return
		}

		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Audit log not found",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"audit_log": record,
		})
	}
}

// parseAuditFilters builds repository filters from the request query string.
func parseAuditFilters(c *gin.Context) (repositories.AuditFilters, error) {
	var filters repositories.AuditFilters

	setIfPresent := func(param string, dest **string) {
		if value := c.Query(param); value != "" {
			v := value
			*dest = &v
		}
	}

	setIfPresent("user_id", &filters.UserID)
	setIfPresent("target_user_id", &filters.TargetUserID)
	setIfPresent("action", &filters.Action)
	setIfPresent("entity_type", &filters.EntityType)
	setIfPresent("entity_id", &filters.EntityID)
	setIfPresent("severity", &filters.Severity)
	filters.SearchTerm = c.Query("search_term")

	if raw := c.Query("start_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, err
		}
		filters.StartTime = &t
	}
	if raw := c.Query("end_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, err
		}
		filters.EndTime = &t
	}

	if filters.Severity != nil && !models.ValidSeverities[*filters.Severity] {
		return filters, errInvalidSeverity
	}

	return filters, nil
}

type auditFilterError string

func (e auditFilterError) Error() string { return string(e) }

const errInvalidSeverity = auditFilterError("unknown severity value")
