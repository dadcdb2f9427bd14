// users.go implements admin handlers for user account management: listing,
// lookup, field-level updates with audit diff capture, and suspension.
package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	adminsvc "github.com/openride/openride/internal/admin"
	"github.com/openride/openride/internal/db/repositories"
	"github.com/openride/openride/internal/middleware"
)

// UserHandlers handles admin user management endpoints
type UserHandlers struct {
	svc *adminsvc.Service
}

// NewUserHandlers creates a new UserHandlers instance
func NewUserHandlers(svc *adminsvc.Service) *UserHandlers {
	return &UserHandlers{svc: svc}
}

// @Summary      List users
// @Description  Get a paginated list of users, optionally filtered by role, status, or a search term over email and name. The access is recorded in the audit trail. Admin only.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        role    query  string  false  "Filter by role (rider, driver, admin)"
// @Param        status  query  string  false  "Filter by status (active, suspended)"
// @Param        search      query  string  false  "Substring match over email and name"
// @Param        start_time  query  string  false  "Only accounts created at or after this RFC3339 timestamp"
// @Param        end_time    query  string  false  "Only accounts created at or before this RFC3339 timestamp"
// @Param        sort_by     query  string  false  "Sort column (created_at, updated_at, email, name, rating)"
// @Param        sort_order  query  string  false  "asc or desc (default desc)"
// @Param        limit       query  int     false  "Page size, max 500 (default 50)"
// @Param        offset      query  int     false  "Rows to skip (default 0)"
// @Success      200  {object}  map[string]interface{}  "users: []models.User, pagination: map"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/users [get]
// ListUsersHandler lists users with pagination
// GET /api/v1/admin/users?role=driver&status=active&limit=50&offset=0
func (h *UserHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters repositories.UserFilters
		if role := c.Query("role"); role != "" {
			filters.Role = &role
		}
		if status := c.Query("status"); status != "" {
			filters.Status = &status
		}
		filters.Search = c.Query("search")
		filters.SortBy = c.Query("sort_by")
		filters.SortOrder = c.Query("sort_order")

		var err error
		filters.StartTime, filters.EndTime, err = parseTimeRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		limit, offset := parsePage(c)

		users, total, hasMore, err := h.svc.ListUsers(
			c.Request.Context(), c.GetString(middleware.UserIDKey), filters, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list users",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"users":      users,
			"pagination": paginationBody(total, limit, offset, hasMore),
		})
	}
}

// @Summary      Get user
// @Description  Get a user by ID. Admin only.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "User ID"
// @Success      200  {object}  map[string]interface{}  "user: models.User"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/users/{id} [get]
// GetUserHandler retrieves a specific user by ID
// GET /api/v1/admin/users/:id
func (h *UserHandlers) GetUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.svc.GetUser(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, adminsvc.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "User not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve user",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user": user,
		})
	}
}

// @Summary      Update user
// @Description  Apply field-level changes to a user account. Only fields present in the body are touched; the before/after diff of changed fields is captured in the audit trail. Admin only.
// @Tags         Users
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                true  "User ID"
// @Param        body  body  adminsvc.UserUpdate   true  "Fields to change"
// @Success      200  {object}  map[string]interface{}  "user: models.User, modified_fields: []string"
// @Failure      400  {object}  map[string]interface{}  "Invalid request or no fields to update"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Failure      409  {object}  map[string]interface{}  "User was modified concurrently"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/users/{id} [put]
// UpdateUserHandler applies an admin update to a user
// PUT /api/v1/admin/users/:id
func (h *UserHandlers) UpdateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var update adminsvc.UserUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		user, modified, err := h.svc.UpdateUser(
			c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("id"), update)
		if err != nil {
			respondUpdateError(c, err, "user")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user":            user,
			"modified_fields": modified,
		})
	}
}

// SuspendUserRequest is the body of the suspension endpoint. A zero or absent
// duration suspends indefinitely.
type SuspendUserRequest struct {
	Reason       string `json:"reason" binding:"required"`
	DurationDays int    `json:"duration_days"`
}

// @Summary      Suspend user
// @Description  Suspend a user account, optionally for a limited number of days. Recorded in the audit trail at high severity. Admin only.
// @Tags         Users
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string              true  "User ID"
// @Param        body  body  SuspendUserRequest  true  "Suspension reason and optional duration"
// @Success      200  {object}  map[string]interface{}  "user: models.User, modified_fields: []string"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Failure      409  {object}  map[string]interface{}  "User was modified concurrently"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/users/{id}/suspend [post]
// SuspendUserHandler suspends a user account
// POST /api/v1/admin/users/:id/suspend
func (h *UserHandlers) SuspendUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SuspendUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		user, modified, err := h.svc.SuspendUser(
			c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("id"),
			req.Reason, req.DurationDays)
		if err != nil {
			respondUpdateError(c, err, "user")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user":            user,
			"modified_fields": modified,
		})
	}
}

// parsePage reads limit/offset query parameters; clamping to the allowed
// bounds happens in the service layer, this only echoes the same values.
func parsePage(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 {
		limit = repositories.DefaultAuditLimit
	}
	if limit > repositories.MaxAuditLimit {
		limit = repositories.MaxAuditLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// parseTimeRange reads the optional start_time/end_time query parameters as
// RFC3339 bounds on created_at.
func parseTimeRange(c *gin.Context) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if v := c.Query("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, nil, errors.New("invalid start_time: must be RFC3339")
		}
		start = &t
	}
	if v := c.Query("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, nil, errors.New("invalid end_time: must be RFC3339")
		}
		end = &t
	}
	return start, end, nil
}

func paginationBody(total, limit, offset int, hasMore bool) gin.H {
	return gin.H{
		"total":    total,
		"limit":    limit,
		"offset":   offset,
		"has_more": hasMore,
	}
}

// respondUpdateError maps service errors from mutation endpoints onto HTTP
// statuses.
func respondUpdateError(c *gin.Context, err error, entity string) {
	switch {
	case errors.Is(err, adminsvc.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": entity + " not found"})
	case errors.Is(err, adminsvc.ErrEmptyUpdate):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
	case errors.Is(err, adminsvc.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, adminsvc.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": entity + " was modified concurrently, retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update " + entity})
	}
}
