// rides.go implements admin handlers for ride oversight: listing, lookup, and
// field-level corrections with audit diff capture.
package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	adminsvc "github.com/openride/openride/internal/admin"
	"github.com/openride/openride/internal/db/repositories"
	"github.com/openride/openride/internal/middleware"
)

// RideHandlers handles admin ride management endpoints
type RideHandlers struct {
	svc *adminsvc.Service
}

// NewRideHandlers creates a new RideHandlers instance
func NewRideHandlers(svc *adminsvc.Service) *RideHandlers {
	return &RideHandlers{svc: svc}
}

// @Summary      List rides
// @Description  Get a paginated list of rides, optionally filtered by rider, driver, or status. The access is recorded in the audit trail. Admin only.
// @Tags         Rides
// @Security     Bearer
// @Produce      json
// @Param        rider_id   query  string  false  "Filter by rider user ID"
// @Param        driver_id  query  string  false  "Filter by driver user ID"
// @Param        status      query  string  false  "Filter by ride status"
// @Param        search      query  string  false  "Substring match over pickup and dropoff addresses"
// @Param        start_time  query  string  false  "Only rides created at or after this RFC3339 timestamp"
// @Param        end_time    query  string  false  "Only rides created at or before this RFC3339 timestamp"
// @Param        sort_by     query  string  false  "Sort column (created_at, updated_at, status, fare)"
// @Param        sort_order  query  string  false  "asc or desc (default desc)"
// @Param        limit       query  int     false  "Page size, max 500 (default 50)"
// @Param        offset      query  int     false  "Rows to skip (default 0)"
// @Success      200  {object}  map[string]interface{}  "rides: []models.Ride, pagination: map"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/rides [get]
// ListRidesHandler lists rides with pagination
// GET /api/v1/admin/rides?status=completed&limit=50&offset=0
func (h *RideHandlers) ListRidesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters repositories.RideFilters
		if riderID := c.Query("rider_id"); riderID != "" {
			filters.RiderID = &riderID
		}
		if driverID := c.Query("driver_id"); driverID != "" {
			filters.DriverID = &driverID
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

		rides, total, hasMore, err := h.svc.ListRides(
			c.Request.Context(), c.GetString(middleware.UserIDKey), filters, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list rides",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"rides":      rides,
			"pagination": paginationBody(total, limit, offset, hasMore),
		})
	}
}

// @Summary      Get ride
// @Description  Get a ride by ID. Admin only.
// @Tags         Rides
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Ride ID"
// @Success      200  {object}  map[string]interface{}  "ride: models.Ride"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Ride not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/rides/{id} [get]
// GetRideHandler retrieves a specific ride by ID
// GET /api/v1/admin/rides/:id
func (h *RideHandlers) GetRideHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ride, err := h.svc.GetRide(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, adminsvc.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Ride not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve ride",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"ride": ride,
		})
	}
}

// @Summary      Update ride
// @Description  Apply field-level corrections to a ride. Only fields present in the body are touched; the before/after diff is captured in the audit trail. Admin only.
// @Tags         Rides
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string               true  "Ride ID"
// @Param        body  body  adminsvc.RideUpdate  true  "Fields to change"
// @Success      200  {object}  map[string]interface{}  "ride: models.Ride, modified_fields: []string"
// @Failure      400  {object}  map[string]interface{}  "Invalid request or no fields to update"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Ride not found"
// @Failure      409  {object}  map[string]interface{}  "Ride was modified concurrently"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/rides/{id} [put]
// UpdateRideHandler applies an admin update to a ride
// PUT /api/v1/admin/rides/:id
func (h *RideHandlers) UpdateRideHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var update adminsvc.RideUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		ride, modified, err := h.svc.UpdateRide(
			c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("id"), update)
		if err != nil {
			respondUpdateError(c, err, "ride")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"ride":            ride,
			"modified_fields": modified,
		})
	}
}
