// payments.go implements admin handlers for payment oversight. Payment
// mutations are always recorded at high severity.
package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	adminsvc "github.com/openride/openride/internal/admin"
	"github.com/openride/openride/internal/db/repositories"
	"github.com/openride/openride/internal/middleware"
)

// PaymentHandlers handles admin payment management endpoints
type PaymentHandlers struct {
	svc *adminsvc.Service
}

// NewPaymentHandlers creates a new PaymentHandlers instance
func NewPaymentHandlers(svc *adminsvc.Service) *PaymentHandlers {
	return &PaymentHandlers{svc: svc}
}

// @Summary      List payments
// @Description  Get a paginated list of payment transactions, optionally filtered by ride, user, or status. The access is recorded in the audit trail. Admin only.
// @Tags         Payments
// @Security     Bearer
// @Produce      json
// @Param        ride_id  query  string  false  "Filter by ride ID"
// @Param        user_id  query  string  false  "Filter by paying user ID"
// @Param        status      query  string  false  "Filter by payment status"
// @Param        start_time  query  string  false  "Only payments created at or after this RFC3339 timestamp"
// @Param        end_time    query  string  false  "Only payments created at or before this RFC3339 timestamp"
// @Param        sort_by     query  string  false  "Sort column (created_at, updated_at, status, amount)"
// @Param        sort_order  query  string  false  "asc or desc (default desc)"
// @Param        limit       query  int     false  "Page size, max 500 (default 50)"
// @Param        offset      query  int     false  "Rows to skip (default 0)"
// @Success      200  {object}  map[string]interface{}  "payments: []models.Payment, pagination: map"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/payments [get]
// ListPaymentsHandler lists payments with pagination
// GET /api/v1/admin/payments?status=failed&limit=50&offset=0
func (h *PaymentHandlers) ListPaymentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters repositories.PaymentFilters
		if rideID := c.Query("ride_id"); rideID != "" {
			filters.RideID = &rideID
		}
		if userID := c.Query("user_id"); userID != "" {
			filters.UserID = &userID
		}
		if status := c.Query("status"); status != "" {
			filters.Status = &status
		}
		filters.SortBy = c.Query("sort_by")
		filters.SortOrder = c.Query("sort_order")

		var err error
		filters.StartTime, filters.EndTime, err = parseTimeRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		limit, offset := parsePage(c)

		payments, total, hasMore, err := h.svc.ListPayments(
			c.Request.Context(), c.GetString(middleware.UserIDKey), filters, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list payments",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"payments":   payments,
			"pagination": paginationBody(total, limit, offset, hasMore),
		})
	}
}

// @Summary      Get payment
// @Description  Get a payment transaction by ID. Admin only.
// @Tags         Payments
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Payment ID"
// @Success      200  {object}  map[string]interface{}  "payment: models.Payment"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Payment not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/payments/{id} [get]
// GetPaymentHandler retrieves a specific payment by ID
// GET /api/v1/admin/payments/:id
func (h *PaymentHandlers) GetPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		payment, err := h.svc.GetPayment(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, adminsvc.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Payment not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve payment",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"payment": payment,
		})
	}
}

// @Summary      Update payment
// @Description  Apply field-level corrections to a payment transaction, e.g. marking a disputed charge refunded. The before/after diff is captured in the audit trail at high severity. Admin only.
// @Tags         Payments
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "Payment ID"
// @Param        body  body  adminsvc.PaymentUpdate  true  "Fields to change"
// @Success      200  {object}  map[string]interface{}  "payment: models.Payment, modified_fields: []string"
// @Failure      400  {object}  map[string]interface{}  "Invalid request or no fields to update"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Payment not found"
// @Failure      409  {object}  map[string]interface{}  "Payment was modified concurrently"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/payments/{id} [put]
// UpdatePaymentHandler applies an admin update to a payment
// PUT /api/v1/admin/payments/:id
func (h *PaymentHandlers) UpdatePaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var update adminsvc.PaymentUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		payment, modified, err := h.svc.UpdatePayment(
			c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("id"), update)
		if err != nil {
			respondUpdateError(c, err, "payment")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"payment":         payment,
			"modified_fields": modified,
		})
	}
}
