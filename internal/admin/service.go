// Package admin implements the admin mutation layer: field-level updates to
// users, rides, and payments with before/after diff capture, user suspension,
// and audited list access. Every state change produced here is written
// fail-closed through the audit recorder — if the audit record cannot be
// stored, the mutation is reported as failed even though the row may already
// have been written, and the caller sees an error.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openride/openride/internal/db/models"
	"github.com/openride/openride/internal/db/repositories"
	"github.com/openride/openride/internal/telemetry"
)

// Sentinel errors surfaced to the HTTP layer.
var (
	// ErrNotFound means the target entity does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrEmptyUpdate means the request changed nothing.
	ErrEmptyUpdate = errors.New("no fields to update")
	// ErrConflict means the entity was modified concurrently; the caller
	// should re-read and retry.
	ErrConflict = errors.New("entity was modified concurrently")
	// ErrValidation wraps rejected field values so the HTTP layer can answer 400.
	ErrValidation = errors.New("validation failed")
)

// Recorder is the audit write dependency. Satisfied by *audit.Recorder.
type Recorder interface {
	LogAction(ctx context.Context, record *models.AuditLog) (string, error)
}

// Service carries out admin mutations against the repositories and records
// every one of them in the audit trail.
type Service struct {
	users    *repositories.UserRepository
	rides    *repositories.RideRepository
	payments *repositories.PaymentRepository
	recorder Recorder
}

// NewService creates an admin Service.
func NewService(
	users *repositories.UserRepository,
	rides *repositories.RideRepository,
	payments *repositories.PaymentRepository,
	recorder Recorder,
) *Service {
	return &Service{
		users:    users,
		rides:    rides,
		payments: payments,
		recorder: recorder,
	}
}

// UserUpdate lists the user fields an admin may change. Nil pointers leave
// the field untouched.
type UserUpdate struct {
	Email      *string  `json:"email"`
	Name       *string  `json:"name"`
	Phone      *string  `json:"phone"`
	Role       *string  `json:"role"`
	Status     *string  `json:"status"`
	IsVerified *bool    `json:"is_verified"`
	Rating     *float64 `json:"rating"`
}

// RideUpdate lists the ride fields an admin may change.
type RideUpdate struct {
	DriverID       *string  `json:"driver_id"`
	Status         *string  `json:"status"`
	PickupAddress  *string  `json:"pickup_address"`
	DropoffAddress *string  `json:"dropoff_address"`
	Fare           *float64 `json:"fare"`
}

// PaymentUpdate lists the payment fields an admin may change.
type PaymentUpdate struct {
	Amount   *float64 `json:"amount"`
	Currency *string  `json:"currency"`
	Status   *string  `json:"status"`
	Method   *string  `json:"method"`
}

// diff accumulates the before/after snapshot while an update is applied.
// Only fields that actually change are captured; an update that sets a field
// to its current value is not a change.
type diff struct {
	old      map[string]interface{}
	new      map[string]interface{}
	modified []string
}

func newDiff() *diff {
	return &diff{
		old: make(map[string]interface{}),
		new: make(map[string]interface{}),
	}
}

func (d *diff) record(field string, oldVal, newVal interface{}) {
	d.old[field] = oldVal
	d.new[field] = newVal
	d.modified = append(d.modified, field)
}

func (d *diff) empty() bool { return len(d.modified) == 0 }

// finish stamps the new updated_at into the after-snapshot. The before value
// of updated_at is not part of old_data: only fields the admin changed are.
func (d *diff) finish(updatedAt time.Time) {
	d.new["updated_at"] = updatedAt
	d.modified = append(d.modified, "updated_at")
}

func applyString(d *diff, field string, current *string, update *string) {
	if update != nil && *update != *current {
		d.record(field, *current, *update)
		*current = *update
	}
}

func applyFloat(d *diff, field string, current *float64, update *float64) {
	if update != nil && *update != *current {
		d.record(field, *current, *update)
		*current = *update
	}
}

// UpdateUser applies the given field changes to a user and records the diff
// in the audit trail with medium severity. The returned slice names the
// fields that actually changed, updated_at included.
func (s *Service) UpdateUser(ctx context.Context, actorID, userID string, update UserUpdate) (*models.User, []string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, nil, ErrNotFound
	}

	observedUpdatedAt := user.UpdatedAt

	d := newDiff()
	applyString(d, "email", &user.Email, update.Email)
	applyString(d, "name", &user.Name, update.Name)
	applyString(d, "phone", &user.Phone, update.Phone)
	applyString(d, "role", &user.Role, update.Role)
	applyString(d, "status", &user.Status, update.Status)
	if update.IsVerified != nil && *update.IsVerified != user.IsVerified {
		d.record("is_verified", user.IsVerified, *update.IsVerified)
		user.IsVerified = *update.IsVerified
	}
	applyFloat(d, "rating", &user.Rating, update.Rating)

	if d.empty() {
		return nil, nil, ErrEmptyUpdate
	}

	if update.Role != nil && !validRole(*update.Role) {
		return nil, nil, fmt.Errorf("%w: invalid role %q", ErrValidation, *update.Role)
	}
	if update.Status != nil && !validUserStatus(*update.Status) {
		return nil, nil, fmt.Errorf("%w: invalid status %q", ErrValidation, *update.Status)
	}

	rows, err := s.users.Update(ctx, user, observedUpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update user: %w", err)
	}
	if rows == 0 {
		return nil, nil, ErrConflict
	}
	d.finish(user.UpdatedAt)

	if err := s.logMutation(ctx, actorID, models.ActionAdminUserModified, "user", userID, &userID, d, models.SeverityMedium); err != nil {
		return nil, nil, err
	}

	telemetry.AdminUpdatesTotal.WithLabelValues("user").Inc()
	return user, d.modified, nil
}

// SuspendUser suspends a user account, optionally for a limited number of
// days, and records a high-severity audit entry. Returns the changed field
// names alongside the user.
func (s *Service) SuspendUser(ctx context.Context, actorID, userID, reason string, durationDays int) (*models.User, []string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, nil, ErrNotFound
	}

	observedUpdatedAt := user.UpdatedAt

	d := newDiff()
	d.record("status", user.Status, models.UserStatusSuspended)
	user.Status = models.UserStatusSuspended

	var oldReason interface{}
	if user.SuspensionReason != nil {
		oldReason = *user.SuspensionReason
	}
	d.record("suspension_reason", oldReason, reason)
	user.SuspensionReason = &reason

	if durationDays > 0 {
		expiresAt := time.Now().UTC().Add(time.Duration(durationDays) * 24 * time.Hour)
		var oldExpiry interface{}
		if user.SuspensionExpiresAt != nil {
			oldExpiry = *user.SuspensionExpiresAt
		}
		d.record("suspension_expires_at", oldExpiry, expiresAt)
		user.SuspensionExpiresAt = &expiresAt
	}

	rows, err := s.users.Update(ctx, user, observedUpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to suspend user: %w", err)
	}
	if rows == 0 {
		return nil, nil, ErrConflict
	}
	d.finish(user.UpdatedAt)

	if err := s.logMutation(ctx, actorID, models.ActionAdminUserSuspend, "user", userID, &userID, d, models.SeverityHigh); err != nil {
		return nil, nil, err
	}

	telemetry.AdminUpdatesTotal.WithLabelValues("user").Inc()
	return user, d.modified, nil
}

// UpdateRide applies the given field changes to a ride and records the diff
// in the audit trail with medium severity. Returns the changed field names
// alongside the ride.
func (s *Service) UpdateRide(ctx context.Context, actorID, rideID string, update RideUpdate) (*models.Ride, []string, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load ride: %w", err)
	}
	if ride == nil {
		return nil, nil, ErrNotFound
	}

	observedUpdatedAt := ride.UpdatedAt

	d := newDiff()
	if update.DriverID != nil {
		var oldDriver interface{}
		if ride.DriverID != nil {
			oldDriver = *ride.DriverID
		}
		if ride.DriverID == nil || *ride.DriverID != *update.DriverID {
			d.record("driver_id", oldDriver, *update.DriverID)
			ride.DriverID = update.DriverID
		}
	}
	applyString(d, "status", &ride.Status, update.Status)
	applyString(d, "pickup_address", &ride.PickupAddress, update.PickupAddress)
	applyString(d, "dropoff_address", &ride.DropoffAddress, update.DropoffAddress)
	applyFloat(d, "fare", &ride.Fare, update.Fare)

	if d.empty() {
		return nil, nil, ErrEmptyUpdate
	}

	if update.Status != nil && !validRideStatus(*update.Status) {
		return nil, nil, fmt.Errorf("%w: invalid ride status %q", ErrValidation, *update.Status)
	}

	rows, err := s.rides.Update(ctx, ride, observedUpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update ride: %w", err)
	}
	if rows == 0 {
		return nil, nil, ErrConflict
	}
	d.finish(ride.UpdatedAt)

	if err := s.logMutation(ctx, actorID, models.ActionAdminRideModified, "ride", rideID, nil, d, models.SeverityMedium); err != nil {
		return nil, nil, err
	}

	telemetry.AdminUpdatesTotal.WithLabelValues("ride").Inc()
	return ride, d.modified, nil
}

// UpdatePayment applies the given field changes to a payment and records the
// diff in the audit trail. Payment mutations are always high severity.
// Returns the changed field names alongside the payment.
func (s *Service) UpdatePayment(ctx context.Context, actorID, paymentID string, update PaymentUpdate) (*models.Payment, []string, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if payment == nil {
		return nil, nil, ErrNotFound
	}

	observedUpdatedAt := payment.UpdatedAt

	d := newDiff()
	applyFloat(d, "amount", &payment.Amount, update.Amount)
	applyString(d, "currency", &payment.Currency, update.Currency)
	applyString(d, "status", &payment.Status, update.Status)
	applyString(d, "method", &payment.Method, update.Method)

	if d.empty() {
		return nil, nil, ErrEmptyUpdate
	}

	if update.Status != nil && !validPaymentStatus(*update.Status) {
		return nil, nil, fmt.Errorf("%w: invalid payment status %q", ErrValidation, *update.Status)
	}

	rows, err := s.payments.Update(ctx, payment, observedUpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update payment: %w", err)
	}
	if rows == 0 {
		return nil, nil, ErrConflict
	}
	d.finish(payment.UpdatedAt)

	targetUserID := payment.UserID
	if err := s.logMutation(ctx, actorID, models.ActionAdminPayModified, "payment", paymentID, &targetUserID, d, models.SeverityHigh); err != nil {
		return nil, nil, err
	}

	telemetry.AdminUpdatesTotal.WithLabelValues("payment").Inc()
	return payment, d.modified, nil
}

// ListUsers returns users matching the filters together with the total count
// and whether more pages exist. The access itself is recorded in the audit
// trail at low severity; unlike mutations, a failed access record does not
// fail the read.
func (s *Service) ListUsers(ctx context.Context, actorID string, filters repositories.UserFilters, limit, offset int) ([]*models.User, int, bool, error) {
	limit, offset = normalizePage(limit, offset)

	users, total, err := s.users.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to list users: %w", err)
	}

	s.logListAccess(ctx, actorID, models.ActionAdminUsersListed, "user", map[string]interface{}{
		"role":   derefOrNil(filters.Role),
		"status": derefOrNil(filters.Status),
		"search": filters.Search,
		"limit":  limit,
		"offset": offset,
	})

	return users, total, hasMore(offset, len(users), total), nil
}

// ListRides returns rides matching the filters, with an audited access record.
func (s *Service) ListRides(ctx context.Context, actorID string, filters repositories.RideFilters, limit, offset int) ([]*models.Ride, int, bool, error) {
	limit, offset = normalizePage(limit, offset)

	rides, total, err := s.rides.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to list rides: %w", err)
	}

	s.logListAccess(ctx, actorID, models.ActionAdminRidesListed, "ride", map[string]interface{}{
		"rider_id":  derefOrNil(filters.RiderID),
		"driver_id": derefOrNil(filters.DriverID),
		"status":    derefOrNil(filters.Status),
		"search":    filters.Search,
		"limit":     limit,
		"offset":    offset,
	})

	return rides, total, hasMore(offset, len(rides), total), nil
}

// ListPayments returns payments matching the filters, with an audited access record.
func (s *Service) ListPayments(ctx context.Context, actorID string, filters repositories.PaymentFilters, limit, offset int) ([]*models.Payment, int, bool, error) {
	limit, offset = normalizePage(limit, offset)

	payments, total, err := s.payments.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to list payments: %w", err)
	}

	s.logListAccess(ctx, actorID, models.ActionAdminPaysListed, "payment", map[string]interface{}{
		"ride_id": derefOrNil(filters.RideID),
		"user_id": derefOrNil(filters.UserID),
		"status":  derefOrNil(filters.Status),
		"limit":   limit,
		"offset":  offset,
	})

	return payments, total, hasMore(offset, len(payments), total), nil
}

// GetUser loads a single user.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// GetRide loads a single ride.
func (s *Service) GetRide(ctx context.Context, rideID string) (*models.Ride, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride == nil {
		return nil, ErrNotFound
	}
	return ride, nil
}

// GetPayment loads a single payment.
func (s *Service) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrNotFound
	}
	return payment, nil
}

// logMutation records the audit entry for a completed mutation. Fail-closed:
// errors propagate to the caller and the operation is reported as failed.
func (s *Service) logMutation(ctx context.Context, actorID, action, entityType, entityID string, targetUserID *string, d *diff, severity string) error {
	_, err := s.recorder.LogAction(ctx, &models.AuditLog{
		Action:       action,
		UserID:       &actorID,
		TargetUserID: targetUserID,
		EntityType:   &entityType,
		EntityID:     &entityID,
		OldData:      d.old,
		NewData:      d.new,
		Metadata: map[string]interface{}{
			"modified_fields": d.modified,
		},
		Severity: severity,
	})
	if err != nil {
		return fmt.Errorf("mutation applied but audit record failed: %w", err)
	}
	return nil
}

// logListAccess records a low-severity access entry for list endpoints.
// Fail-open: a broken audit path must not take down read access.
func (s *Service) logListAccess(ctx context.Context, actorID, action, entityType string, queryMeta map[string]interface{}) {
	_, err := s.recorder.LogAction(ctx, &models.AuditLog{
		Action:     action,
		UserID:     &actorID,
		EntityType: &entityType,
		Metadata: map[string]interface{}{
			"query": queryMeta,
		},
		Severity: models.SeverityLow,
	})
	if err != nil {
		slog.Warn("failed to record list access", "action", action, "error", err)
	}
}

func normalizePage(limit, offset int) (int, int) {
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

func hasMore(offset, returned, total int) bool {
	return offset+returned < total
}

func derefOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func validRole(role string) bool {
	switch role {
	case models.RoleRider, models.RoleDriver, models.RoleAdmin:
		return true
	}
	return false
}

func validUserStatus(status string) bool {
	switch status {
	case models.UserStatusActive, models.UserStatusSuspended:
		return true
	}
	return false
}

func validRideStatus(status string) bool {
	switch status {
	case models.RideStatusRequested, models.RideStatusAccepted, models.RideStatusStarted,
		models.RideStatusCompleted, models.RideStatusCancelled:
		return true
	}
	return false
}

func validPaymentStatus(status string) bool {
	switch status {
	case models.PaymentStatusPending, models.PaymentStatusSucceeded,
		models.PaymentStatusFailed, models.PaymentStatusRefunded:
		return true
	}
	return false
}
