package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/openride/openride/internal/db/models"
	"github.com/openride/openride/internal/db/repositories"
)

type captureRecorder struct {
	records []*models.AuditLog
	err     error
}

func (c *captureRecorder) LogAction(ctx context.Context, record *models.AuditLog) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.records = append(c.records, record)
	return "audit-1", nil
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *captureRecorder) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rec := &captureRecorder{}
	svc := NewService(
		repositories.NewUserRepository(db),
		repositories.NewRideRepository(db),
		repositories.NewPaymentRepository(db),
		rec,
	)
	return svc, mock, rec
}

var userCols = []string{
	"id", "email", "name", "phone", "password_hash", "role", "status",
	"is_verified", "rating", "suspension_reason", "suspension_expires_at",
	"created_at", "updated_at",
}

func userRow(updatedAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).
		AddRow("user-1", "old@example.com", "Ada", "+15551234567", "$2a$12$hash",
			"rider", "active", true, 4.8, nil, nil, time.Now(), updatedAt)
}

func strPtr(s string) *string { return &s }

// ---------------------------------------------------------------------------
// UpdateUser
// ---------------------------------------------------------------------------

func TestUpdateUser_DiffCapturesOnlyChangedFields(t *testing.T) {
	svc, mock, rec := newTestService(t)
	observed := time.Now().Add(-time.Hour)

	mock.ExpectQuery("SELECT id.*FROM users.*WHERE id").
		WillReturnRows(userRow(observed))
	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// name is set to its current value and must not appear in the diff
	user, modified, err := svc.UpdateUser(context.Background(), "admin-1", "user-1", UserUpdate{
		Email: strPtr("new@example.com"),
		Name:  strPtr("Ada"),
	})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if user.Email != "new@example.com" {
		t.Errorf("Email = %q", user.Email)
	}
	if len(modified) != 2 || modified[0] != "email" || modified[1] != "updated_at" {
		t.Errorf("modified = %v, want [email updated_at]", modified)
	}

	if len(rec.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(rec.records))
	}
	entry := rec.records[0]

	if entry.Action != models.ActionAdminUserModified {
		t.Errorf("action = %q", entry.Action)
	}
	if entry.Severity != models.SeverityMedium {
		t.Errorf("severity = %q, want medium", entry.Severity)
	}
	if len(entry.OldData) != 1 || entry.OldData["email"] != "old@example.com" {
		t.Errorf("old_data = %v, want only prior email", entry.OldData)
	}
	if entry.NewData["email"] != "new@example.com" {
		t.Errorf("new_data email = %v", entry.NewData["email"])
	}
	if _, ok := entry.NewData["updated_at"]; !ok {
		t.Error("new_data must include updated_at")
	}

	fields := entry.Metadata["modified_fields"].([]string)
	if len(fields) != 2 || fields[0] != "email" || fields[1] != "updated_at" {
		t.Errorf("modified_fields = %v, want [email updated_at]", fields)
	}
}

func TestUpdateUser_NotFound(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery("SELECT id.*FROM users.*WHERE id").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, _, err := svc.UpdateUser(context.Background(), "admin-1", "missing", UserUpdate{
		Email: strPtr("x@example.com"),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateUser_EmptyUpdate(t *testing.T) {
	svc, mock, rec := newTestService(t)
	mock.ExpectQuery("SELECT id.*FROM users.*WHERE id").
		WillReturnRows(userRow(time.Now()))

	_, _, err := svc.UpdateUser(context.Background(), "admin-1", "user-1", UserUpdate{
		Name: strPtr("Ada"), // unchanged
	})
	if !errors.Is(err, ErrEmptyUpdate) {
		t.Errorf("err = %v, want ErrEmptyUpdate", err)
	}
	if len(rec.records) != 0 {
		t.Errorf("no audit record expected for empty update, got %d", len(rec.records))
	}
}

func TestUpdateUser_Conflict(t *testing.T) {
	svc, mock, rec := newTestService(t)
	mock.ExpectQuery("SELECT id.*FROM users.*WHERE id").
		WillReturnRows(userRow(time.Now()))
	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, _, err := svc.UpdateUser(context.Background(), "admin-1", "user-1", UserUpdate{
		Email: strPtr("new@example.com"),
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	if len(rec.records) != 0 {
		t.Errorf("no audit record expected on conflict, got %d", len(rec.records))
	}
}

func TestUpdateUser_AuditFailureFailsClosed(t *testing.T) {
	svc, mock, rec := newTestService(t)
	rec.err = errors.New("audit store down")

	mock.ExpectQuery("SELECT id.*FROM users.*WHERE id").
		WillReturnRows(userRow(time.Now()))
	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, _, err := svc.UpdateUser(context.Background(), "admin-1", "user-1", UserUpdate{
		Email: strPtr("new@example.com"),
	})
	if err == nil {
		t.Fatal("expected error when audit write fails")
	}
}

func TestUpdateUser_InvalidRole(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery("SELECT id.*FROM users.*WHERE id").
		WillReturnRows(userRow(time.Now()))

	_, _, err := svc.UpdateUser(context.Background(), "admin-1", "user-1", UserUpdate{
		Role: strPtr("superuser"),
	})
	if err == nil {
		t.Error("expected error for invalid role")
	}
}

// ---------------------------------------------------------------------------
// SuspendUser
// ---------------------------------------------------------------------------

func TestSuspendUser_HighSeverityWithExpiry(t *testing.T) {
	svc, mock, rec := newTestService(t)
	mock.ExpectQuery("SELECT id.*FROM users.*WHERE id").
		WillReturnRows(userRow(time.Now()))
	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, modified, err := svc.SuspendUser(context.Background(), "admin-1", "user-1", "fraud report", 7)
	if err != nil {
		t.Fatalf("SuspendUser: %v", err)
	}
	if user.Status != models.UserStatusSuspended {
		t.Errorf("status = %q", user.Status)
	}
	if len(modified) != 4 {
		t.Errorf("modified = %v, want status, suspension_reason, suspension_expires_at, updated_at", modified)
	}
	if user.SuspensionExpiresAt == nil {
		t.Fatal("expected suspension expiry")
	}
	wantExpiry := time.Now().Add(7 * 24 * time.Hour)
	if delta := user.SuspensionExpiresAt.Sub(wantExpiry); delta > time.Minute || delta < -time.Minute {
		t.Errorf("expiry = %v, want ~%v", user.SuspensionExpiresAt, wantExpiry)
	}

	entry := rec.records[0]
	if entry.Action != models.ActionAdminUserSuspend {
		t.Errorf("action = %q", entry.Action)
	}
	if entry.Severity != models.SeverityHigh {
		t.Errorf("severity = %q, want high", entry.Severity)
	}
	if entry.OldData["status"] != "active" || entry.NewData["status"] != "suspended" {
		t.Errorf("status diff = %v -> %v", entry.OldData["status"], entry.NewData["status"])
	}
	if entry.NewData["suspension_reason"] != "fraud report" {
		t.Errorf("suspension_reason = %v", entry.NewData["suspension_reason"])
	}
}

func TestSuspendUser_NoExpiryWhenIndefinite(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery("SELECT id.*FROM users.*WHERE id").
		WillReturnRows(userRow(time.Now()))
	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, _, err := svc.SuspendUser(context.Background(), "admin-1", "user-1", "tos violation", 0)
	if err != nil {
		t.Fatalf("SuspendUser: %v", err)
	}
	if user.SuspensionExpiresAt != nil {
		t.Errorf("expected indefinite suspension, got expiry %v", user.SuspensionExpiresAt)
	}
}

// ---------------------------------------------------------------------------
// UpdateRide / UpdatePayment
// ---------------------------------------------------------------------------

var rideCols = []string{
	"id", "rider_id", "driver_id", "status", "pickup_address",
	"dropoff_address", "fare", "created_at", "updated_at",
}

func TestUpdateRide_MediumSeverity(t *testing.T) {
	svc, mock, rec := newTestService(t)
	mock.ExpectQuery("SELECT id.*FROM ride_matches.*WHERE id").
		WillReturnRows(sqlmock.NewRows(rideCols).
			AddRow("ride-1", "user-1", nil, "requested", "1 Main St", "99 Elm St", 20.0, time.Now(), time.Now()))
	mock.ExpectExec("UPDATE ride_matches").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ride, modified, err := svc.UpdateRide(context.Background(), "admin-1", "ride-1", RideUpdate{
		Status: strPtr("cancelled"),
	})
	if err != nil {
		t.Fatalf("UpdateRide: %v", err)
	}
	if ride.Status != models.RideStatusCancelled {
		t.Errorf("status = %q", ride.Status)
	}
	if len(modified) != 2 || modified[0] != "status" {
		t.Errorf("modified = %v, want [status updated_at]", modified)
	}

	entry := rec.records[0]
	if entry.Severity != models.SeverityMedium {
		t.Errorf("severity = %q, want medium", entry.Severity)
	}
	if entry.OldData["status"] != "requested" {
		t.Errorf("old_data status = %v", entry.OldData["status"])
	}
}

var paymentCols = []string{
	"id", "ride_id", "user_id", "amount", "currency", "status", "method",
	"created_at", "updated_at",
}

func TestUpdatePayment_HighSeverity(t *testing.T) {
	svc, mock, rec := newTestService(t)
	mock.ExpectQuery("SELECT id.*FROM payment_transactions.*WHERE id").
		WillReturnRows(sqlmock.NewRows(paymentCols).
			AddRow("pay-1", "ride-1", "user-1", 23.50, "USD", "succeeded", "card", time.Now(), time.Now()))
	mock.ExpectExec("UPDATE payment_transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	payment, modified, err := svc.UpdatePayment(context.Background(), "admin-1", "pay-1", PaymentUpdate{
		Status: strPtr("refunded"),
	})
	if err != nil {
		t.Fatalf("UpdatePayment: %v", err)
	}
	if payment.Status != models.PaymentStatusRefunded {
		t.Errorf("status = %q", payment.Status)
	}
	if len(modified) != 2 || modified[0] != "status" {
		t.Errorf("modified = %v, want [status updated_at]", modified)
	}

	entry := rec.records[0]
	if entry.Severity != models.SeverityHigh {
		t.Errorf("severity = %q, want high for payment change", entry.Severity)
	}
	if entry.TargetUserID == nil || *entry.TargetUserID != "user-1" {
		t.Errorf("target_user_id = %v, want payment owner", entry.TargetUserID)
	}
}

// ---------------------------------------------------------------------------
// List access records
// ---------------------------------------------------------------------------

func TestListUsers_RecordsLowSeverityAccess(t *testing.T) {
	svc, mock, rec := newTestService(t)
	mock.ExpectQuery("SELECT COUNT.*FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(120))
	mock.ExpectQuery("SELECT id.*FROM users").
		WillReturnRows(userRow(time.Now()))

	users, total, more, err := svc.ListUsers(context.Background(), "admin-1", repositories.UserFilters{}, 50, 0)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 || total != 120 {
		t.Errorf("len = %d, total = %d", len(users), total)
	}
	if !more {
		t.Error("has_more = false, want true (0+1 < 120)")
	}

	entry := rec.records[0]
	if entry.Action != models.ActionAdminUsersListed {
		t.Errorf("action = %q", entry.Action)
	}
	if entry.Severity != models.SeverityLow {
		t.Errorf("severity = %q, want low", entry.Severity)
	}
}

func TestListUsers_AccessRecordFailureIsFailOpen(t *testing.T) {
	svc, mock, rec := newTestService(t)
	rec.err = errors.New("audit store down")

	mock.ExpectQuery("SELECT COUNT.*FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id.*FROM users").
		WillReturnRows(userRow(time.Now()))

	users, _, _, err := svc.ListUsers(context.Background(), "admin-1", repositories.UserFilters{}, 50, 0)
	if err != nil {
		t.Fatalf("ListUsers should succeed despite audit failure: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("len = %d, want 1", len(users))
	}
}

func TestListRides_HasMoreFalseOnLastPage(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery("SELECT COUNT.*FROM ride_matches").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT id.*FROM ride_matches").
		WillReturnRows(sqlmock.NewRows(rideCols).
			AddRow("ride-3", "user-1", nil, "completed", "a", "b", 10.0, time.Now(), time.Now()))

	_, total, more, err := svc.ListRides(context.Background(), "admin-1", repositories.RideFilters{}, 2, 2)
	if err != nil {
		t.Fatalf("ListRides: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d", total)
	}
	if more {
		t.Error("has_more = true, want false (2+1 == 3)")
	}
}
