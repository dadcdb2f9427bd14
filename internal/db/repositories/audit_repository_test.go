package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/openride/openride/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var auditCols = []string{
	"id", "timestamp", "action", "user_id", "target_user_id",
	"entity_type", "entity_id", "old_data", "new_data", "metadata", "severity",
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newAuditRepo(t *testing.T) (*AuditLogRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAuditLogRepository(db), mock
}

func sampleAuditRow() *sqlmock.Rows {
	return sqlmock.NewRows(auditCols).
		AddRow("log-1", time.Now(), "admin_user_modified", "admin-1", "user-1",
			"user", "user-1", []byte(`{"name":"old"}`), []byte(`{"name":"new"}`), nil, "medium")
}

// ---------------------------------------------------------------------------
// Insert
// ---------------------------------------------------------------------------

func TestAuditInsert_Success(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.AuditLog{
		Action:       models.ActionAdminUserModified,
		UserID:       strPtr("admin-1"),
		TargetUserID: strPtr("user-1"),
		EntityType:   strPtr("user"),
		EntityID:     strPtr("user-1"),
		OldData:      map[string]interface{}{"name": "old"},
		NewData:      map[string]interface{}{"name": "new"},
		Severity:     models.SeverityMedium,
	}
	if err := repo.Insert(context.Background(), record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.ID == "" {
		t.Error("expected Insert to assign an ID")
	}
	if record.Timestamp.IsZero() {
		t.Error("expected Insert to assign a timestamp")
	}
}

func TestAuditInsert_DBError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnError(errDB)

	record := &models.AuditLog{Action: models.ActionUserLogin, Severity: models.SeverityInfo}
	if err := repo.Insert(context.Background(), record); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestAuditList_NoFilters(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id.*FROM audit_logs.*ORDER BY timestamp DESC").
		WillReturnRows(sampleAuditRow())

	records, total, err := repo.List(context.Background(), AuditFilters{}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
	if len(records) != 1 {
		t.Errorf("len(records) = %d, want 1", len(records))
	}
	if records[0].OldData["name"] != "old" {
		t.Errorf("old_data not unmarshalled: %v", records[0].OldData)
	}
}

func TestAuditList_DefaultAndMaxLimit(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT id.*FROM audit_logs").
		WithArgs(DefaultAuditLimit, 0).
		WillReturnRows(sqlmock.NewRows(auditCols))

	if _, _, err := repo.List(context.Background(), AuditFilters{}, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT id.*FROM audit_logs").
		WithArgs(MaxAuditLimit, 0).
		WillReturnRows(sqlmock.NewRows(auditCols))

	if _, _, err := repo.List(context.Background(), AuditFilters{}, 10000, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuditList_WithFilters(t *testing.T) {
	repo, mock := newAuditRepo(t)
	start := time.Now().Add(-24 * time.Hour)
	end := time.Now()

	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs").
		WithArgs("admin-1", "admin_user_modified", "user", "high", start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT id.*FROM audit_logs").
		WithArgs("admin-1", "admin_user_modified", "user", "high", start, end, 10, 0).
		WillReturnRows(sqlmock.NewRows(auditCols))

	_, total, err := repo.List(context.Background(), AuditFilters{
		UserID:     strPtr("admin-1"),
		Action:     strPtr("admin_user_modified"),
		EntityType: strPtr("user"),
		Severity:   strPtr("high"),
		StartTime:  &start,
		EndTime:    &end,
	}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
}

// Role scoping and search must narrow together, never widen.
func TestAuditList_SearchComposesWithInvolvedUser(t *testing.T) {
	repo, mock := newAuditRepo(t)

	mock.ExpectQuery(`SELECT COUNT.*FROM audit_logs.*ILIKE.*user_id = \$2 OR target_user_id = \$2`).
		WithArgs("%suspend%", "user-7").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT id.*FROM audit_logs.*ILIKE.*user_id = \$2 OR target_user_id = \$2`).
		WithArgs("%suspend%", "user-7", 50, 0).
		WillReturnRows(sqlmock.NewRows(auditCols))

	_, _, err := repo.List(context.Background(), AuditFilters{
		SearchTerm:     "suspend",
		InvolvedUserID: strPtr("user-7"),
	}, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuditList_CountError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs").
		WillReturnError(errDB)

	_, _, err := repo.List(context.Background(), AuditFilters{}, 10, 0)
	if err == nil {
		t.Error("expected error, got nil")
	}
}

func TestAuditList_QueryError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id.*FROM audit_logs").
		WillReturnError(errDB)

	_, _, err := repo.List(context.Background(), AuditFilters{}, 10, 0)
	if err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestAuditGet_Found(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT id.*FROM audit_logs.*WHERE id").
		WillReturnRows(sampleAuditRow())

	record, err := repo.Get(context.Background(), "log-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record == nil {
		t.Fatal("expected record, got nil")
	}
	if record.ID != "log-1" {
		t.Errorf("ID = %q, want %q", record.ID, "log-1")
	}
	if record.NewData["name"] != "new" {
		t.Errorf("new_data not unmarshalled: %v", record.NewData)
	}
}

func TestAuditGet_NotFound(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("SELECT id.*FROM audit_logs.*WHERE id").
		WillReturnRows(sqlmock.NewRows(auditCols))

	record, err := repo.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Errorf("expected nil, got %v", record)
	}
}

// ---------------------------------------------------------------------------
// CountSince
// ---------------------------------------------------------------------------

func TestAuditCountSince(t *testing.T) {
	repo, mock := newAuditRepo(t)
	since := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery("SELECT COUNT.*FROM audit_logs WHERE timestamp >=").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := repo.CountSince(context.Background(), since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
}
