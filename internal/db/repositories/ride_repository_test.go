package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/openride/openride/internal/db/models"
)

var rideCols = []string{
	"id", "rider_id", "driver_id", "status", "pickup_address",
	"dropoff_address", "fare", "created_at", "updated_at",
}

func newRideRepo(t *testing.T) (*RideRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRideRepository(db), mock
}

func sampleRideRow() *sqlmock.Rows {
	return sqlmock.NewRows(rideCols).
		AddRow("ride-1", "user-1", "driver-1", "completed",
			"1 Main St", "99 Elm St", 23.50, time.Now(), time.Now())
}

func TestRideCreate_Success(t *testing.T) {
	repo, mock := newRideRepo(t)
	mock.ExpectExec("INSERT INTO ride_matches").
		WillReturnResult(sqlmock.NewResult(1, 1))

	ride := &models.Ride{
		RiderID: "user-1",
		Status:  models.RideStatusRequested,
	}
	if err := repo.Create(context.Background(), ride); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ride.ID == "" {
		t.Error("expected Create to assign an ID")
	}
}

func TestRideGetByID_Found(t *testing.T) {
	repo, mock := newRideRepo(t)
	mock.ExpectQuery("SELECT id.*FROM ride_matches.*WHERE id").
		WillReturnRows(sampleRideRow())

	ride, err := repo.GetByID(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ride == nil {
		t.Fatal("expected ride, got nil")
	}
	if ride.Fare != 23.50 {
		t.Errorf("Fare = %v, want 23.50", ride.Fare)
	}
}

func TestRideGetByID_NotFound(t *testing.T) {
	repo, mock := newRideRepo(t)
	mock.ExpectQuery("SELECT id.*FROM ride_matches.*WHERE id").
		WillReturnRows(sqlmock.NewRows(rideCols))

	ride, err := repo.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ride != nil {
		t.Errorf("expected nil, got %v", ride)
	}
}

func TestRideUpdate_ConcurrentModification(t *testing.T) {
	repo, mock := newRideRepo(t)
	mock.ExpectExec("UPDATE ride_matches").
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows, err := repo.Update(context.Background(), &models.Ride{ID: "ride-1"}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 0 {
		t.Errorf("rows = %d, want 0 for stale updated_at", rows)
	}
}

func TestRideList_WithFilters(t *testing.T) {
	repo, mock := newRideRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM ride_matches").
		WithArgs("user-1", "completed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id.*FROM ride_matches.*ORDER BY created_at DESC").
		WithArgs("user-1", "completed", 10, 0).
		WillReturnRows(sampleRideRow())

	rides, total, err := repo.List(context.Background(), RideFilters{
		RiderID: strPtr("user-1"),
		Status:  strPtr("completed"),
	}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(rides) != 1 {
		t.Errorf("total = %d, len = %d, want 1/1", total, len(rides))
	}
}

func TestRideList_SearchMatchesAddresses(t *testing.T) {
	repo, mock := newRideRepo(t)
	mock.ExpectQuery(`SELECT COUNT.*FROM ride_matches.*pickup_address ILIKE \$1 OR dropoff_address ILIKE \$1`).
		WithArgs("%elm%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT id.*FROM ride_matches.*pickup_address ILIKE \$1 OR dropoff_address ILIKE \$1`).
		WithArgs("%elm%", 10, 0).
		WillReturnRows(sampleRideRow())

	rides, total, err := repo.List(context.Background(), RideFilters{
		Search: "elm",
	}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(rides) != 1 {
		t.Errorf("total = %d, len = %d, want 1/1", total, len(rides))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestRideList_CreatedAtRange(t *testing.T) {
	repo, mock := newRideRepo(t)
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT.*FROM ride_matches.*created_at >= \$1 AND created_at <= \$2`).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT id.*FROM ride_matches.*created_at >= \$1 AND created_at <= \$2`).
		WithArgs(start, end, 10, 0).
		WillReturnRows(sqlmock.NewRows(rideCols))

	_, _, err := repo.List(context.Background(), RideFilters{
		StartTime: &start,
		EndTime:   &end,
	}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestRideList_QueryError(t *testing.T) {
	repo, mock := newRideRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM ride_matches").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id.*FROM ride_matches").
		WillReturnError(errDB)

	_, _, err := repo.List(context.Background(), RideFilters{}, 10, 0)
	if err == nil {
		t.Error("expected error, got nil")
	}
}
