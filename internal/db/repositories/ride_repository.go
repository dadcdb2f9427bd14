package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openride/openride/internal/db/models"
)

// RideRepository handles ride match database operations
type RideRepository struct {
	db *sql.DB
}

// NewRideRepository creates a new RideRepository
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{db: db}
}

// RideFilters contains filters for listing rides. All filters compose with AND.
type RideFilters struct {
	RiderID  *string
	DriverID *string
	Status   *string
	Search   string // matches pickup or dropoff address, case-insensitive

	StartTime *time.Time // created_at lower bound, inclusive
	EndTime   *time.Time // created_at upper bound, inclusive

	SortBy    string // whitelisted column; falls back to created_at
	SortOrder string // "asc" or "desc" (default)
}

const rideColumns = `id, rider_id, driver_id, status, pickup_address, dropoff_address, fare, created_at, updated_at`

// Create inserts a new ride match, assigning its ID and timestamps.
func (r *RideRepository) Create(ctx context.Context, ride *models.Ride) error {
	ride.ID = uuid.New().String()
	ride.CreatedAt = time.Now().UTC()
	ride.UpdatedAt = ride.CreatedAt

	query := `
		INSERT INTO ride_matches (id, rider_id, driver_id, status, pickup_address, dropoff_address, fare, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		ride.ID,
		ride.RiderID,
		ride.DriverID,
		ride.Status,
		ride.PickupAddress,
		ride.DropoffAddress,
		ride.Fare,
		ride.CreatedAt,
		ride.UpdatedAt,
	)

	return err
}

// GetByID retrieves a ride by ID. Returns (nil, nil) when absent.
func (r *RideRepository) GetByID(ctx context.Context, rideID string) (*models.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM ride_matches WHERE id = $1`

	ride := &models.Ride{}
	err := r.db.QueryRowContext(ctx, query, rideID).Scan(
		&ride.ID,
		&ride.RiderID,
		&ride.DriverID,
		&ride.Status,
		&ride.PickupAddress,
		&ride.DropoffAddress,
		&ride.Fare,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return ride, nil
}

// Update persists the ride's mutable fields, conditioned on the updated_at
// value the caller observed. Returns the number of rows updated; 0 means the
// row changed underneath the caller.
func (r *RideRepository) Update(ctx context.Context, ride *models.Ride, expectedUpdatedAt time.Time) (int64, error) {
	ride.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE ride_matches
		SET driver_id = $2, status = $3, pickup_address = $4, dropoff_address = $5, fare = $6, updated_at = $7
		WHERE id = $1 AND updated_at = $8
	`

	result, err := r.db.ExecContext(ctx, query,
		ride.ID,
		ride.DriverID,
		ride.Status,
		ride.PickupAddress,
		ride.DropoffAddress,
		ride.Fare,
		ride.UpdatedAt,
		expectedUpdatedAt,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// List retrieves rides matching the filters, newest first, along with the
// total count of matching rows before pagination.
func (r *RideRepository) List(ctx context.Context, filters RideFilters, limit, offset int) ([]*models.Ride, int, error) {
	countQuery := `SELECT COUNT(*) FROM ride_matches WHERE 1=1`
	query := `SELECT ` + rideColumns + ` FROM ride_matches WHERE 1=1`

	args := make([]interface{}, 0)
	paramIndex := 1

	if filters.RiderID != nil {
		clause := fmt.Sprintf(` AND rider_id = $%d`, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, *filters.RiderID)
		paramIndex++
	}

	if filters.DriverID != nil {
		clause := fmt.Sprintf(` AND driver_id = $%d`, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, *filters.DriverID)
		paramIndex++
	}

	if filters.Status != nil {
		clause := fmt.Sprintf(` AND status = $%d`, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, *filters.Status)
		paramIndex++
	}

	if filters.Search != "" {
		clause := fmt.Sprintf(` AND (pickup_address ILIKE $%d OR dropoff_address ILIKE $%d)`, paramIndex, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, "%"+filters.Search+"%")
		paramIndex++
	}

	if filters.StartTime != nil {
		clause := fmt.Sprintf(` AND created_at >= $%d`, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, *filters.StartTime)
		paramIndex++
	}

	if filters.EndTime != nil {
		clause := fmt.Sprintf(` AND created_at <= $%d`, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, *filters.EndTime)
		paramIndex++
	}

	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query += orderByClause(filters.SortBy, filters.SortOrder, rideSortColumns)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	rides := make([]*models.Ride, 0)
	for rows.Next() {
		ride := &models.Ride{}
		err := rows.Scan(
			&ride.ID,
			&ride.RiderID,
			&ride.DriverID,
			&ride.Status,
			&ride.PickupAddress,
			&ride.DropoffAddress,
			&ride.Fare,
			&ride.CreatedAt,
			&ride.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		rides = append(rides, ride)
	}

	return rides, total, rows.Err()
}
