// Package repositories implements the data access layer (repository pattern) for the
// OpenRide backend. Each repository type encapsulates all database queries for a domain
// entity. Handlers never issue SQL directly — all database access goes through this
// layer, which makes query logic testable in isolation and prevents accidental
// cross-domain data access.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openride/openride/internal/db/models"
)

// UserRepository handles user database operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UserFilters contains filters for listing users. All filters compose with AND.
type UserFilters struct {
	Role   *string
	Status *string
	Search string // matches email or name, case-insensitive

	StartTime *time.Time // created_at lower bound, inclusive
	EndTime   *time.Time // created_at upper bound, inclusive

	SortBy    string // whitelisted column; falls back to created_at
	SortOrder string // "asc" or "desc" (default)
}

const userColumns = `id, email, name, phone, password_hash, role, status, is_verified, rating, suspension_reason, suspension_expires_at, created_at, updated_at`

// Create inserts a new user, assigning its ID and timestamps.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt

	query := `
		INSERT INTO users (id, email, name, phone, password_hash, role, status, is_verified, rating, suspension_reason, suspension_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Phone,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.IsVerified,
		user.Rating,
		user.SuspensionReason,
		user.SuspensionExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
	)

	return err
}

// GetByID retrieves a user by ID. Returns (nil, nil) when absent.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, userID))
}

// GetByEmail retrieves a user by email. Returns (nil, nil) when absent.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// Update persists the user's mutable fields, but only if the row has not
// changed since it was read: the UPDATE is conditioned on the updated_at
// value the caller observed. Returns the number of rows updated so the
// caller can detect a concurrent modification (0 rows) and retry or fail.
func (r *UserRepository) Update(ctx context.Context, user *models.User, expectedUpdatedAt time.Time) (int64, error) {
	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET email = $2, name = $3, phone = $4, role = $5, status = $6, is_verified = $7, rating = $8,
		    suspension_reason = $9, suspension_expires_at = $10, updated_at = $11
		WHERE id = $1 AND updated_at = $12
	`

	result, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Phone,
		user.Role,
		user.Status,
		user.IsVerified,
		user.Rating,
		user.SuspensionReason,
		user.SuspensionExpiresAt,
		user.UpdatedAt,
		expectedUpdatedAt,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// ListExpiredSuspensions returns suspended users whose suspension expiry has
// passed. Users suspended indefinitely (NULL expiry) are never returned.
func (r *UserRepository) ListExpiredSuspensions(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE status = $1 AND suspension_expires_at IS NOT NULL AND suspension_expires_at <= $2`

	rows, err := r.db.QueryContext(ctx, query, models.UserStatusSuspended, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// List retrieves users matching the filters, newest first, along with the
// total count of matching rows before pagination.
func (r *UserRepository) List(ctx context.Context, filters UserFilters, limit, offset int) ([]*models.User, int, error) {
	countQuery := `SELECT COUNT(*) FROM users WHERE 1=1`
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`

	args := make([]interface{}, 0)
	paramIndex := 1

	if filters.Role != nil {
		clause := fmt.Sprintf(` AND role = $%d`, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, *filters.Role)
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
		clause := fmt.Sprintf(` AND (email ILIKE $%d OR name ILIKE $%d)`, paramIndex, paramIndex)
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

	query += orderByClause(filters.SortBy, filters.SortOrder, userSortColumns)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.Name,
			&user.Phone,
			&user.PasswordHash,
			&user.Role,
			&user.Status,
			&user.IsVerified,
			&user.Rating,
			&user.SuspensionReason,
			&user.SuspensionExpiresAt,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}

	return users, total, rows.Err()
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Phone,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.IsVerified,
		&user.Rating,
		&user.SuspensionReason,
		&user.SuspensionExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return user, nil
}
