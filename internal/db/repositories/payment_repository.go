package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openride/openride/internal/db/models"
)

// PaymentRepository handles payment transaction database operations
type PaymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// PaymentFilters contains filters for listing payments. All filters compose with AND.
type PaymentFilters struct {
	RideID *string
	UserID *string
	Status *string

	StartTime *time.Time // created_at lower bound, inclusive
	EndTime   *time.Time // created_at upper bound, inclusive

	SortBy    string // whitelisted column; falls back to created_at
	SortOrder string // "asc" or "desc" (default)
}

const paymentColumns = `id, ride_id, user_id, amount, currency, status, method, created_at, updated_at`

// Create inserts a new payment transaction, assigning its ID and timestamps.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	payment.ID = uuid.New().String()
	payment.CreatedAt = time.Now().UTC()
	payment.UpdatedAt = payment.CreatedAt

	query := `
		INSERT INTO payment_transactions (id, ride_id, user_id, amount, currency, status, method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.RideID,
		payment.UserID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.Method,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	return err
}

// GetByID retrieves a payment by ID. Returns (nil, nil) when absent.
func (r *PaymentRepository) GetByID(ctx context.Context, paymentID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE id = $1`

	payment := &models.Payment{}
	err := r.db.QueryRowContext(ctx, query, paymentID).Scan(
		&payment.ID,
		&payment.RideID,
		&payment.UserID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.Method,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return payment, nil
}

// Update persists the payment's mutable fields, conditioned on the updated_at
// value the caller observed. Returns the number of rows updated; 0 means the
// row changed underneath the caller.
func (r *PaymentRepository) Update(ctx context.Context, payment *models.Payment, expectedUpdatedAt time.Time) (int64, error) {
	payment.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE payment_transactions
		SET amount = $2, currency = $3, status = $4, method = $5, updated_at = $6
		WHERE id = $1 AND updated_at = $7
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.Method,
		payment.UpdatedAt,
		expectedUpdatedAt,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// List retrieves payments matching the filters, newest first, along with the
// total count of matching rows before pagination.
func (r *PaymentRepository) List(ctx context.Context, filters PaymentFilters, limit, offset int) ([]*models.Payment, int, error) {
	countQuery := `SELECT COUNT(*) FROM payment_transactions WHERE 1=1`
	query := `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE 1=1`

	args := make([]interface{}, 0)
	paramIndex := 1

	if filters.RideID != nil {
		clause := fmt.Sprintf(` AND ride_id = $%d`, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, *filters.RideID)
		paramIndex++
	}

	if filters.UserID != nil {
		clause := fmt.Sprintf(` AND user_id = $%d`, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, *filters.UserID)
		paramIndex++
	}

	if filters.Status != nil {
		clause := fmt.Sprintf(` AND status = $%d`, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, *filters.Status)
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

	query += orderByClause(filters.SortBy, filters.SortOrder, paymentSortColumns)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	payments := make([]*models.Payment, 0)
	for rows.Next() {
		payment := &models.Payment{}
		err := rows.Scan(
			&payment.ID,
			&payment.RideID,
			&payment.UserID,
			&payment.Amount,
			&payment.Currency,
			&payment.Status,
			&payment.Method,
			&payment.CreatedAt,
			&payment.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, payment)
	}

	return payments, total, rows.Err()
}
