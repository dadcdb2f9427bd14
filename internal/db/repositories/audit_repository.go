// audit_repository.go implements AuditLogRepository: the append-only store for audit
// records plus the filtered query path used by the admin audit trail endpoints.
// There is intentionally no update or delete method on this repository.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openride/openride/internal/db/models"
)

// Pagination bounds for audit queries. Requests asking for more than
// MaxAuditLimit rows are clamped, not rejected.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)

// AuditLogRepository handles audit log database operations
type AuditLogRepository struct {
	db *sql.DB
}

// NewAuditLogRepository creates a new AuditLogRepository
func NewAuditLogRepository(db *sql.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// AuditFilters contains filters for querying audit logs. All filters compose
// with AND: adding a filter can only narrow the result set.
//
// InvolvedUserID restricts results to records where the given user is either
// the actor or the target; it is how non-privileged callers are scoped to
// their own history while admins query the full trail.
type AuditFilters struct {
	UserID         *string
	TargetUserID   *string
	Action         *string
	EntityType     *string
	EntityID       *string
	Severity       *string
	StartTime      *time.Time
	EndTime        *time.Time
	SearchTerm     string
	InvolvedUserID *string
}

// Insert writes a new audit record, assigning its ID and timestamp.
func (r *AuditLogRepository) Insert(ctx context.Context, record *models.AuditLog) error {
	record.ID = uuid.New().String()
	record.Timestamp = time.Now().UTC()

	oldJSON, err := marshalJSONB(record.OldData)
	if err != nil {
		return err
	}
	newJSON, err := marshalJSONB(record.NewData)
	if err != nil {
		return err
	}
	metaJSON, err := marshalJSONB(record.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_logs (id, timestamp, action, user_id, target_user_id, entity_type, entity_id, old_data, new_data, metadata, severity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.Timestamp,
		record.Action,
		record.UserID,
		record.TargetUserID,
		record.EntityType,
		record.EntityID,
		oldJSON,
		newJSON,
		metaJSON,
		record.Severity,
	)

	return err
}

// List retrieves audit records matching the filters, newest first, along with
// the total count of matching records before pagination. limit <= 0 falls
// back to DefaultAuditLimit; limit > MaxAuditLimit is clamped; offset < 0 is
// treated as 0.
func (r *AuditLogRepository) List(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}
	if offset < 0 {
		offset = 0
	}

	countQuery := `SELECT COUNT(*) FROM audit_logs WHERE 1=1`
	query := `
		SELECT id, timestamp, action, user_id, target_user_id, entity_type, entity_id, old_data, new_data, metadata, severity
		FROM audit_logs
		WHERE 1=1
	`

	args := make([]interface{}, 0)
	paramIndex := 1

	addClause := func(clause string, value interface{}) {
		countQuery += clause
		query += clause
		args = append(args, value)
		paramIndex++
	}

	if filters.UserID != nil {
		addClause(fmt.Sprintf(` AND user_id = $%d`, paramIndex), *filters.UserID)
	}

	if filters.TargetUserID != nil {
		addClause(fmt.Sprintf(` AND target_user_id = $%d`, paramIndex), *filters.TargetUserID)
	}

	if filters.Action != nil {
		addClause(fmt.Sprintf(` AND action = $%d`, paramIndex), *filters.Action)
	}

	if filters.EntityType != nil {
		addClause(fmt.Sprintf(` AND entity_type = $%d`, paramIndex), *filters.EntityType)
	}

	if filters.EntityID != nil {
		addClause(fmt.Sprintf(` AND entity_id = $%d`, paramIndex), *filters.EntityID)
	}

	if filters.Severity != nil {
		addClause(fmt.Sprintf(` AND severity = $%d`, paramIndex), *filters.Severity)
	}

	if filters.StartTime != nil {
		addClause(fmt.Sprintf(` AND timestamp >= $%d`, paramIndex), *filters.StartTime)
	}

	if filters.EndTime != nil {
		addClause(fmt.Sprintf(` AND timestamp <= $%d`, paramIndex), *filters.EndTime)
	}

	if filters.SearchTerm != "" {
		clause := fmt.Sprintf(` AND (action ILIKE $%d OR entity_type ILIKE $%d OR entity_id ILIKE $%d OR metadata->>'description' ILIKE $%d)`,
			paramIndex, paramIndex, paramIndex, paramIndex)
		addClause(clause, "%"+filters.SearchTerm+"%")
	}

	// Role scoping composes with the other filters via AND, so a search
	// term can never widen a restricted caller's view.
	if filters.InvolvedUserID != nil {
		clause := fmt.Sprintf(` AND (user_id = $%d OR target_user_id = $%d)`, paramIndex, paramIndex)
		addClause(clause, *filters.InvolvedUserID)
	}

	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := make([]*models.AuditLog, 0)
	for rows.Next() {
		record, err := scanAuditLog(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}

	return records, total, rows.Err()
}

// Get retrieves a single audit record by ID. Returns (nil, nil) when absent.
func (r *AuditLogRepository) Get(ctx context.Context, id string) (*models.AuditLog, error) {
	query := `
		SELECT id, timestamp, action, user_id, target_user_id, entity_type, entity_id, old_data, new_data, metadata, severity
		FROM audit_logs
		WHERE id = $1
	`

	record, err := scanAuditLog(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}

// CountSince returns the number of audit records with a timestamp at or after t.
func (r *AuditLogRepository) CountSince(ctx context.Context, t time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE timestamp >= $1`, t).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuditLog(row rowScanner) (*models.AuditLog, error) {
	record := &models.AuditLog{}
	var oldJSON, newJSON, metaJSON []byte

	err := row.Scan(
		&record.ID,
		&record.Timestamp,
		&record.Action,
		&record.UserID,
		&record.TargetUserID,
		&record.EntityType,
		&record.EntityID,
		&oldJSON,
		&newJSON,
		&metaJSON,
		&record.Severity,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(oldJSON, &record.OldData); err != nil {
		return nil, err
	}
	if err := unmarshalJSONB(newJSON, &record.NewData); err != nil {
		return nil, err
	}
	if err := unmarshalJSONB(metaJSON, &record.Metadata); err != nil {
		return nil, err
	}

	return record, nil
}

func marshalJSONB(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalJSONB(data []byte, dest *map[string]interface{}) error {
	if data == nil {
		return nil
	}
	return json.Unmarshal(data, dest)
}
