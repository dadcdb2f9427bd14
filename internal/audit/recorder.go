package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openride/openride/internal/db/models"
	"github.com/openride/openride/internal/telemetry"
)

// Store persists audit records. Implemented by repositories.AuditLogRepository.
type Store interface {
	Insert(ctx context.Context, record *models.AuditLog) error
}

// Recorder is the single entry point for writing audit records. It applies
// payload sanitization and the default severity, persists the record through
// the store, and then forwards a copy to the configured shippers.
//
// The database write is authoritative: if it fails, LogAction returns the
// error and nothing is shipped. Callers performing admin mutations treat that
// error as fatal for the whole operation, so no state change can exist
// without its audit record. Shipping failures are logged and swallowed.
type Recorder struct {
	store   Store
	shipper Shipper
}

// NewRecorder creates a Recorder. shipper may be nil when no secondary
// destinations are configured.
func NewRecorder(store Store, shipper Shipper) *Recorder {
	return &Recorder{
		store:   store,
		shipper: shipper,
	}
}

// LogAction records an audit event and returns the ID of the stored record.
// Before the write, OldData, NewData and Metadata are sanitized and an empty
// severity is defaulted to "info". The caller's record is not modified.
func (r *Recorder) LogAction(ctx context.Context, record *models.AuditLog) (string, error) {
	if record == nil {
		return "", fmt.Errorf("audit record is nil")
	}
	if record.Action == "" {
		return "", fmt.Errorf("audit record action is required")
	}

	stored := *record
	stored.OldData = Sanitize(record.OldData)
	stored.NewData = Sanitize(record.NewData)
	stored.Metadata = Sanitize(record.Metadata)

	if stored.Severity == "" {
		stored.Severity = models.SeverityInfo
	}
	if !models.ValidSeverities[stored.Severity] {
		return "", fmt.Errorf("invalid audit severity: %s", stored.Severity)
	}

	if err := r.store.Insert(ctx, &stored); err != nil {
		telemetry.AuditWriteFailuresTotal.Inc()
		return "", fmt.Errorf("failed to store audit record: %w", err)
	}

	telemetry.AuditRecordsTotal.WithLabelValues(stored.Action, stored.Severity).Inc()

	if r.shipper != nil {
		if err := r.shipper.Ship(ctx, &stored); err != nil {
			slog.Warn("failed to ship audit record",
				"audit_id", stored.ID,
				"action", stored.Action,
				"error", err)
		}
	}

	return stored.ID, nil
}
