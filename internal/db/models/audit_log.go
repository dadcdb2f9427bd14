// Package models - audit_log.go defines the AuditLog model: an immutable record of one
// state-changing or sensitive-read event, capturing actor, target, affected entity,
// before/after snapshots, and arbitrary metadata.
package models

import "time"

// Audit severity levels. Severity is a triage tag for dashboards, not an
// access-control mechanism.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
	SeverityInfo     = "info"
)

// ValidSeverities enumerates the accepted severity values.
var ValidSeverities = map[string]bool{
	SeverityLow:      true,
	SeverityMedium:   true,
	SeverityHigh:     true,
	SeverityCritical: true,
	SeverityInfo:     true,
}

// Audit action tags written by this service. Handlers may also log free-form
// actions (e.g. "PUT /api/v1/admin/users/:id") via the request audit middleware.
const (
	ActionUserCreated       = "user_created"
	ActionUserLogin         = "user_login"
	ActionRideRequested     = "ride_requested"
	ActionRideAccepted      = "ride_accepted"
	ActionAdminUserModified = "admin_user_modified"
	ActionAdminUserSuspend  = "admin_user_suspended"
	ActionUserReinstated    = "user_suspension_lifted"
	ActionAdminRideModified = "admin_ride_modified"
	ActionAdminPayModified  = "admin_payment_modified"
	ActionAdminUsersListed  = "admin_users_listed"
	ActionAdminRidesListed  = "admin_rides_listed"
	ActionAdminPaysListed   = "admin_payments_listed"
)

// AuditLog represents one append-only audit record. Once written it is never
// mutated or deleted; there is deliberately no update or delete path anywhere
// in the repository layer.
type AuditLog struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	Action       string                 `json:"action"`
	UserID       *string                `json:"user_id,omitempty"`        // actor; nullable for system events
	TargetUserID *string                `json:"target_user_id,omitempty"` // affected party
	EntityType   *string                `json:"entity_type,omitempty"`    // "user", "ride", "payment"
	EntityID     *string                `json:"entity_id,omitempty"`
	OldData      map[string]interface{} `json:"old_data,omitempty"` // JSONB: sanitized pre-change snapshot
	NewData      map[string]interface{} `json:"new_data,omitempty"` // JSONB: sanitized post-change snapshot
	Metadata     map[string]interface{} `json:"metadata,omitempty"` // JSONB: free-form context
	Severity     string                 `json:"severity"`
}

// AuditActionCount is the per-action slice of the statistics aggregation.
type AuditActionCount struct {
	Action string    `json:"action" db:"action"`
	Count  int64     `json:"count" db:"count"`
	Latest time.Time `json:"latest" db:"latest"`
}

// AuditSeverityCount is the per-severity slice of the statistics aggregation.
type AuditSeverityCount struct {
	Severity string `json:"severity" db:"severity"`
	Count    int64  `json:"count" db:"count"`
}

// AuditStats is the dashboard-ready summary computed live on every call —
// no caching, each call rescans the collection (accepted O(n) cost).
type AuditStats struct {
	TotalAuditLogs       int64                `json:"total_audit_logs"`
	RecentActivity24h    int64                `json:"recent_activity_24h"`
	ActionDistribution   []AuditActionCount   `json:"action_distribution"`
	SeverityDistribution []AuditSeverityCount `json:"severity_distribution"`
}
