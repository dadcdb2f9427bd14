// Package models - user.go defines the User model for rider, driver, and admin
// accounts, including suspension state managed by the admin CRUD layer.
package models

import "time"

// User roles. Role is carried as a plain string in the JWT and drives the
// audit query scoping branch: admins see every record, everyone else sees
// only records where they are actor or target.
const (
	RoleRider  = "rider"
	RoleDriver = "driver"
	RoleAdmin  = "admin"
)

// User account statuses.
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

// User represents a rider, driver, or admin account.
type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	Phone               string     `json:"phone"`
	PasswordHash        string     `json:"-"` // bcrypt hash, never serialized
	Role                string     `json:"role"`
	Status              string     `json:"status"`
	IsVerified          bool       `json:"is_verified"`
	Rating              float64    `json:"rating"`
	SuspensionReason    *string    `json:"suspension_reason,omitempty"`
	SuspensionExpiresAt *time.Time `json:"suspension_expires_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// IsSuspended reports whether the account is currently suspended, honouring
// a suspension expiry timestamp when one was set.
func (u *User) IsSuspended() bool {
	if u.Status != UserStatusSuspended {
		return false
	}
	if u.SuspensionExpiresAt != nil && time.Now().After(*u.SuspensionExpiresAt) {
		return false
	}
	return true
}
