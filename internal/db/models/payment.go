package models

import "time"

// Payment transaction statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Payment represents one payment transaction for a completed ride.
// Stored in the payment_transactions table.
type Payment struct {
	ID        string    `json:"id"`
	RideID    string    `json:"ride_id"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Method    string    `json:"method"` // "card", "cash", "wallet"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
