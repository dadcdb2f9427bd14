package models

import "time"

// Ride lifecycle statuses.
const (
	RideStatusRequested = "requested"
	RideStatusAccepted  = "accepted"
	RideStatusStarted   = "started"
	RideStatusCompleted = "completed"
	RideStatusCancelled = "cancelled"
)

// Ride represents one ride match between a rider and (once accepted) a driver.
// Stored in the ride_matches table.
type Ride struct {
	ID             string    `json:"id"`
	RiderID        string    `json:"rider_id"`
	DriverID       *string   `json:"driver_id,omitempty"` // nil until a driver accepts
	Status         string    `json:"status"`
	PickupAddress  string    `json:"pickup_address"`
	DropoffAddress string    `json:"dropoff_address"`
	Fare           float64   `json:"fare"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
