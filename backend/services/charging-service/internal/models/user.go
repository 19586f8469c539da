package models

import "github.com/google/uuid"

// User holds the participant state the lifecycle engine maintains.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PushToken string    `db:"push_token" json:"-"`
	// CurrentProcessID is the activity pointer: the process the user is engaged in.
	CurrentProcessID *uuid.UUID `db:"current_process_id" json:"current_process_id,omitempty"`
	IsAvailable      bool       `db:"is_available" json:"is_available"`
}

// Charger is a charging point offered by its owner.
type Charger struct {
	ID          uuid.UUID `db:"id" json:"id"`
	OwnerID     uuid.UUID `db:"owner_id" json:"owner_id"`
	PricePerKWh int64     `db:"price_per_kwh" json:"price_per_kwh"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	IsDeleted   bool      `db:"is_deleted" json:"is_deleted"`
}

// Usable reports whether requests may target the charger.
func (c *Charger) Usable() bool {
	return c.IsActive && !c.IsDeleted
}
