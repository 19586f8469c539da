package models

import (
	"time"

	"github.com/google/uuid"
)

// FeesConfig is the singleton platform fee configuration.
type FeesConfig struct {
	MinimumFee float64    `db:"minimum_fee" json:"minimum_fee"`
	Percentage float64    `db:"percentage" json:"percentage"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	UpdatedBy  *uuid.UUID `db:"updated_by" json:"updated_by,omitempty"`
}
