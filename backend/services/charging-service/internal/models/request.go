package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is part of the wire contract with client apps.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestConfirmed RequestStatus = "confirmed"
	RequestAborted   RequestStatus = "aborted"
)

// ChargingRequest is one negotiation between a vehicle owner and a charger.
type ChargingRequest struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	VehicleOwnerID uuid.UUID     `db:"vehicle_owner_id" json:"vehicle_owner_id"`
	ChargerID      uuid.UUID     `db:"charger_id" json:"charger_id"`
	ChargerOwnerID uuid.UUID     `db:"charger_owner_id" json:"charger_owner_id"`
	KWNeeded       float64       `db:"kw_needed" json:"kw_needed"`
	BatteryPct     float64       `db:"battery_pct" json:"battery_pct"`
	Latitude       float64       `db:"latitude" json:"latitude"`
	Longitude      float64       `db:"longitude" json:"longitude"`
	Status         RequestStatus `db:"status" json:"status"`
	BaseAmount     int64         `db:"base_amount" json:"base_amount"`
	PlatformFee    int64         `db:"platform_fee" json:"platform_fee"`
	EstimatedPrice int64         `db:"estimated_price" json:"estimated_price"`
	RequestedAt    time.Time     `db:"requested_at" json:"requested_at"`
	RespondedAt    *time.Time    `db:"responded_at" json:"responded_at,omitempty"`
	ConfirmedAt    *time.Time    `db:"confirmed_at" json:"confirmed_at,omitempty"`
}

// IsParticipant reports whether userID is one of the two sides of the request.
func (r *ChargingRequest) IsParticipant(userID uuid.UUID) bool {
	return userID == r.VehicleOwnerID || userID == r.ChargerOwnerID
}

// Counterpart returns the other participant.
func (r *ChargingRequest) Counterpart(userID uuid.UUID) uuid.UUID {
	if userID == r.VehicleOwnerID {
		return r.ChargerOwnerID
	}
	return r.VehicleOwnerID
}
