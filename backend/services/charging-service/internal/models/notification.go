package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types delivered to client apps.
const (
	EventRequestReceived   = "ChargingRequest_Received"
	EventRequestAccepted   = "ChargingRequest_Accepted"
	EventRequestRejected   = "ChargingRequest_Rejected"
	EventRequestConfirmed  = "ChargingRequest_Confirmed"
	EventPaymentUpdated    = "Payment_Updated"
	EventProcessTerminated = "Process_Terminated"
	EventProcessRated      = "Process_Rated"
	EventOwnerDecision     = "Process_OwnerDecision"
)

// Notification is a persisted record of an event sent to a user.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	RequestID *uuid.UUID      `db:"request_id" json:"request_id,omitempty"`
	EventType string          `db:"event_type" json:"event_type"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
