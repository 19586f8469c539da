package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessStatus is part of the wire contract with client apps.
type ProcessStatus string

const (
	ProcessPending    ProcessStatus = "pending"
	ProcessInProgress ProcessStatus = "in_progress"
	ProcessCompleted  ProcessStatus = "completed"
	ProcessAborted    ProcessStatus = "aborted"
	ProcessRejected   ProcessStatus = "rejected"
)

// IsTerminal reports whether no further transitions are allowed.
func (s ProcessStatus) IsTerminal() bool {
	switch s {
	case ProcessCompleted, ProcessAborted, ProcessRejected:
		return true
	}
	return false
}

// RequestStatusFor maps a terminal process status to the status its request ends in.
// A completed session leaves the request confirmed.
func (s ProcessStatus) RequestStatusFor() RequestStatus {
	switch s {
	case ProcessAborted:
		return RequestAborted
	case ProcessRejected:
		return RequestRejected
	default:
		return RequestConfirmed
	}
}

// PaymentStatus tracks gateway reconciliation for a process.
type PaymentStatus string

const (
	PaymentNone      PaymentStatus = ""
	PaymentInitiated PaymentStatus = "initiated"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentVoided    PaymentStatus = "voided"
)

// CanMoveTo reports whether a gateway update may replace s with next. Open payments may change
// freely and a paid payment may only be reversed. Refunded and voided are final.
func (s PaymentStatus) CanMoveTo(next PaymentStatus) bool {
	if next == s || next == PaymentNone {
		return false
	}
	switch s {
	case PaymentNone, PaymentInitiated, PaymentFailed:
		return true
	case PaymentPaid:
		return next == PaymentRefunded || next == PaymentVoided
	}
	return false
}

// Process is the payment/session record derived from an accepted request.
type Process struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	RequestID      uuid.UUID     `db:"request_id" json:"request_id"`
	VehicleOwnerID uuid.UUID     `db:"vehicle_owner_id" json:"vehicle_owner_id"`
	ChargerOwnerID uuid.UUID     `db:"charger_owner_id" json:"charger_owner_id"`
	ChargerID      uuid.UUID     `db:"charger_id" json:"charger_id"`
	Status         ProcessStatus `db:"status" json:"status"`
	DateCreated    time.Time     `db:"date_created" json:"date_created"`
	DateCompleted  *time.Time    `db:"date_completed" json:"date_completed,omitempty"`
	Reason         string        `db:"reason" json:"reason,omitempty"`

	BaseAmount     int64 `db:"base_amount" json:"base_amount"`
	PlatformFee    int64 `db:"platform_fee" json:"platform_fee"`
	EstimatedPrice int64 `db:"estimated_price" json:"estimated_price"`
	AmountPaid     int64 `db:"amount_paid" json:"amount_paid"`
	AmountCharged  int64 `db:"amount_charged" json:"amount_charged"`

	PaymentMethod  string        `db:"payment_method" json:"payment_method,omitempty"`
	PaymentStatus  PaymentStatus `db:"payment_status" json:"payment_status,omitempty"`
	GatewayOrderID string        `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	PaymentKey     string        `db:"payment_key" json:"payment_key,omitempty"`
	RedirectURL    string        `db:"redirect_url" json:"redirect_url,omitempty"`
	TransactionID  string        `db:"transaction_id" json:"transaction_id,omitempty"`

	VehicleOwnerConfirmedAt *time.Time `db:"vehicle_owner_confirmed_at" json:"vehicle_owner_confirmed_at,omitempty"`
	OwnerApprovedAt         *time.Time `db:"owner_approved_at" json:"owner_approved_at,omitempty"`

	// Rating given by the vehicle owner to the charger owner, and the reverse.
	VehicleOwnerRating  *int   `db:"vehicle_owner_rating" json:"vehicle_owner_rating,omitempty"`
	VehicleOwnerComment string `db:"vehicle_owner_comment" json:"vehicle_owner_comment,omitempty"`
	ChargerOwnerRating  *int   `db:"charger_owner_rating" json:"charger_owner_rating,omitempty"`
	ChargerOwnerComment string `db:"charger_owner_comment" json:"charger_owner_comment,omitempty"`
}

// IsParticipant reports whether userID is one of the two sides of the process.
func (p *Process) IsParticipant(userID uuid.UUID) bool {
	return userID == p.VehicleOwnerID || userID == p.ChargerOwnerID
}

// HasPaymentReference reports whether gateway initiation already succeeded.
func (p *Process) HasPaymentReference() bool {
	return p.GatewayOrderID != "" && p.PaymentKey != ""
}
