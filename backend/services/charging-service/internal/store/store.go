// Package store defines the unit-of-work contract the lifecycle engine persists through.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"chargeshare/backend/services/charging-service/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrStale is returned when a conditional write observed a different status than expected.
	ErrStale = errors.New("store: stale write")
	// ErrDuplicate is returned when a uniqueness constraint is violated.
	ErrDuplicate = errors.New("store: duplicate")
	// ErrReferenced is returned when deleting a row other rows still point at.
	ErrReferenced = errors.New("store: row still referenced")
)

// RequestRepository persists charging requests.
type RequestRepository interface {
	Create(ctx context.Context, req *models.ChargingRequest) error
	Get(ctx context.Context, id uuid.UUID) (*models.ChargingRequest, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID, limit int) ([]models.ChargingRequest, error)
	// HasActive reports whether the vehicle owner holds a non-terminal request against the charger.
	// Pending requests older than pendingSince are considered expired.
	HasActive(ctx context.Context, vehicleOwnerID, chargerID uuid.UUID, pendingSince time.Time) (bool, error)
	// Transition moves the request from one status to another, failing with ErrStale when the
	// stored status is not from.
	Transition(ctx context.Context, id uuid.UUID, from, to models.RequestStatus, at time.Time) error
	// ListSweepable returns ids of requests involving any of userIDs that are pending since before
	// staleBefore or rejected, excluding ids in skip and requests that own a process.
	ListSweepable(ctx context.Context, userIDs []uuid.UUID, staleBefore time.Time, skip []uuid.UUID) ([]uuid.UUID, error)
	DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// ProcessRepository persists processes.
type ProcessRepository interface {
	Create(ctx context.Context, p *models.Process) error
	Get(ctx context.Context, id uuid.UUID) (*models.Process, error)
	GetByRequest(ctx context.Context, requestID uuid.UUID) (*models.Process, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Process, error)
	// Transition behaves like RequestRepository.Transition.
	Transition(ctx context.Context, id uuid.UUID, from, to models.ProcessStatus) error
	// Save writes every field except status.
	Save(ctx context.Context, p *models.Process) error
}

// UserRepository persists participant activity state.
type UserRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	// SetActivity points the user at processID and marks them unavailable.
	SetActivity(ctx context.Context, userID, processID uuid.UUID) error
	// ClearActivity drops the pointer when it references processID and marks the user available
	// when no activity remains. It reports whether the pointer was cleared.
	ClearActivity(ctx context.Context, userID, processID uuid.UUID) (bool, error)
}

// ChargerRepository reads chargers.
type ChargerRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Charger, error)
}

// NotificationRepository persists notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error)
	DeleteByRequestIDs(ctx context.Context, requestIDs []uuid.UUID) (int64, error)
}

// FeesRepository persists the fees configuration singleton.
type FeesRepository interface {
	Get(ctx context.Context) (*models.FeesConfig, error)
	Upsert(ctx context.Context, cfg *models.FeesConfig) error
}

// Tx exposes repositories bound to one unit of work.
type Tx interface {
	Requests() RequestRepository
	Processes() ProcessRepository
	Users() UserRepository
	Chargers() ChargerRepository
	Notifications() NotificationRepository
	Fees() FeesRepository
}

// UnitOfWork runs fn atomically: every write made through tx lands on commit or none does.
// Registered hooks run once, after fn succeeds and before commit.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	RegisterHook(hook Hook)
}
