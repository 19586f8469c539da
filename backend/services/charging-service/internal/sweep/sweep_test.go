package sweep_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chargeshare/backend/services/charging-service/internal/models"
	"chargeshare/backend/services/charging-service/internal/store"
	"chargeshare/backend/services/charging-service/internal/store/memstore"
	"chargeshare/backend/services/charging-service/internal/sweep"
)

type fixture struct {
	st           *memstore.Store
	now          time.Time
	vehicleOwner uuid.UUID
	chargerOwner uuid.UUID
	chargerID    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		st:           memstore.New(),
		now:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		vehicleOwner: uuid.New(),
		chargerOwner: uuid.New(),
		chargerID:    uuid.New(),
	}
	sweep.New(sweep.DefaultPendingTTL, func() time.Time { return f.now }, nil).Register(f.st)
	return f
}

func (f *fixture) seedRequest(status models.RequestStatus, age time.Duration) uuid.UUID {
	id := uuid.New()
	f.st.PutRequest(models.ChargingRequest{
		ID:             id,
		VehicleOwnerID: f.vehicleOwner,
		ChargerOwnerID: f.chargerOwner,
		ChargerID:      f.chargerID,
		Status:         status,
		RequestedAt:    f.now.Add(-age),
	})
	reqID := id
	f.st.PutNotification(models.Notification{
		ID:        uuid.New(),
		UserID:    f.chargerOwner,
		RequestID: &reqID,
		EventType: models.EventRequestReceived,
		CreatedAt: f.now.Add(-age),
	})
	return id
}

// trigger commits a fresh request for the vehicle owner, which fires the sweep.
func (f *fixture) trigger(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := f.st.Do(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Requests().Create(ctx, &models.ChargingRequest{
			ID:             id,
			VehicleOwnerID: f.vehicleOwner,
			ChargerOwnerID: f.chargerOwner,
			ChargerID:      uuid.New(),
			Status:         models.RequestPending,
			RequestedAt:    f.now,
		})
	})
	require.NoError(t, err)
	return id
}

func notificationsFor(st *memstore.Store, requestID uuid.UUID) int {
	n := 0
	for _, notif := range st.Notifications() {
		if notif.RequestID != nil && *notif.RequestID == requestID {
			n++
		}
	}
	return n
}

func TestSweepDeletesStalePendingWithNotifications(t *testing.T) {
	f := newFixture(t)
	stale := f.seedRequest(models.RequestPending, 6*time.Minute)
	fresh := f.seedRequest(models.RequestPending, 4*time.Minute)

	f.trigger(t)

	_, ok := f.st.Request(stale)
	require.False(t, ok)
	require.Zero(t, notificationsFor(f.st, stale))

	_, ok = f.st.Request(fresh)
	require.True(t, ok)
	require.Equal(t, 1, notificationsFor(f.st, fresh))
}

func TestSweepDeletesRejectedButKeepsDecidedRequests(t *testing.T) {
	f := newFixture(t)
	rejected := f.seedRequest(models.RequestRejected, time.Minute)
	accepted := f.seedRequest(models.RequestAccepted, time.Hour)
	aborted := f.seedRequest(models.RequestAborted, time.Hour)

	f.trigger(t)

	_, ok := f.st.Request(rejected)
	require.False(t, ok)
	_, ok = f.st.Request(accepted)
	require.True(t, ok)
	_, ok = f.st.Request(aborted)
	require.True(t, ok)
}

func TestSweepSkipsRequestsWrittenInSameCommit(t *testing.T) {
	f := newFixture(t)
	id := f.seedRequest(models.RequestPending, time.Minute)

	err := f.st.Do(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Requests().Transition(ctx, id, models.RequestPending, models.RequestRejected, f.now)
	})
	require.NoError(t, err)

	got, ok := f.st.Request(id)
	require.True(t, ok)
	require.Equal(t, models.RequestRejected, got.Status)

	f.trigger(t)
	_, ok = f.st.Request(id)
	require.False(t, ok)
}

func TestSweepIgnoresUnrelatedUsers(t *testing.T) {
	f := newFixture(t)
	other := uuid.New()
	id := uuid.New()
	f.st.PutRequest(models.ChargingRequest{
		ID:             id,
		VehicleOwnerID: other,
		ChargerOwnerID: uuid.New(),
		Status:         models.RequestRejected,
		RequestedAt:    f.now.Add(-time.Hour),
	})

	f.trigger(t)

	_, ok := f.st.Request(id)
	require.True(t, ok)
}

func TestSweepDoesNotRunWithoutRequestWrites(t *testing.T) {
	f := newFixture(t)
	stale := f.seedRequest(models.RequestPending, time.Hour)

	err := f.st.Do(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Fees().Upsert(ctx, &models.FeesConfig{MinimumFee: 1, Percentage: 1})
	})
	require.NoError(t, err)

	_, ok := f.st.Request(stale)
	require.True(t, ok)
}
