package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chargeshare/backend/services/charging-service/internal/apperr"
	"chargeshare/backend/services/charging-service/internal/models"
	"chargeshare/backend/services/charging-service/internal/service"
	"chargeshare/backend/services/charging-service/internal/store"
	"chargeshare/backend/services/charging-service/internal/store/memstore"
)

// racingStore lets a test land a competing write between a read and the conditional transition
// that follows it, the way a concurrent transaction committing first would on Postgres.
type racingStore struct {
	store.UnitOfWork

	mu            sync.Mutex
	beforeRequest func(ctx context.Context, tx store.Tx, id uuid.UUID)
	beforeProcess func(ctx context.Context, tx store.Tx, id uuid.UUID)
	beforeDo      func()
	skipDo        int
}

func (s *racingStore) Do(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	var hook func()
	if s.beforeDo != nil {
		if s.skipDo == 0 {
			hook, s.beforeDo = s.beforeDo, nil
		} else {
			s.skipDo--
		}
	}
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	return s.UnitOfWork.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, racingTx{Tx: tx, s: s})
	})
}

// onDo runs hook once, before the unit of work that follows skip further calls.
func (s *racingStore) onDo(skip int, hook func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipDo = skip
	s.beforeDo = hook
}

func (s *racingStore) onRequestTransition(hook func(ctx context.Context, tx store.Tx, id uuid.UUID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeRequest = hook
}

func (s *racingStore) onProcessTransition(hook func(ctx context.Context, tx store.Tx, id uuid.UUID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeProcess = hook
}

func (s *racingStore) takeRequestHook() func(ctx context.Context, tx store.Tx, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hook := s.beforeRequest
	s.beforeRequest = nil
	return hook
}

func (s *racingStore) takeProcessHook() func(ctx context.Context, tx store.Tx, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hook := s.beforeProcess
	s.beforeProcess = nil
	return hook
}

type racingTx struct {
	store.Tx
	s *racingStore
}

func (t racingTx) Requests() store.RequestRepository {
	return racingRequests{RequestRepository: t.Tx.Requests(), tx: t.Tx, s: t.s}
}

func (t racingTx) Processes() store.ProcessRepository {
	return racingProcesses{ProcessRepository: t.Tx.Processes(), tx: t.Tx, s: t.s}
}

type racingRequests struct {
	store.RequestRepository
	tx store.Tx
	s  *racingStore
}

func (r racingRequests) Transition(ctx context.Context, id uuid.UUID, from, to models.RequestStatus, at time.Time) error {
	if hook := r.s.takeRequestHook(); hook != nil {
		hook(ctx, r.tx, id)
	}
	return r.RequestRepository.Transition(ctx, id, from, to, at)
}

type racingProcesses struct {
	store.ProcessRepository
	tx store.Tx
	s  *racingStore
}

func (r racingProcesses) Transition(ctx context.Context, id uuid.UUID, from, to models.ProcessStatus) error {
	if hook := r.s.takeProcessHook(); hook != nil {
		hook(ctx, r.tx, id)
	}
	return r.ProcessRepository.Transition(ctx, id, from, to)
}

func newRacingEnv(t *testing.T) (*env, *racingStore) {
	t.Helper()
	var rs *racingStore
	e := newEnvOn(t, func(st *memstore.Store) store.UnitOfWork {
		rs = &racingStore{UnitOfWork: st}
		return rs
	})
	return e, rs
}

// setRequestStatus simulates another transaction committing a request transition first.
func setRequestStatus(t *testing.T, to models.RequestStatus) func(ctx context.Context, tx store.Tx, id uuid.UUID) {
	return func(ctx context.Context, tx store.Tx, id uuid.UUID) {
		require.NoError(t, tx.Requests().Transition(ctx, id, models.RequestPending, to, time.Now()))
	}
}

func TestAcceptLosesToConcurrentReject(t *testing.T) {
	e, rs := newRacingEnv(t)
	req := e.send(t)

	rs.onRequestTransition(setRequestStatus(t, models.RequestRejected))
	_, err := e.requests.Accept(context.Background(), req.ID, e.chargerOwner)
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	stored, _ := e.st.Request(req.ID)
	require.Equal(t, models.RequestPending, stored.Status, "losing unit of work must roll back")
	require.Zero(t, e.dispatcher.count(e.vehicleOwner, models.EventRequestAccepted))
}

func TestRejectLosesToConcurrentAccept(t *testing.T) {
	e, rs := newRacingEnv(t)
	req := e.send(t)

	rs.onRequestTransition(setRequestStatus(t, models.RequestAccepted))
	_, err := e.requests.Reject(context.Background(), req.ID, e.chargerOwner)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
	require.Zero(t, e.dispatcher.count(e.vehicleOwner, models.EventRequestRejected))
}

func TestRejectRacingRejectIsNoop(t *testing.T) {
	e, rs := newRacingEnv(t)
	req := e.send(t)

	rs.onRequestTransition(setRequestStatus(t, models.RequestRejected))
	out, err := e.requests.Reject(context.Background(), req.ID, e.chargerOwner)
	require.NoError(t, err)
	require.Equal(t, models.RequestRejected, out.Status)
	require.Zero(t, e.dispatcher.count(e.vehicleOwner, models.EventRequestRejected))
}

func TestTerminateRacingTerminateIsNoop(t *testing.T) {
	e, rs := newRacingEnv(t)
	ctx := context.Background()
	req := e.send(t)
	p, err := e.requests.Accept(ctx, req.ID, e.chargerOwner)
	require.NoError(t, err)

	rs.onProcessTransition(func(ctx context.Context, tx store.Tx, id uuid.UUID) {
		require.NoError(t, tx.Processes().Transition(ctx, id, models.ProcessPending, models.ProcessAborted))
	})
	res, err := e.processes.TerminateProcess(ctx, service.TerminateInput{
		ProcessID: p.ID,
		Target:    models.ProcessRejected,
		Reason:    service.ReasonRejectedByOwner,
	})
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Equal(t, models.ProcessAborted, res.Process.Status)
	require.Zero(t, e.dispatcher.count(e.vehicleOwner, models.EventProcessTerminated))
	require.Zero(t, e.dispatcher.count(e.chargerOwner, models.EventProcessTerminated))
}

func TestTerminateRacingNonTerminalWriteFails(t *testing.T) {
	e, rs := newRacingEnv(t)
	ctx := context.Background()
	req := e.send(t)
	p, err := e.requests.Accept(ctx, req.ID, e.chargerOwner)
	require.NoError(t, err)

	rs.onProcessTransition(func(ctx context.Context, tx store.Tx, id uuid.UUID) {
		require.NoError(t, tx.Processes().Transition(ctx, id, models.ProcessPending, models.ProcessInProgress))
	})
	_, err = e.processes.TerminateProcess(ctx, service.TerminateInput{
		ProcessID: p.ID,
		Target:    models.ProcessAborted,
		Reason:    service.ReasonTimeout,
	})
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestAbortLosesToConcurrentCompletion(t *testing.T) {
	e, rs := newRacingEnv(t)
	ctx := context.Background()
	req, p := e.confirmed(t)
	e.settle(t, p)

	// Abort validates in one unit of work and terminates in the next; completion lands in between.
	rs.onDo(1, func() {
		_, err := e.processes.ConfirmByVehicleOwner(ctx, p.ID, e.vehicleOwner)
		require.NoError(t, err)
	})
	_, err := e.requests.Abort(ctx, req.ID, e.chargerOwner)
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	stored, _ := e.st.Process(p.ID)
	require.Equal(t, models.ProcessCompleted, stored.Status)
	require.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	require.Zero(t, e.gateway.refunds)
	require.Equal(t, 1, e.dispatcher.count(e.chargerOwner, models.EventProcessTerminated))
}
