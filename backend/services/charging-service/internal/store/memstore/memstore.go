// Package memstore is an in-memory unit of work. Units of work are serialized and applied
// to a copy of the state that replaces the committed state only on success.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chargeshare/backend/services/charging-service/internal/models"
	"chargeshare/backend/services/charging-service/internal/store"
)

type state struct {
	requests      map[uuid.UUID]models.ChargingRequest
	processes     map[uuid.UUID]models.Process
	users         map[uuid.UUID]models.User
	chargers      map[uuid.UUID]models.Charger
	notifications map[uuid.UUID]models.Notification
	fees          *models.FeesConfig
}

func newState() *state {
	return &state{
		requests:      make(map[uuid.UUID]models.ChargingRequest),
		processes:     make(map[uuid.UUID]models.Process),
		users:         make(map[uuid.UUID]models.User),
		chargers:      make(map[uuid.UUID]models.Charger),
		notifications: make(map[uuid.UUID]models.Notification),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.processes {
		c.processes[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.chargers {
		c.chargers[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	if s.fees != nil {
		fees := *s.fees
		c.fees = &fees
	}
	return c
}

// Store implements store.UnitOfWork in memory.
type Store struct {
	store.Hooks

	mu    sync.Mutex
	state *state
	// FailCommit, when set, is returned instead of committing. Used to simulate persistence failures.
	FailCommit error
}

var _ store.UnitOfWork = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{state: newState()}
}

// Do runs fn against a private copy of the state and commits it when fn and hooks succeed.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.state.clone()
	tx := &memTx{state: working, changes: store.NewChangeSet()}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := s.RunHooks(ctx, tx, tx.changes); err != nil {
		return err
	}
	if s.FailCommit != nil {
		return s.FailCommit
	}

	s.state = working
	return nil
}

// PutUser seeds or replaces a user.
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[u.ID] = u
}

// PutCharger seeds or replaces a charger.
func (s *Store) PutCharger(c models.Charger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.chargers[c.ID] = c
}

// PutRequest seeds or replaces a request without running hooks.
func (s *Store) PutRequest(r models.ChargingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.requests[r.ID] = r
}

// PutNotification seeds a notification without running hooks.
func (s *Store) PutNotification(n models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.notifications[n.ID] = n
}

// Request returns the committed request.
func (s *Store) Request(id uuid.UUID) (models.ChargingRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.state.requests[id]
	return r, ok
}

// Process returns the committed process.
func (s *Store) Process(id uuid.UUID) (models.Process, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.processes[id]
	return p, ok
}

// User returns the committed user.
func (s *Store) User(id uuid.UUID) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.state.users[id]
	return u, ok
}

// Notifications returns committed notifications ordered by creation time.
func (s *Store) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, 0, len(s.state.notifications))
	for _, n := range s.state.notifications {
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type memTx struct {
	state   *state
	changes *store.ChangeSet
}

func (t *memTx) Requests() store.RequestRepository           { return requestRepo{t} }
func (t *memTx) Processes() store.ProcessRepository          { return processRepo{t} }
func (t *memTx) Users() store.UserRepository                 { return userRepo{t} }
func (t *memTx) Chargers() store.ChargerRepository           { return chargerRepo{t} }
func (t *memTx) Notifications() store.NotificationRepository { return notificationRepo{t} }
func (t *memTx) Fees() store.FeesRepository                  { return feesRepo{t} }

type requestRepo struct{ tx *memTx }

func (r requestRepo) Create(ctx context.Context, req *models.ChargingRequest) error {
	if _, ok := r.tx.state.requests[req.ID]; ok {
		return store.ErrDuplicate
	}
	r.tx.state.requests[req.ID] = *req
	r.tx.changes.TouchRequest(req.ID, req.VehicleOwnerID, req.ChargerOwnerID)
	return nil
}

func (r requestRepo) Get(ctx context.Context, id uuid.UUID) (*models.ChargingRequest, error) {
	req, ok := r.tx.state.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &req, nil
}

func (r requestRepo) ListByParticipant(ctx context.Context, userID uuid.UUID, limit int) ([]models.ChargingRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.ChargingRequest
	for _, req := range r.tx.state.requests {
		if req.IsParticipant(userID) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r requestRepo) HasActive(ctx context.Context, vehicleOwnerID, chargerID uuid.UUID, pendingSince time.Time) (bool, error) {
	for _, req := range r.tx.state.requests {
		if req.VehicleOwnerID != vehicleOwnerID || req.ChargerID != chargerID {
			continue
		}
		switch req.Status {
		case models.RequestPending:
			if req.RequestedAt.After(pendingSince) {
				return true, nil
			}
		case models.RequestAccepted:
			return true, nil
		case models.RequestConfirmed:
			if !r.tx.processTerminal(req.ID) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (t *memTx) processTerminal(requestID uuid.UUID) bool {
	for _, p := range t.state.processes {
		if p.RequestID == requestID {
			return p.Status.IsTerminal()
		}
	}
	return true
}

func (t *memTx) hasProcess(requestID uuid.UUID) bool {
	for _, p := range t.state.processes {
		if p.RequestID == requestID {
			return true
		}
	}
	return false
}

func (r requestRepo) Transition(ctx context.Context, id uuid.UUID, from, to models.RequestStatus, at time.Time) error {
	req, ok := r.tx.state.requests[id]
	if !ok {
		return store.ErrNotFound
	}
	if req.Status != from {
		return store.ErrStale
	}
	req.Status = to
	switch to {
	case models.RequestAccepted, models.RequestRejected:
		if req.RespondedAt == nil {
			req.RespondedAt = &at
		}
	case models.RequestConfirmed:
		req.ConfirmedAt = &at
	}
	r.tx.state.requests[id] = req
	r.tx.changes.TouchRequest(id, req.VehicleOwnerID, req.ChargerOwnerID)
	return nil
}

func (r requestRepo) ListSweepable(ctx context.Context, userIDs []uuid.UUID, staleBefore time.Time, skip []uuid.UUID) ([]uuid.UUID, error) {
	users := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		users[id] = struct{}{}
	}
	skipped := make(map[uuid.UUID]struct{}, len(skip))
	for _, id := range skip {
		skipped[id] = struct{}{}
	}

	var out []uuid.UUID
	for id, req := range r.tx.state.requests {
		if _, ok := skipped[id]; ok {
			continue
		}
		_, vo := users[req.VehicleOwnerID]
		_, co := users[req.ChargerOwnerID]
		if !vo && !co {
			continue
		}
		stale := req.Status == models.RequestPending && !req.RequestedAt.After(staleBefore)
		if (stale || req.Status == models.RequestRejected) && !r.tx.hasProcess(id) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r requestRepo) DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error) {
	for _, id := range ids {
		for _, notif := range r.tx.state.notifications {
			if notif.RequestID != nil && *notif.RequestID == id {
				return 0, store.ErrReferenced
			}
		}
	}
	var n int64
	for _, id := range ids {
		if _, ok := r.tx.state.requests[id]; ok {
			delete(r.tx.state.requests, id)
			n++
		}
	}
	return n, nil
}

type processRepo struct{ tx *memTx }

func (r processRepo) Create(ctx context.Context, p *models.Process) error {
	if r.tx.hasProcess(p.RequestID) {
		return store.ErrDuplicate
	}
	r.tx.state.processes[p.ID] = *p
	return nil
}

func (r processRepo) Get(ctx context.Context, id uuid.UUID) (*models.Process, error) {
	p, ok := r.tx.state.processes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (r processRepo) GetByRequest(ctx context.Context, requestID uuid.UUID) (*models.Process, error) {
	for _, p := range r.tx.state.processes {
		if p.RequestID == requestID {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r processRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Process, error) {
	for _, p := range r.tx.state.processes {
		if orderID != "" && p.GatewayOrderID == orderID {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r processRepo) Transition(ctx context.Context, id uuid.UUID, from, to models.ProcessStatus) error {
	p, ok := r.tx.state.processes[id]
	if !ok {
		return store.ErrNotFound
	}
	if p.Status != from {
		return store.ErrStale
	}
	p.Status = to
	r.tx.state.processes[id] = p
	return nil
}

func (r processRepo) Save(ctx context.Context, p *models.Process) error {
	current, ok := r.tx.state.processes[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	next := *p
	next.Status = current.Status
	r.tx.state.processes[p.ID] = next
	return nil
}

type userRepo struct{ tx *memTx }

func (r userRepo) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := r.tx.state.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) SetActivity(ctx context.Context, userID, processID uuid.UUID) error {
	u, ok := r.tx.state.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	pid := processID
	u.CurrentProcessID = &pid
	u.IsAvailable = false
	r.tx.state.users[userID] = u
	return nil
}

func (r userRepo) ClearActivity(ctx context.Context, userID, processID uuid.UUID) (bool, error) {
	u, ok := r.tx.state.users[userID]
	if !ok {
		return false, store.ErrNotFound
	}
	cleared := false
	if u.CurrentProcessID != nil && *u.CurrentProcessID == processID {
		u.CurrentProcessID = nil
		cleared = true
	}
	if u.CurrentProcessID == nil {
		u.IsAvailable = true
	}
	r.tx.state.users[userID] = u
	return cleared, nil
}

type chargerRepo struct{ tx *memTx }

func (r chargerRepo) Get(ctx context.Context, id uuid.UUID) (*models.Charger, error) {
	c, ok := r.tx.state.chargers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

type notificationRepo struct{ tx *memTx }

func (r notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if n.RequestID != nil {
		if _, ok := r.tx.state.requests[*n.RequestID]; !ok {
			return store.ErrNotFound
		}
	}
	r.tx.state.notifications[n.ID] = *n
	return nil
}

func (r notificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.Notification
	for _, n := range r.tx.state.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r notificationRepo) DeleteByRequestIDs(ctx context.Context, requestIDs []uuid.UUID) (int64, error) {
	ids := make(map[uuid.UUID]struct{}, len(requestIDs))
	for _, id := range requestIDs {
		ids[id] = struct{}{}
	}
	var n int64
	for id, notif := range r.tx.state.notifications {
		if notif.RequestID == nil {
			continue
		}
		if _, ok := ids[*notif.RequestID]; ok {
			delete(r.tx.state.notifications, id)
			n++
		}
	}
	return n, nil
}

type feesRepo struct{ tx *memTx }

func (r feesRepo) Get(ctx context.Context) (*models.FeesConfig, error) {
	if r.tx.state.fees == nil {
		return nil, store.ErrNotFound
	}
	cfg := *r.tx.state.fees
	return &cfg, nil
}

func (r feesRepo) Upsert(ctx context.Context, cfg *models.FeesConfig) error {
	c := *cfg
	r.tx.state.fees = &c
	return nil
}
