package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargeshare/backend/services/charging-service/internal/apperr"
	"chargeshare/backend/services/charging-service/internal/models"
	"chargeshare/backend/services/charging-service/internal/notify"
	redisstore "chargeshare/backend/services/charging-service/internal/redis"
	"chargeshare/backend/services/charging-service/internal/store"
)

// ActivityCache mirrors activity pointers outside the database.
type ActivityCache interface {
	Save(ctx context.Context, activity redisstore.Activity) error
	Clear(ctx context.Context, userID, processID uuid.UUID) error
}

// CallbackDeduper drops repeated gateway callbacks by delivery key.
type CallbackDeduper interface {
	FirstDelivery(ctx context.Context, deliveryKey string) (bool, error)
	Forget(ctx context.Context, deliveryKey string) error
}

// Options tunes the lifecycle services.
type Options struct {
	PendingTTL time.Duration
	Currency   string
	Now        func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PendingTTL <= 0 {
		o.PendingTTL = 5 * time.Minute
	}
	if o.Currency == "" {
		o.Currency = "EGP"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type deps struct {
	uow        store.UnitOfWork
	dispatcher notify.Dispatcher
	activity   ActivityCache
	logger     *zap.Logger
	opts       Options
}

func (d *deps) now() time.Time {
	return d.opts.Now().UTC()
}

type outboundEvent struct {
	userID    uuid.UUID
	eventType string
	payload   interface{}
}

// outbox collects notifications persisted in a unit of work for delivery after commit.
type outbox struct {
	events     []outboundEvent
	activities []redisstore.Activity
	cleared    []activityRef
}

type activityRef struct {
	userID    uuid.UUID
	processID uuid.UUID
}

// notify persists a notification row and queues its realtime delivery.
func (d *deps) notify(ctx context.Context, tx store.Tx, ob *outbox, userID uuid.UUID, requestID *uuid.UUID, eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}
	n := &models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		RequestID: requestID,
		EventType: eventType,
		Payload:   raw,
		CreatedAt: d.now(),
	}
	if err := tx.Notifications().Create(ctx, n); err != nil {
		return fmt.Errorf("notify: persist: %w", err)
	}
	ob.events = append(ob.events, outboundEvent{userID: userID, eventType: eventType, payload: payload})
	return nil
}

// flush runs after commit. Failures are logged only.
func (d *deps) flush(ctx context.Context, ob *outbox) {
	for _, ev := range ob.events {
		if d.dispatcher == nil {
			continue
		}
		if err := d.dispatcher.SendToUser(ctx, ev.userID, ev.eventType, ev.payload); err != nil {
			d.logger.Warn("notification dispatch failed",
				zap.String("user_id", ev.userID.String()),
				zap.String("event", ev.eventType),
				zap.Error(err),
			)
		}
	}
	if d.activity == nil {
		return
	}
	for _, a := range ob.activities {
		if err := d.activity.Save(ctx, a); err != nil {
			d.logger.Warn("failed to cache activity", zap.String("user_id", a.UserID.String()), zap.Error(err))
		}
	}
	for _, ref := range ob.cleared {
		if err := d.activity.Clear(ctx, ref.userID, ref.processID); err != nil {
			d.logger.Warn("failed to clear cached activity", zap.String("user_id", ref.userID.String()), zap.Error(err))
		}
	}
}

// setActivity points both participants at the process.
func (d *deps) setActivity(ctx context.Context, tx store.Tx, ob *outbox, p *models.Process) error {
	roles := []struct {
		id   uuid.UUID
		role string
	}{
		{p.VehicleOwnerID, "vehicle_owner"},
		{p.ChargerOwnerID, "charger_owner"},
	}
	for _, r := range roles {
		if err := tx.Users().SetActivity(ctx, r.id, p.ID); err != nil {
			return storeErr(err, "set activity", "user", r.id)
		}
		ob.activities = append(ob.activities, redisstore.Activity{
			UserID:    r.id,
			ProcessID: p.ID,
			RequestID: p.RequestID,
			Role:      r.role,
			Status:    string(p.Status),
		})
	}
	return nil
}

// storeErr classifies persistence errors.
func storeErr(err error, op, entity string, id uuid.UUID) error {
	return storeErrRef(err, op, entity, id.String())
}

// storeErrRef is storeErr for entities addressed by an external reference.
func storeErrRef(err error, op, entity, ref string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.Wrap(apperr.ErrNotFound, op, entity, ref, err)
	case errors.Is(err, store.ErrStale):
		return apperr.Wrap(apperr.ErrInvalidState, op, entity, ref, err)
	case errors.Is(err, store.ErrDuplicate):
		return apperr.Wrap(apperr.ErrConflict, op, entity, ref, err)
	}
	return fmt.Errorf("%s %s %s: %w", op, entity, ref, err)
}

// keyedGuard rejects concurrent work on the same key within this process.
type keyedGuard struct {
	mu   sync.Mutex
	busy map[uuid.UUID]struct{}
}

func (g *keyedGuard) acquire(id uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy == nil {
		g.busy = make(map[uuid.UUID]struct{})
	}
	if _, ok := g.busy[id]; ok {
		return false
	}
	g.busy[id] = struct{}{}
	return true
}

func (g *keyedGuard) release(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, id)
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
