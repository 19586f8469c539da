// Package sweep purges stale and rejected charging requests as part of the commit that
// touched their participants.
package sweep

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chargeshare/backend/services/charging-service/internal/store"
)

// DefaultPendingTTL is how long a request may stay pending before it is swept.
const DefaultPendingTTL = 5 * time.Minute

// Sweeper deletes the affected users' expired pending and rejected requests with their notifications.
type Sweeper struct {
	pendingTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// New builds a sweeper.
func New(pendingTTL time.Duration, now func() time.Time, logger *zap.Logger) *Sweeper {
	if pendingTTL <= 0 {
		pendingTTL = DefaultPendingTTL
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{pendingTTL: pendingTTL, now: now, logger: logger}
}

// Register installs the sweep as a pre-commit hook.
func (s *Sweeper) Register(uow store.UnitOfWork) {
	uow.RegisterHook(s.Hook)
}

// Hook implements store.Hook. Requests written in the current unit of work are left for the next pass.
func (s *Sweeper) Hook(ctx context.Context, tx store.Tx, changes *store.ChangeSet) error {
	users := changes.UserIDs()
	if len(users) == 0 {
		return nil
	}

	staleBefore := s.now().UTC().Add(-s.pendingTTL)
	ids, err := tx.Requests().ListSweepable(ctx, users, staleBefore, changes.RequestIDs())
	if err != nil {
		return fmt.Errorf("sweep: list: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	notifications, err := tx.Notifications().DeleteByRequestIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("sweep: delete notifications: %w", err)
	}
	requests, err := tx.Requests().DeleteMany(ctx, ids)
	if err != nil {
		return fmt.Errorf("sweep: delete requests: %w", err)
	}

	s.logger.Info("swept stale requests",
		zap.Int("users", len(users)),
		zap.Int64("requests", requests),
		zap.Int64("notifications", notifications),
	)
	return nil
}
