package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargeshare/backend/services/charging-service/internal/apperr"
	"chargeshare/backend/services/charging-service/internal/models"
	"chargeshare/backend/services/charging-service/internal/store"
)

// FeesService owns the fees configuration singleton.
type FeesService struct {
	uow      store.UnitOfWork
	defaults models.FeesConfig
	now      func() time.Time
	logger   *zap.Logger
}

// NewFeesService builds service; defaults seed the singleton on first read.
func NewFeesService(uow store.UnitOfWork, minimumFee, percentage float64, now func() time.Time, logger *zap.Logger) *FeesService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeesService{
		uow:      uow,
		defaults: models.FeesConfig{MinimumFee: minimumFee, Percentage: percentage},
		now:      now,
		logger:   logger,
	}
}

// Get returns the configuration, creating it with defaults when absent.
func (s *FeesService) Get(ctx context.Context) (*models.FeesConfig, error) {
	var cfg *models.FeesConfig
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		cfg, err = s.loadOrCreate(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Update validates and stores new values, stamping the actor and a strictly increasing updatedAt.
func (s *FeesService) Update(ctx context.Context, actorID uuid.UUID, minimumFee, percentage float64) (*models.FeesConfig, error) {
	if err := validateFees(minimumFee, percentage); err != nil {
		return nil, err
	}

	var cfg *models.FeesConfig
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := s.loadOrCreate(ctx, tx)
		if err != nil {
			return err
		}
		updatedAt := s.now().UTC()
		if !updatedAt.After(current.UpdatedAt) {
			updatedAt = current.UpdatedAt.Add(time.Microsecond)
		}
		cfg = &models.FeesConfig{
			MinimumFee: minimumFee,
			Percentage: percentage,
			UpdatedAt:  updatedAt,
			UpdatedBy:  uuidPtr(actorID),
		}
		return tx.Fees().Upsert(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("fees config updated",
		zap.String("actor_id", actorID.String()),
		zap.Float64("minimum_fee", minimumFee),
		zap.Float64("percentage", percentage),
	)
	return cfg, nil
}

func (s *FeesService) loadOrCreate(ctx context.Context, tx store.Tx) (*models.FeesConfig, error) {
	cfg, err := tx.Fees().Get(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	created := s.defaults
	created.UpdatedAt = s.now().UTC()
	if err := tx.Fees().Upsert(ctx, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func validateFees(minimumFee, percentage float64) error {
	for _, v := range []float64{minimumFee, percentage} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperr.New(apperr.ErrInvalidArgument, "update fees", "fees", "", "fees must be finite numbers")
		}
	}
	if minimumFee < 0 {
		return apperr.New(apperr.ErrInvalidArgument, "update fees", "fees", "", "minimum fee must be >= 0")
	}
	if percentage < 0 || percentage > 100 {
		return apperr.New(apperr.ErrInvalidArgument, "update fees", "fees", "", "percentage must be within [0,100]")
	}
	return nil
}
