package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargeshare/backend/services/charging-service/internal/apperr"
	"chargeshare/backend/services/charging-service/internal/fees"
	"chargeshare/backend/services/charging-service/internal/models"
	"chargeshare/backend/services/charging-service/internal/notify"
	"chargeshare/backend/services/charging-service/internal/payments"
	"chargeshare/backend/services/charging-service/internal/store"
)

// RequestService drives the charging request state machine.
type RequestService struct {
	deps
	fees      *FeesService
	processes *ProcessService
}

// RequestServiceConfig groups request service collaborators.
type RequestServiceConfig struct {
	UnitOfWork store.UnitOfWork
	Fees       *FeesService
	Processes  *ProcessService
	Dispatcher notify.Dispatcher
	Activity   ActivityCache
	Logger     *zap.Logger
	Options    Options
}

// NewRequestService builds service. Termination and payment initiation are delegated to the
// process service.
func NewRequestService(cfg RequestServiceConfig) *RequestService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		deps: deps{
			uow:        cfg.UnitOfWork,
			dispatcher: cfg.Dispatcher,
			activity:   cfg.Activity,
			logger:     logger,
			opts:       cfg.Options.withDefaults(),
		},
		fees:      cfg.Fees,
		processes: cfg.Processes,
	}
}

// SendRequestInput is what a vehicle owner submits.
type SendRequestInput struct {
	VehicleOwnerID uuid.UUID
	ChargerID      uuid.UUID
	KWNeeded       float64
	BatteryPct     float64
	Latitude       float64
	Longitude      float64
}

func (in SendRequestInput) validate() error {
	const op = "send request"
	id := in.ChargerID.String()
	switch {
	case in.KWNeeded <= 0:
		return apperr.New(apperr.ErrInvalidArgument, op, "charger", id, "kw needed must be positive")
	case in.BatteryPct < 0 || in.BatteryPct > 100:
		return apperr.New(apperr.ErrInvalidArgument, op, "charger", id, "battery percentage must be within [0,100]")
	case in.Latitude < -90 || in.Latitude > 90:
		return apperr.New(apperr.ErrInvalidArgument, op, "charger", id, "latitude out of range")
	case in.Longitude < -180 || in.Longitude > 180:
		return apperr.New(apperr.ErrInvalidArgument, op, "charger", id, "longitude out of range")
	}
	return nil
}

// SendChargingRequest creates a pending request and notifies the charger owner.
func (s *RequestService) SendChargingRequest(ctx context.Context, in SendRequestInput) (*models.ChargingRequest, error) {
	const op = "send request"
	if err := in.validate(); err != nil {
		return nil, err
	}

	var (
		out *models.ChargingRequest
		ob  outbox
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		charger, err := tx.Chargers().Get(ctx, in.ChargerID)
		if err != nil {
			return storeErr(err, op, "charger", in.ChargerID)
		}
		if !charger.Usable() {
			return apperr.New(apperr.ErrInvalidArgument, op, "charger", charger.ID.String(), "charger is not available")
		}
		if charger.OwnerID == in.VehicleOwnerID {
			return apperr.New(apperr.ErrInvalidArgument, op, "charger", charger.ID.String(), "cannot request own charger")
		}

		now := s.now()
		active, err := tx.Requests().HasActive(ctx, in.VehicleOwnerID, in.ChargerID, now.Add(-s.opts.PendingTTL))
		if err != nil {
			return err
		}
		if active {
			return apperr.New(apperr.ErrConflict, op, "charger", charger.ID.String(), "an active request already exists")
		}

		cfg, err := s.fees.loadOrCreate(ctx, tx)
		if err != nil {
			return err
		}
		breakdown := fees.Calculate(fees.BaseAmount(in.KWNeeded, charger.PricePerKWh), *cfg)

		req := &models.ChargingRequest{
			ID:             uuid.New(),
			VehicleOwnerID: in.VehicleOwnerID,
			ChargerID:      charger.ID,
			ChargerOwnerID: charger.OwnerID,
			KWNeeded:       in.KWNeeded,
			BatteryPct:     in.BatteryPct,
			Latitude:       in.Latitude,
			Longitude:      in.Longitude,
			Status:         models.RequestPending,
			BaseAmount:     breakdown.Base,
			PlatformFee:    breakdown.Fee,
			EstimatedPrice: breakdown.Total,
			RequestedAt:    now,
		}
		if err := tx.Requests().Create(ctx, req); err != nil {
			return storeErr(err, op, "request", req.ID)
		}
		out = req
		return s.notify(ctx, tx, &ob, req.ChargerOwnerID, uuidPtr(req.ID), models.EventRequestReceived, requestUpdate(req))
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, &ob)

	s.logger.Info("charging request sent",
		zap.String("request_id", out.ID.String()),
		zap.String("actor_id", in.VehicleOwnerID.String()),
		zap.Int64("estimated_price", out.EstimatedPrice),
	)
	return out, nil
}

type requestPayload struct {
	RequestID      uuid.UUID            `json:"request_id"`
	ProcessID      *uuid.UUID           `json:"process_id,omitempty"`
	Status         models.RequestStatus `json:"status"`
	VehicleOwnerID uuid.UUID            `json:"vehicle_owner_id"`
	ChargerID      uuid.UUID            `json:"charger_id"`
	KWNeeded       float64              `json:"kw_needed"`
	BaseAmount     int64                `json:"base_amount"`
	PlatformFee    int64                `json:"platform_fee"`
	EstimatedPrice int64                `json:"estimated_price"`
}

func requestUpdate(r *models.ChargingRequest) requestPayload {
	return requestPayload{
		RequestID:      r.ID,
		Status:         r.Status,
		VehicleOwnerID: r.VehicleOwnerID,
		ChargerID:      r.ChargerID,
		KWNeeded:       r.KWNeeded,
		BaseAmount:     r.BaseAmount,
		PlatformFee:    r.PlatformFee,
		EstimatedPrice: r.EstimatedPrice,
	}
}

// loadForActor reads the request and checks the actor may act on it.
func loadForActor(ctx context.Context, tx store.Tx, op string, requestID uuid.UUID, allowed func(*models.ChargingRequest) bool) (*models.ChargingRequest, error) {
	req, err := tx.Requests().Get(ctx, requestID)
	if err != nil {
		return nil, storeErr(err, op, "request", requestID)
	}
	if !allowed(req) {
		return nil, apperr.New(apperr.ErrForbidden, op, "request", req.ID.String(), "actor may not perform this operation")
	}
	return req, nil
}

// Accept moves a pending request to accepted and opens its process.
func (s *RequestService) Accept(ctx context.Context, requestID, actorID uuid.UUID) (*models.Process, error) {
	const op = "accept"
	var (
		out *models.Process
		ob  outbox
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		req, err := loadForActor(ctx, tx, op, requestID, func(r *models.ChargingRequest) bool { return r.ChargerOwnerID == actorID })
		if err != nil {
			return err
		}
		if req.Status != models.RequestPending {
			return apperr.New(apperr.ErrInvalidState, op, "request", req.ID.String(), "request is "+string(req.Status))
		}
		now := s.now()
		if err := tx.Requests().Transition(ctx, req.ID, models.RequestPending, models.RequestAccepted, now); err != nil {
			return storeErr(err, op, "request", req.ID)
		}
		req.Status = models.RequestAccepted

		p := &models.Process{
			ID:             uuid.New(),
			RequestID:      req.ID,
			VehicleOwnerID: req.VehicleOwnerID,
			ChargerOwnerID: req.ChargerOwnerID,
			ChargerID:      req.ChargerID,
			Status:         models.ProcessPending,
			DateCreated:    now,
			BaseAmount:     req.BaseAmount,
			PlatformFee:    req.PlatformFee,
			EstimatedPrice: req.EstimatedPrice,
		}
		if err := tx.Processes().Create(ctx, p); err != nil {
			return storeErr(err, op, "process", p.ID)
		}
		if err := s.setActivity(ctx, tx, &ob, p); err != nil {
			return err
		}
		out = p

		payload := requestUpdate(req)
		payload.ProcessID = uuidPtr(p.ID)
		return s.notify(ctx, tx, &ob, req.VehicleOwnerID, uuidPtr(req.ID), models.EventRequestAccepted, payload)
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, &ob)

	s.logger.Info("charging request accepted",
		zap.String("request_id", requestID.String()),
		zap.String("process_id", out.ID.String()),
		zap.String("actor_id", actorID.String()),
	)
	return out, nil
}

// Reject declines a pending request. Rejecting an already rejected request is a no-op.
func (s *RequestService) Reject(ctx context.Context, requestID, actorID uuid.UUID) (*models.ChargingRequest, error) {
	const op = "reject"
	var (
		out     *models.ChargingRequest
		ob      outbox
		applied bool
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		req, err := loadForActor(ctx, tx, op, requestID, func(r *models.ChargingRequest) bool { return r.ChargerOwnerID == actorID })
		if err != nil {
			return err
		}
		out = req
		switch req.Status {
		case models.RequestRejected:
			return nil
		case models.RequestPending:
		default:
			return apperr.New(apperr.ErrInvalidState, op, "request", req.ID.String(), "request is "+string(req.Status))
		}
		if err := tx.Requests().Transition(ctx, req.ID, models.RequestPending, models.RequestRejected, s.now()); err != nil {
			if errors.Is(err, store.ErrStale) {
				if current, getErr := tx.Requests().Get(ctx, req.ID); getErr == nil && current.Status == models.RequestRejected {
					out = current
					return nil
				}
			}
			return storeErr(err, op, "request", req.ID)
		}
		req.Status = models.RequestRejected
		applied = true
		return s.notify(ctx, tx, &ob, req.VehicleOwnerID, uuidPtr(req.ID), models.EventRequestRejected, requestUpdate(req))
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, &ob)

	if applied {
		s.logger.Info("charging request rejected",
			zap.String("request_id", requestID.String()),
			zap.String("actor_id", actorID.String()),
		)
	}
	return out, nil
}

// Confirm commits the vehicle owner to an accepted request and starts payment. The state change is
// committed before the gateway is called; a gateway failure is reported as
// ErrPaymentInitiationFailed and RetryPaymentInitiation can be used afterwards.
func (s *RequestService) Confirm(ctx context.Context, requestID, actorID uuid.UUID, method payments.PaymentMethod) (*models.Process, error) {
	const op = "confirm"
	var (
		p  *models.Process
		ob outbox
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		req, err := loadForActor(ctx, tx, op, requestID, func(r *models.ChargingRequest) bool { return r.VehicleOwnerID == actorID })
		if err != nil {
			return err
		}
		if req.Status != models.RequestAccepted {
			return apperr.New(apperr.ErrInvalidState, op, "request", req.ID.String(), "request is "+string(req.Status))
		}
		proc, err := tx.Processes().GetByRequest(ctx, req.ID)
		if err != nil {
			return storeErr(err, op, "process", req.ID)
		}
		if proc.Status != models.ProcessPending {
			return apperr.New(apperr.ErrInvalidState, op, "process", proc.ID.String(), "process is "+string(proc.Status))
		}

		if err := tx.Requests().Transition(ctx, req.ID, models.RequestAccepted, models.RequestConfirmed, s.now()); err != nil {
			return storeErr(err, op, "request", req.ID)
		}
		if err := tx.Processes().Transition(ctx, proc.ID, models.ProcessPending, models.ProcessInProgress); err != nil {
			return storeErr(err, op, "process", proc.ID)
		}
		req.Status = models.RequestConfirmed
		proc.Status = models.ProcessInProgress
		if err := s.setActivity(ctx, tx, &ob, proc); err != nil {
			return err
		}
		p = proc

		payload := requestUpdate(req)
		payload.ProcessID = uuidPtr(proc.ID)
		return s.notify(ctx, tx, &ob, req.ChargerOwnerID, uuidPtr(req.ID), models.EventRequestConfirmed, payload)
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, &ob)

	s.logger.Info("charging request confirmed",
		zap.String("request_id", requestID.String()),
		zap.String("process_id", p.ID.String()),
		zap.String("actor_id", actorID.String()),
	)
	return s.processes.initiatePayment(ctx, p, method)
}

// Abort ends an accepted or confirmed request on behalf of either participant. A settled payment is
// reversed after the termination commits.
func (s *RequestService) Abort(ctx context.Context, requestID, actorID uuid.UUID) (*TerminateResult, error) {
	const op = "abort"
	var processID uuid.UUID
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		req, err := loadForActor(ctx, tx, op, requestID, func(r *models.ChargingRequest) bool { return r.IsParticipant(actorID) })
		if err != nil {
			return err
		}
		switch req.Status {
		case models.RequestAccepted, models.RequestConfirmed, models.RequestAborted:
		default:
			return apperr.New(apperr.ErrInvalidState, op, "request", req.ID.String(), "request is "+string(req.Status))
		}
		proc, err := tx.Processes().GetByRequest(ctx, req.ID)
		if err != nil {
			return storeErr(err, op, "process", req.ID)
		}
		if proc.Status == models.ProcessCompleted {
			return apperr.New(apperr.ErrInvalidState, op, "process", proc.ID.String(), "process already completed")
		}
		processID = proc.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	res, err := s.processes.TerminateProcess(ctx, TerminateInput{
		ProcessID: processID,
		Target:    models.ProcessAborted,
		Reason:    ReasonAbortedByUser,
		ActorID:   &actorID,
	})
	if err != nil {
		return nil, err
	}
	if !res.Applied && res.Process.Status != models.ProcessAborted {
		// Another exit won between validation and termination.
		return nil, apperr.New(apperr.ErrInvalidState, op, "process", processID.String(), "process is "+string(res.Process.Status))
	}
	if res.Applied {
		s.processes.refundIfSettled(ctx, res.Process)
	}
	return res, nil
}

// GetRequest returns a request visible to actorID.
func (s *RequestService) GetRequest(ctx context.Context, requestID, actorID uuid.UUID) (*models.ChargingRequest, error) {
	var out *models.ChargingRequest
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = loadForActor(ctx, tx, "get", requestID, func(r *models.ChargingRequest) bool { return r.IsParticipant(actorID) })
		return err
	})
	return out, err
}

// ListRequests returns the actor's requests on either side, newest first.
func (s *RequestService) ListRequests(ctx context.Context, actorID uuid.UUID, limit int) ([]models.ChargingRequest, error) {
	var out []models.ChargingRequest
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Requests().ListByParticipant(ctx, actorID, limit)
		return err
	})
	return out, err
}
