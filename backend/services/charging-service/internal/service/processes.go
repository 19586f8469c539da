package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargeshare/backend/services/charging-service/internal/apperr"
	"chargeshare/backend/services/charging-service/internal/models"
	"chargeshare/backend/services/charging-service/internal/notify"
	"chargeshare/backend/services/charging-service/internal/payments"
	"chargeshare/backend/services/charging-service/internal/store"
)

// Termination reasons.
const (
	ReasonCompleted       = "completed"
	ReasonAbortedByUser   = "aborted_by_user"
	ReasonRejectedByOwner = "rejected_by_owner"
	ReasonTimeout         = "timeout"
)

const maxCommentLength = 500

// ProcessService owns the process lifecycle and the single termination path.
type ProcessService struct {
	deps
	gateway      payments.Gateway
	integrations payments.Integrations
	dedupe       CallbackDeduper
	refunds      keyedGuard
}

// ProcessServiceConfig groups process service collaborators.
type ProcessServiceConfig struct {
	UnitOfWork   store.UnitOfWork
	Dispatcher   notify.Dispatcher
	Gateway      payments.Gateway
	Integrations payments.Integrations
	Activity     ActivityCache
	Deduper      CallbackDeduper
	Logger       *zap.Logger
	Options      Options
}

// NewProcessService builds service.
func NewProcessService(cfg ProcessServiceConfig) *ProcessService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessService{
		deps: deps{
			uow:        cfg.UnitOfWork,
			dispatcher: cfg.Dispatcher,
			activity:   cfg.Activity,
			logger:     logger,
			opts:       cfg.Options.withDefaults(),
		},
		gateway:      cfg.Gateway,
		integrations: cfg.Integrations,
		dedupe:       cfg.Deduper,
	}
}

// TerminateInput describes one process exit.
type TerminateInput struct {
	ProcessID uuid.UUID
	Target    models.ProcessStatus
	Reason    string
	ActorID   *uuid.UUID
}

// TerminateResult reports the final process and whether this call applied the transition.
type TerminateResult struct {
	Process *models.Process
	Applied bool
}

// TerminateProcess is the single exit path for every process. Terminating an already terminal
// process succeeds without side effects.
func (s *ProcessService) TerminateProcess(ctx context.Context, in TerminateInput) (*TerminateResult, error) {
	if !in.Target.IsTerminal() {
		return nil, apperr.New(apperr.ErrInvalidArgument, "terminate", "process", in.ProcessID.String(), "target status must be terminal")
	}

	var (
		result TerminateResult
		ob     outbox
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.Processes().Get(ctx, in.ProcessID)
		if err != nil {
			return storeErr(err, "terminate", "process", in.ProcessID)
		}
		if in.ActorID != nil && !p.IsParticipant(*in.ActorID) {
			return apperr.New(apperr.ErrForbidden, "terminate", "process", p.ID.String(), "actor is not a participant")
		}
		applied, err := s.terminateInTx(ctx, tx, &ob, p, in.Target, in.Reason, in.ActorID)
		if err != nil {
			return err
		}
		result = TerminateResult{Process: p, Applied: applied}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, &ob)
	return &result, nil
}

// terminateInTx applies the termination to p inside tx. It reports false when p was already terminal.
func (s *ProcessService) terminateInTx(ctx context.Context, tx store.Tx, ob *outbox, p *models.Process, target models.ProcessStatus, reason string, actorID *uuid.UUID) (bool, error) {
	if p.Status.IsTerminal() {
		return false, nil
	}

	if err := tx.Processes().Transition(ctx, p.ID, p.Status, target); err != nil {
		if !errors.Is(err, store.ErrStale) {
			return false, storeErr(err, "terminate", "process", p.ID)
		}
		current, getErr := tx.Processes().Get(ctx, p.ID)
		if getErr != nil {
			return false, storeErr(getErr, "terminate", "process", p.ID)
		}
		if current.Status.IsTerminal() {
			*p = *current
			return false, nil
		}
		return false, storeErr(err, "terminate", "process", p.ID)
	}

	req, err := tx.Requests().Get(ctx, p.RequestID)
	if err != nil {
		return false, storeErr(err, "terminate", "request", p.RequestID)
	}
	if next := target.RequestStatusFor(); req.Status != next {
		if err := tx.Requests().Transition(ctx, req.ID, req.Status, next, s.now()); err != nil {
			return false, storeErr(err, "terminate", "request", req.ID)
		}
	}

	now := s.now()
	p.Status = target
	p.Reason = reason
	p.DateCompleted = &now
	if target == models.ProcessCompleted {
		p.AmountCharged = p.EstimatedPrice
	}
	if err := tx.Processes().Save(ctx, p); err != nil {
		return false, storeErr(err, "terminate", "process", p.ID)
	}

	for _, userID := range []uuid.UUID{p.VehicleOwnerID, p.ChargerOwnerID} {
		if _, err := tx.Users().ClearActivity(ctx, userID, p.ID); err != nil {
			return false, storeErr(err, "clear activity", "user", userID)
		}
		ob.cleared = append(ob.cleared, activityRef{userID: userID, processID: p.ID})
	}

	payload := terminatedPayload{
		ProcessID:      p.ID,
		RequestID:      p.RequestID,
		Status:         p.Status,
		Reason:         reason,
		EstimatedPrice: p.EstimatedPrice,
		AmountPaid:     p.AmountPaid,
		AmountCharged:  p.AmountCharged,
		ActorID:        actorID,
	}
	for _, userID := range []uuid.UUID{p.VehicleOwnerID, p.ChargerOwnerID} {
		if err := s.notify(ctx, tx, ob, userID, uuidPtr(p.RequestID), models.EventProcessTerminated, payload); err != nil {
			return false, err
		}
	}

	fields := []zap.Field{
		zap.String("process_id", p.ID.String()),
		zap.String("request_id", p.RequestID.String()),
		zap.String("status", string(target)),
		zap.String("reason", reason),
	}
	if actorID != nil {
		fields = append(fields, zap.String("actor_id", actorID.String()))
	}
	s.logger.Info("process terminated", fields...)
	return true, nil
}

type terminatedPayload struct {
	ProcessID      uuid.UUID            `json:"process_id"`
	RequestID      uuid.UUID            `json:"request_id"`
	Status         models.ProcessStatus `json:"status"`
	Reason         string               `json:"reason"`
	EstimatedPrice int64                `json:"estimated_price"`
	AmountPaid     int64                `json:"amount_paid"`
	AmountCharged  int64                `json:"amount_charged"`
	ActorID        *uuid.UUID           `json:"actor_id,omitempty"`
}

// ConfirmByVehicleOwner records that the session was delivered and completes the process.
func (s *ProcessService) ConfirmByVehicleOwner(ctx context.Context, processID, actorID uuid.UUID) (*models.Process, error) {
	const op = "confirm process"
	var (
		out *models.Process
		ob  outbox
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.Processes().Get(ctx, processID)
		if err != nil {
			return storeErr(err, op, "process", processID)
		}
		if actorID != p.VehicleOwnerID {
			return apperr.New(apperr.ErrForbidden, op, "process", p.ID.String(), "only the vehicle owner may confirm")
		}
		if p.Status != models.ProcessInProgress {
			return apperr.New(apperr.ErrInvalidState, op, "process", p.ID.String(), "process is "+string(p.Status))
		}
		if p.PaymentStatus != models.PaymentPaid {
			return apperr.New(apperr.ErrInvalidState, op, "process", p.ID.String(), "payment not settled")
		}

		now := s.now()
		p.VehicleOwnerConfirmedAt = &now
		if err := tx.Processes().Save(ctx, p); err != nil {
			return storeErr(err, op, "process", p.ID)
		}
		if _, err := s.terminateInTx(ctx, tx, &ob, p, models.ProcessCompleted, ReasonCompleted, &actorID); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, &ob)
	return out, nil
}

// OwnerDecision records the charger owner's go/no-go. A no-go rejects the process and refunds
// any settled payment.
func (s *ProcessService) OwnerDecision(ctx context.Context, processID, actorID uuid.UUID, approve bool) (*models.Process, error) {
	const op = "owner decision"
	var (
		out *models.Process
		ob  outbox
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.Processes().Get(ctx, processID)
		if err != nil {
			return storeErr(err, op, "process", processID)
		}
		if actorID != p.ChargerOwnerID {
			return apperr.New(apperr.ErrForbidden, op, "process", p.ID.String(), "only the charger owner may decide")
		}
		if p.Status != models.ProcessPending && p.Status != models.ProcessInProgress {
			return apperr.New(apperr.ErrInvalidState, op, "process", p.ID.String(), "process is "+string(p.Status))
		}

		if !approve {
			if _, err := s.terminateInTx(ctx, tx, &ob, p, models.ProcessRejected, ReasonRejectedByOwner, &actorID); err != nil {
				return err
			}
			out = p
			return nil
		}

		now := s.now()
		p.OwnerApprovedAt = &now
		if err := tx.Processes().Save(ctx, p); err != nil {
			return storeErr(err, op, "process", p.ID)
		}
		out = p
		return s.notify(ctx, tx, &ob, p.VehicleOwnerID, uuidPtr(p.RequestID), models.EventOwnerDecision, map[string]interface{}{
			"process_id": p.ID,
			"approved":   true,
		})
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, &ob)

	if !approve {
		s.refundIfSettled(ctx, out)
	}
	return out, nil
}

// SubmitRating stores one participant's rating of the other after completion.
func (s *ProcessService) SubmitRating(ctx context.Context, processID, actorID uuid.UUID, score int, comment string) (*models.Process, error) {
	const op = "submit rating"
	if score < 1 || score > 5 {
		return nil, apperr.New(apperr.ErrInvalidArgument, op, "process", processID.String(), "score must be within [1,5]")
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > maxCommentLength {
		return nil, apperr.New(apperr.ErrInvalidArgument, op, "process", processID.String(), "comment too long")
	}

	var (
		out *models.Process
		ob  outbox
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.Processes().Get(ctx, processID)
		if err != nil {
			return storeErr(err, op, "process", processID)
		}
		if !p.IsParticipant(actorID) {
			return apperr.New(apperr.ErrForbidden, op, "process", p.ID.String(), "actor is not a participant")
		}
		if p.Status != models.ProcessCompleted {
			return apperr.New(apperr.ErrInvalidState, op, "process", p.ID.String(), "process is "+string(p.Status))
		}

		rating := score
		recipient := p.ChargerOwnerID
		if actorID == p.VehicleOwnerID {
			if p.VehicleOwnerRating != nil {
				return apperr.New(apperr.ErrInvalidState, op, "process", p.ID.String(), "already rated")
			}
			p.VehicleOwnerRating = &rating
			p.VehicleOwnerComment = comment
		} else {
			if p.ChargerOwnerRating != nil {
				return apperr.New(apperr.ErrInvalidState, op, "process", p.ID.String(), "already rated")
			}
			p.ChargerOwnerRating = &rating
			p.ChargerOwnerComment = comment
			recipient = p.VehicleOwnerID
		}
		if err := tx.Processes().Save(ctx, p); err != nil {
			return storeErr(err, op, "process", p.ID)
		}
		out = p
		return s.notify(ctx, tx, &ob, recipient, uuidPtr(p.RequestID), models.EventProcessRated, map[string]interface{}{
			"process_id": p.ID,
			"score":      score,
		})
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, &ob)
	return out, nil
}

// GetProcess returns a process visible to actorID.
func (s *ProcessService) GetProcess(ctx context.Context, processID, actorID uuid.UUID) (*models.Process, error) {
	var out *models.Process
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.Processes().Get(ctx, processID)
		if err != nil {
			return storeErr(err, "get", "process", processID)
		}
		if !p.IsParticipant(actorID) {
			return apperr.New(apperr.ErrForbidden, "get", "process", p.ID.String(), "actor is not a participant")
		}
		out = p
		return nil
	})
	return out, err
}

// ListNotifications returns the actor's latest notifications.
func (s *ProcessService) ListNotifications(ctx context.Context, actorID uuid.UUID, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Notifications().ListByUser(ctx, actorID, limit)
		return err
	})
	return out, err
}
