package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargeshare/backend/services/charging-service/internal/apperr"
	"chargeshare/backend/services/charging-service/internal/models"
	"chargeshare/backend/services/charging-service/internal/payments"
	"chargeshare/backend/services/charging-service/internal/store"
)

// placeholder accepted by the gateway for billing fields we do not collect
const billingNA = "NA"

type paymentPayload struct {
	ProcessID     uuid.UUID            `json:"process_id"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	PaymentMethod string               `json:"payment_method,omitempty"`
	RedirectURL   string               `json:"redirect_url,omitempty"`
	AmountPaid    int64                `json:"amount_paid"`
	TransactionID string               `json:"transaction_id,omitempty"`
}

func paymentUpdate(p *models.Process) paymentPayload {
	return paymentPayload{
		ProcessID:     p.ID,
		PaymentStatus: p.PaymentStatus,
		PaymentMethod: p.PaymentMethod,
		RedirectURL:   p.RedirectURL,
		AmountPaid:    p.AmountPaid,
		TransactionID: p.TransactionID,
	}
}

// initiatePayment calls the gateway outside any unit of work and persists the references in a
// follow-up one. A gateway failure leaves the process untouched.
func (s *ProcessService) initiatePayment(ctx context.Context, p *models.Process, method payments.PaymentMethod) (*models.Process, error) {
	const op = "initiate payment"
	if method == nil {
		method = payments.Card{}
	}
	billing := payments.BillingData{FirstName: billingNA, LastName: billingNA, Email: billingNA, PhoneNumber: billingNA}
	if w, ok := method.(payments.Wallet); ok {
		billing.PhoneNumber = w.Phone
	}

	result, err := payments.Checkout(ctx, s.gateway, s.integrations, payments.CheckoutRequest{
		AmountCents:     p.EstimatedPrice,
		MerchantOrderID: uuid.NewString(),
		Currency:        s.opts.Currency,
		Method:          method,
		Billing:         billing,
	})
	if err != nil {
		s.logger.Warn("payment initiation failed",
			zap.String("process_id", p.ID.String()),
			zap.String("method", method.Kind()),
			zap.Error(err),
		)
		return nil, apperr.Wrap(apperr.ErrPaymentInitiationFailed, op, "process", p.ID.String(), err)
	}

	var (
		out *models.Process
		ob  outbox
	)
	err = s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.Processes().Get(ctx, p.ID)
		if err != nil {
			return storeErr(err, op, "process", p.ID)
		}
		if current.Status != models.ProcessInProgress {
			return apperr.New(apperr.ErrInvalidState, op, "process", current.ID.String(), "process is "+string(current.Status))
		}
		current.PaymentMethod = result.Method
		current.PaymentStatus = models.PaymentInitiated
		current.GatewayOrderID = result.OrderID
		current.PaymentKey = result.PaymentKey
		current.RedirectURL = result.RedirectURL
		if err := tx.Processes().Save(ctx, current); err != nil {
			return storeErr(err, op, "process", current.ID)
		}
		out = current
		return s.notify(ctx, tx, &ob, current.VehicleOwnerID, uuidPtr(current.RequestID), models.EventPaymentUpdated, paymentUpdate(current))
	})
	if err != nil {
		s.logger.Warn("payment references not persisted",
			zap.String("process_id", p.ID.String()),
			zap.String("order_id", result.OrderID),
			zap.Error(err),
		)
		return nil, err
	}
	s.flush(ctx, &ob)

	s.logger.Info("payment initiated",
		zap.String("process_id", out.ID.String()),
		zap.String("order_id", out.GatewayOrderID),
		zap.String("method", out.PaymentMethod),
	)
	return out, nil
}

// RetryPaymentInitiation re-issues gateway initiation for an in-progress process that holds no
// usable payment reference.
func (s *ProcessService) RetryPaymentInitiation(ctx context.Context, processID, actorID uuid.UUID, method payments.PaymentMethod) (*models.Process, error) {
	const op = "retry payment"
	var p *models.Process
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		p, err = tx.Processes().Get(ctx, processID)
		if err != nil {
			return storeErr(err, op, "process", processID)
		}
		if actorID != p.VehicleOwnerID {
			return apperr.New(apperr.ErrForbidden, op, "process", p.ID.String(), "only the vehicle owner may pay")
		}
		if p.Status != models.ProcessInProgress {
			return apperr.New(apperr.ErrInvalidState, op, "process", p.ID.String(), "process is "+string(p.Status))
		}
		if p.HasPaymentReference() && p.PaymentStatus != models.PaymentFailed {
			return apperr.New(apperr.ErrInvalidState, op, "process", p.ID.String(), "payment already initiated")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.initiatePayment(ctx, p, method)
}

// callbackStatus maps a gateway transaction state onto a payment status.
func callbackStatus(cb payments.TransactionCallback) models.PaymentStatus {
	switch {
	case cb.Settled():
		return models.PaymentPaid
	case cb.IsRefunded:
		return models.PaymentRefunded
	case cb.IsVoided:
		return models.PaymentVoided
	case cb.Pending && !cb.ErrorOccured:
		return models.PaymentInitiated
	}
	return models.PaymentFailed
}

// HandlePaymentCallback reconciles a gateway transaction callback with its process. It never
// terminates the process. Updates that would move the payment backwards are ignored, and a
// settlement landing on an aborted or rejected process is reversed after commit.
func (s *ProcessService) HandlePaymentCallback(ctx context.Context, cb payments.TransactionCallback, signature string) error {
	const op = "payment callback"
	txID := payments.FormatID(cb.ID)
	orderID := payments.FormatID(cb.Order.ID)
	if s.gateway == nil || !s.gateway.VerifyHmac(cb, signature) {
		return apperr.New(apperr.ErrForbidden, op, "transaction", txID, "signature mismatch")
	}

	key := cb.DeliveryKey()
	if s.dedupe != nil {
		first, err := s.dedupe.FirstDelivery(ctx, key)
		if err != nil {
			s.logger.Warn("callback dedupe unavailable", zap.String("transaction_id", txID), zap.Error(err))
		} else if !first {
			s.logger.Info("duplicate payment callback dropped", zap.String("transaction_id", txID), zap.String("delivery", key))
			return nil
		}
	}

	var (
		ob      outbox
		settled *models.Process
	)
	next := callbackStatus(cb)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.Processes().GetByOrderID(ctx, orderID)
		if err != nil {
			return storeErrRef(err, op, "order", orderID)
		}
		if !p.PaymentStatus.CanMoveTo(next) {
			s.logger.Info("payment callback ignored",
				zap.String("process_id", p.ID.String()),
				zap.String("transaction_id", txID),
				zap.String("payment_status", string(p.PaymentStatus)),
				zap.String("callback_status", string(next)),
			)
			return nil
		}
		p.PaymentStatus = next
		if next == models.PaymentPaid {
			p.AmountPaid = cb.AmountCents
		}
		p.TransactionID = txID
		if err := tx.Processes().Save(ctx, p); err != nil {
			return storeErr(err, op, "process", p.ID)
		}
		for _, userID := range []uuid.UUID{p.VehicleOwnerID, p.ChargerOwnerID} {
			if err := s.notify(ctx, tx, &ob, userID, uuidPtr(p.RequestID), models.EventPaymentUpdated, paymentUpdate(p)); err != nil {
				return err
			}
		}
		if next == models.PaymentPaid && p.Status.IsTerminal() && p.Status != models.ProcessCompleted {
			settled = p
		}
		s.logger.Info("payment reconciled",
			zap.String("process_id", p.ID.String()),
			zap.String("transaction_id", txID),
			zap.String("payment_status", string(p.PaymentStatus)),
			zap.Int64("amount_cents", cb.AmountCents),
		)
		return nil
	})
	if err != nil {
		if s.dedupe != nil {
			if ferr := s.dedupe.Forget(ctx, key); ferr != nil {
				s.logger.Warn("failed to release callback key", zap.String("transaction_id", txID), zap.Error(ferr))
			}
		}
		return err
	}
	s.flush(ctx, &ob)

	if settled != nil {
		s.logger.Info("payment settled after process ended, reversing",
			zap.String("process_id", settled.ID.String()),
			zap.String("status", string(settled.Status)),
		)
		s.refundIfSettled(ctx, settled)
	}
	return nil
}

// RefundProcess returns the unused part of a settled payment on a terminated process. When the
// gateway refuses a refund the transaction is voided instead.
func (s *ProcessService) RefundProcess(ctx context.Context, processID, actorID uuid.UUID) (*models.Process, error) {
	return s.refund(ctx, processID, &actorID)
}

func (s *ProcessService) refund(ctx context.Context, processID uuid.UUID, actorID *uuid.UUID) (*models.Process, error) {
	const op = "refund"
	var p *models.Process
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		p, err = tx.Processes().Get(ctx, processID)
		if err != nil {
			return storeErr(err, op, "process", processID)
		}
		if actorID != nil && !p.IsParticipant(*actorID) {
			return apperr.New(apperr.ErrForbidden, op, "process", p.ID.String(), "actor is not a participant")
		}
		if !p.Status.IsTerminal() {
			return apperr.New(apperr.ErrInvalidState, op, "process", p.ID.String(), "process is "+string(p.Status))
		}
		if p.PaymentStatus != models.PaymentPaid || p.TransactionID == "" {
			return apperr.New(apperr.ErrInvalidState, op, "process", p.ID.String(), "no settled payment")
		}
		if p.AmountPaid-p.AmountCharged <= 0 {
			return apperr.New(apperr.ErrInvalidState, op, "process", p.ID.String(), "nothing to refund")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !s.refunds.acquire(p.ID) {
		return nil, apperr.New(apperr.ErrConflict, op, "process", p.ID.String(), "refund already in flight")
	}
	defer s.refunds.release(p.ID)

	if s.gateway == nil {
		return nil, apperr.Wrap(apperr.ErrPaymentInitiationFailed, op, "process", p.ID.String(), errors.New("gateway not configured"))
	}

	amount := p.AmountPaid - p.AmountCharged
	status := models.PaymentRefunded
	action, err := s.gateway.Refund(ctx, p.TransactionID, amount)
	if err != nil || !action.Success {
		s.logger.Warn("refund refused, voiding", zap.String("process_id", p.ID.String()), zap.Error(err))
		action, err = s.gateway.Void(ctx, p.TransactionID)
		if err == nil && !action.Success {
			err = errors.New("void not successful")
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrPaymentInitiationFailed, op, "process", p.ID.String(), err)
		}
		status = models.PaymentVoided
	}

	var (
		out *models.Process
		ob  outbox
	)
	err = s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.Processes().Get(ctx, p.ID)
		if err != nil {
			return storeErr(err, op, "process", p.ID)
		}
		current.PaymentStatus = status
		if err := tx.Processes().Save(ctx, current); err != nil {
			return storeErr(err, op, "process", current.ID)
		}
		out = current
		for _, userID := range []uuid.UUID{current.VehicleOwnerID, current.ChargerOwnerID} {
			if err := s.notify(ctx, tx, &ob, userID, uuidPtr(current.RequestID), models.EventPaymentUpdated, paymentUpdate(current)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, &ob)

	fields := []zap.Field{
		zap.String("process_id", out.ID.String()),
		zap.String("payment_status", string(status)),
		zap.Int64("amount_cents", amount),
	}
	if actorID != nil {
		fields = append(fields, zap.String("actor_id", actorID.String()))
	}
	s.logger.Info("payment reversed", fields...)
	return out, nil
}

// refundIfSettled reverses a settled payment after a non-completed exit. Failures are logged;
// RefundProcess remains available to retry.
func (s *ProcessService) refundIfSettled(ctx context.Context, p *models.Process) {
	if p == nil || !p.Status.IsTerminal() || p.Status == models.ProcessCompleted || p.PaymentStatus != models.PaymentPaid {
		return
	}
	if _, err := s.refund(ctx, p.ID, nil); err != nil {
		s.logger.Warn("automatic refund failed", zap.String("process_id", p.ID.String()), zap.Error(err))
	}
}
