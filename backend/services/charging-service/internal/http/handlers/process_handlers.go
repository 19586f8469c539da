package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargeshare/backend/services/charging-service/internal/models"
	"chargeshare/backend/services/charging-service/internal/payments"
)

// ProcessService is the process engine used by handlers.
type ProcessService interface {
	GetProcess(ctx context.Context, processID, actorID uuid.UUID) (*models.Process, error)
	ConfirmByVehicleOwner(ctx context.Context, processID, actorID uuid.UUID) (*models.Process, error)
	OwnerDecision(ctx context.Context, processID, actorID uuid.UUID, approve bool) (*models.Process, error)
	SubmitRating(ctx context.Context, processID, actorID uuid.UUID, score int, comment string) (*models.Process, error)
	RetryPaymentInitiation(ctx context.Context, processID, actorID uuid.UUID, method payments.PaymentMethod) (*models.Process, error)
	RefundProcess(ctx context.Context, processID, actorID uuid.UUID) (*models.Process, error)
	ListNotifications(ctx context.Context, actorID uuid.UUID, limit int) ([]models.Notification, error)
	HandlePaymentCallback(ctx context.Context, cb payments.TransactionCallback, signature string) error
}

// ProcessHandlers exposes process endpoints.
type ProcessHandlers struct {
	svc    ProcessService
	logger *zap.Logger
}

// NewProcessHandlers builds handlers.
func NewProcessHandlers(svc ProcessService, logger *zap.Logger) *ProcessHandlers {
	return &ProcessHandlers{svc: svc, logger: logger}
}

func (h *ProcessHandlers) respond(w http.ResponseWriter, p *models.Process, err error) {
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Get handles GET /processes/{id}.
func (h *ProcessHandlers) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPath(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetProcess(r.Context(), id, actor)
	h.respond(w, p, err)
}

// Confirm handles POST /processes/{id}/confirm.
func (h *ProcessHandlers) Confirm(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPath(w, r)
	if !ok {
		return
	}
	p, err := h.svc.ConfirmByVehicleOwner(r.Context(), id, actor)
	h.respond(w, p, err)
}

type decisionBody struct {
	Approve bool `json:"approve"`
}

// Decision handles POST /processes/{id}/decision.
func (h *ProcessHandlers) Decision(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPath(w, r)
	if !ok {
		return
	}
	var body decisionBody
	if !decodeJSON(w, r, &body) {
		return
	}
	p, err := h.svc.OwnerDecision(r.Context(), id, actor, body.Approve)
	h.respond(w, p, err)
}

type ratingBody struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// Rate handles POST /processes/{id}/rating.
func (h *ProcessHandlers) Rate(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPath(w, r)
	if !ok {
		return
	}
	var body ratingBody
	if !decodeJSON(w, r, &body) {
		return
	}
	p, err := h.svc.SubmitRating(r.Context(), id, actor, body.Score, body.Comment)
	h.respond(w, p, err)
}

// RetryPayment handles POST /processes/{id}/retry-payment.
func (h *ProcessHandlers) RetryPayment(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPath(w, r)
	if !ok {
		return
	}
	method, ok := decodeMethod(w, r, h.logger)
	if !ok {
		return
	}
	p, err := h.svc.RetryPaymentInitiation(r.Context(), id, actor, method)
	h.respond(w, p, err)
}

// Refund handles POST /processes/{id}/refund.
func (h *ProcessHandlers) Refund(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPath(w, r)
	if !ok {
		return
	}
	p, err := h.svc.RefundProcess(r.Context(), id, actor)
	h.respond(w, p, err)
}

// Notifications handles GET /notifications.
func (h *ProcessHandlers) Notifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListNotifications(r.Context(), actor, queryLimit(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

// PaymentCallback handles POST /payments/callback?hmac=... from the gateway.
func (h *ProcessHandlers) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var envelope payments.CallbackEnvelope
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := jsonDecode(r, &envelope); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := h.svc.HandlePaymentCallback(r.Context(), envelope.Obj, r.URL.Query().Get("hmac")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
