package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargeshare/backend/services/charging-service/internal/apperr"
	"chargeshare/backend/services/charging-service/internal/models"
	"chargeshare/backend/services/charging-service/internal/payments"
	"chargeshare/backend/services/charging-service/internal/service"
)

// RequestService is the request state machine used by handlers.
type RequestService interface {
	SendChargingRequest(ctx context.Context, in service.SendRequestInput) (*models.ChargingRequest, error)
	Accept(ctx context.Context, requestID, actorID uuid.UUID) (*models.Process, error)
	Reject(ctx context.Context, requestID, actorID uuid.UUID) (*models.ChargingRequest, error)
	Confirm(ctx context.Context, requestID, actorID uuid.UUID, method payments.PaymentMethod) (*models.Process, error)
	Abort(ctx context.Context, requestID, actorID uuid.UUID) (*service.TerminateResult, error)
	GetRequest(ctx context.Context, requestID, actorID uuid.UUID) (*models.ChargingRequest, error)
	ListRequests(ctx context.Context, actorID uuid.UUID, limit int) ([]models.ChargingRequest, error)
}

// RequestHandlers exposes charging request endpoints.
type RequestHandlers struct {
	svc    RequestService
	logger *zap.Logger
}

// NewRequestHandlers builds handlers.
func NewRequestHandlers(svc RequestService, logger *zap.Logger) *RequestHandlers {
	return &RequestHandlers{svc: svc, logger: logger}
}

type sendRequestBody struct {
	ChargerID  uuid.UUID `json:"charger_id"`
	KWNeeded   float64   `json:"kw_needed"`
	BatteryPct float64   `json:"battery_pct"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
}

type paymentMethodBody struct {
	Method      string `json:"payment_method"`
	WalletPhone string `json:"wallet_phone"`
}

func (b paymentMethodBody) parse() (payments.PaymentMethod, error) {
	method, err := payments.ParseMethod(b.Method, b.WalletPhone)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalidArgument, "parse", "payment_method", b.Method, err)
	}
	return method, nil
}

// Send handles POST /requests.
func (h *RequestHandlers) Send(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var body sendRequestBody
	if !decodeJSON(w, r, &body) {
		return
	}
	req, err := h.svc.SendChargingRequest(r.Context(), service.SendRequestInput{
		VehicleOwnerID: actor,
		ChargerID:      body.ChargerID,
		KWNeeded:       body.KWNeeded,
		BatteryPct:     body.BatteryPct,
		Latitude:       body.Latitude,
		Longitude:      body.Longitude,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// List handles GET /requests.
func (h *RequestHandlers) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	reqs, err := h.svc.ListRequests(r.Context(), actor, queryLimit(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if reqs == nil {
		reqs = []models.ChargingRequest{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

// Get handles GET /requests/{id}.
func (h *RequestHandlers) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPath(w, r)
	if !ok {
		return
	}
	req, err := h.svc.GetRequest(r.Context(), id, actor)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Accept handles POST /requests/{id}/accept.
func (h *RequestHandlers) Accept(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPath(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Accept(r.Context(), id, actor)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Reject handles POST /requests/{id}/reject.
func (h *RequestHandlers) Reject(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPath(w, r)
	if !ok {
		return
	}
	req, err := h.svc.Reject(r.Context(), id, actor)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Confirm handles POST /requests/{id}/confirm.
func (h *RequestHandlers) Confirm(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPath(w, r)
	if !ok {
		return
	}
	method, ok := decodeMethod(w, r, h.logger)
	if !ok {
		return
	}
	p, err := h.svc.Confirm(r.Context(), id, actor, method)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Abort handles POST /requests/{id}/abort.
func (h *RequestHandlers) Abort(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPath(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Abort(r.Context(), id, actor)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Process)
}

// decodeMethod reads an optional payment method body; card is the default.
func decodeMethod(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (payments.PaymentMethod, bool) {
	var body paymentMethodBody
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return nil, false
	}
	method, err := body.parse()
	if err != nil {
		writeServiceError(w, logger, err)
		return nil, false
	}
	return method, true
}

func actorAndPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	actor, ok := actorID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, ok := pathID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return actor, id, true
}
