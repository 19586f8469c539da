package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargeshare/backend/services/charging-service/internal/models"
)

// FeesService reads and updates platform fees.
type FeesService interface {
	Get(ctx context.Context) (*models.FeesConfig, error)
	Update(ctx context.Context, actorID uuid.UUID, minimumFee, percentage float64) (*models.FeesConfig, error)
}

// FeesHandlers exposes GET|PUT /fees.
type FeesHandlers struct {
	svc    FeesService
	logger *zap.Logger
}

// NewFeesHandlers builds handlers.
func NewFeesHandlers(svc FeesService, logger *zap.Logger) *FeesHandlers {
	return &FeesHandlers{svc: svc, logger: logger}
}

type feesBody struct {
	MinimumFee float64 `json:"minimum_fee"`
	Percentage float64 `json:"percentage"`
}

func (h *FeesHandlers) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.Get(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *FeesHandlers) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var body feesBody
	if !decodeJSON(w, r, &body) {
		return
	}
	cfg, err := h.svc.Update(r.Context(), actor, body.MinimumFee, body.Percentage)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
