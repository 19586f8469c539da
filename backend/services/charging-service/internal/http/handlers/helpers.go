package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargeshare/backend/services/charging-service/internal/apperr"
	"chargeshare/backend/services/charging-service/internal/http/middleware"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrForbidden:
		return http.StatusForbidden
	case apperr.ErrInvalidState, apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrInvalidArgument:
		return http.StatusBadRequest
	case apperr.ErrPaymentInitiationFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Detail != "" {
		writeError(w, status, appErr.Detail)
		return
	}
	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func actorID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	return actor.ID, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}

// jsonDecode is lenient about unknown fields; gateway payloads carry more than we model.
func jsonDecode(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
