package httpserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httpserver "chargeshare/backend/services/charging-service/internal/http"
	"chargeshare/backend/services/charging-service/internal/http/handlers"
	"chargeshare/backend/services/charging-service/internal/http/middleware"
	"chargeshare/backend/services/charging-service/internal/models"
	"chargeshare/backend/services/charging-service/internal/payments"
	"chargeshare/backend/services/charging-service/internal/service"
	"chargeshare/backend/services/charging-service/internal/store/memstore"
)

const jwtSecret = "test-secret"

type harness struct {
	handler      http.Handler
	vehicleOwner uuid.UUID
	chargerOwner uuid.UUID
	chargerID    uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()
	st := memstore.New()
	h := &harness{vehicleOwner: uuid.New(), chargerOwner: uuid.New(), chargerID: uuid.New()}
	st.PutUser(models.User{ID: h.vehicleOwner, IsAvailable: true})
	st.PutUser(models.User{ID: h.chargerOwner, IsAvailable: true})
	st.PutCharger(models.Charger{ID: h.chargerID, OwnerID: h.chargerOwner, PricePerKWh: 300, IsActive: true})

	feesSvc := service.NewFeesService(st, 5, 10, nil, logger)
	processes := service.NewProcessService(service.ProcessServiceConfig{
		UnitOfWork:   st,
		Gateway:      payments.NewMockGateway("hmac", logger),
		Integrations: payments.Integrations{Card: 1, Wallet: 2},
		Logger:       logger,
	})
	requests := service.NewRequestService(service.RequestServiceConfig{
		UnitOfWork: st,
		Fees:       feesSvc,
		Processes:  processes,
		Logger:     logger,
	})

	h.handler = httpserver.NewRouter(httpserver.Routes{
		Requests:  handlers.NewRequestHandlers(requests, logger),
		Processes: handlers.NewProcessHandlers(processes, logger),
		Fees:      handlers.NewFeesHandlers(feesSvc, logger),
		Health:    handlers.NewHealthHandler(),
	}, middleware.Auth(jwtSecret))
	return h
}

func token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		UserID: userID.String(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := tok.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

func (h *harness) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/health", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestRequestsRequireToken(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/requests", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/requests", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	vo := token(t, h.vehicleOwner, "")
	co := token(t, h.chargerOwner, "")

	rec := h.do(t, http.MethodPost, "/requests", vo, map[string]interface{}{
		"charger_id":  h.chargerID,
		"kw_needed":   10,
		"battery_pct": 40,
		"latitude":    30,
		"longitude":   31,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.ChargingRequest
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.EqualValues(t, 3500, created.EstimatedPrice)

	rec = h.do(t, http.MethodPost, "/requests/"+created.ID.String()+"/accept", vo, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/requests/"+created.ID.String()+"/accept", co, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/requests/"+created.ID.String()+"/reject", co, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/requests/"+created.ID.String()+"/confirm", vo, map[string]string{"payment_method": "wallet"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/requests/"+created.ID.String()+"/confirm", vo, map[string]string{"payment_method": "card"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var proc models.Process
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&proc))
	require.Equal(t, models.ProcessInProgress, proc.Status)

	rec = h.do(t, http.MethodPost, "/requests/"+created.ID.String()+"/abort", co, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/processes/"+proc.ID.String(), vo, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&proc))
	require.Equal(t, models.ProcessAborted, proc.Status)

	rec = h.do(t, http.MethodGet, "/requests/"+uuid.NewString(), vo, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(t, http.MethodGet, "/requests/not-a-uuid", vo, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeesUpdateRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	body := map[string]float64{"minimum_fee": 2, "percentage": 7}

	rec := h.do(t, http.MethodPut, "/fees", token(t, h.vehicleOwner, ""), body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPut, "/fees", token(t, uuid.New(), middleware.RoleAdmin), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/fees", token(t, h.vehicleOwner, ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg models.FeesConfig
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cfg))
	require.Equal(t, 7.0, cfg.Percentage)
}

func TestPaymentCallbackRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/payments/callback?hmac=deadbeef", "", payments.CallbackEnvelope{Type: "TRANSACTION"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}
