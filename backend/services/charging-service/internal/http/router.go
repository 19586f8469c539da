package httpserver

import (
	"net/http"
	"sort"
	"strings"

	"chargeshare/backend/services/charging-service/internal/http/handlers"
	"chargeshare/backend/services/charging-service/internal/http/middleware"
)

// Routes groups HTTP handlers.
type Routes struct {
	Requests  *handlers.RequestHandlers
	Processes *handlers.ProcessHandlers
	Fees      *handlers.FeesHandlers
	WS        http.HandlerFunc
	Health    http.HandlerFunc
}

// NewRouter registers service endpoints. Everything except health and the gateway callback
// requires a bearer token.
func NewRouter(routes Routes, auth func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	authenticated := func(handler http.HandlerFunc, extra ...func(http.Handler) http.Handler) http.Handler {
		return middleware.Chain(handler, append([]func(http.Handler) http.Handler{auth}, extra...)...)
	}

	mux.Handle("/health", method(http.MethodGet, routes.Health))

	req := routes.Requests
	mux.Handle("/requests", methods(map[string]http.Handler{
		http.MethodGet:  authenticated(req.List),
		http.MethodPost: authenticated(req.Send),
	}))
	mux.Handle("/requests/{id}", method(http.MethodGet, authenticated(req.Get)))
	mux.Handle("/requests/{id}/accept", method(http.MethodPost, authenticated(req.Accept)))
	mux.Handle("/requests/{id}/reject", method(http.MethodPost, authenticated(req.Reject)))
	mux.Handle("/requests/{id}/confirm", method(http.MethodPost, authenticated(req.Confirm)))
	mux.Handle("/requests/{id}/abort", method(http.MethodPost, authenticated(req.Abort)))

	proc := routes.Processes
	mux.Handle("/processes/{id}", method(http.MethodGet, authenticated(proc.Get)))
	mux.Handle("/processes/{id}/confirm", method(http.MethodPost, authenticated(proc.Confirm)))
	mux.Handle("/processes/{id}/decision", method(http.MethodPost, authenticated(proc.Decision)))
	mux.Handle("/processes/{id}/rating", method(http.MethodPost, authenticated(proc.Rate)))
	mux.Handle("/processes/{id}/retry-payment", method(http.MethodPost, authenticated(proc.RetryPayment)))
	mux.Handle("/processes/{id}/refund", method(http.MethodPost, authenticated(proc.Refund)))
	mux.Handle("/notifications", method(http.MethodGet, authenticated(proc.Notifications)))
	mux.Handle("/payments/callback", method(http.MethodPost, http.HandlerFunc(proc.PaymentCallback)))

	mux.Handle("/fees", methods(map[string]http.Handler{
		http.MethodGet: authenticated(routes.Fees.Get),
		http.MethodPut: authenticated(routes.Fees.Update, middleware.RequireRole(middleware.RoleAdmin)),
	}))

	if routes.WS != nil {
		mux.Handle("/ws", method(http.MethodGet, authenticated(routes.WS)))
	}
	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return methods(map[string]http.Handler{expected: handler})
}

func methods(byMethod map[string]http.Handler) http.Handler {
	allowed := make([]string, 0, len(byMethod))
	for m := range byMethod {
		allowed = append(allowed, m)
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := byMethod[r.Method]
		if !ok {
			w.Header().Set("Allow", allow)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
