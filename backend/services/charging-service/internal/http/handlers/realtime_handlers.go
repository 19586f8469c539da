package handlers

import (
	"net/http"

	"github.com/google/uuid"
)

// Upgrader registers a websocket connection for a user.
type Upgrader interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID uuid.UUID)
}

// NewWSHandler handles GET /ws.
func NewWSHandler(hub Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}
		hub.ServeWS(w, r, actor)
	}
}

// NewHealthHandler returns liveness probe.
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
