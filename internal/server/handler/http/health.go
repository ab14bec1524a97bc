package http

import (
	"context"
	"net/http"
)

// StoreStatus reports the state of the credential store.
type StoreStatus interface {
	// Degraded reports whether the store runs on transient storage.
	Degraded() bool
	// Len returns the number of stored users.
	Len(ctx context.Context) int
}

// HealthHandler exposes the credential store state to operators.
type HealthHandler struct {
	Store StoreStatus
}

// Health handles GET /healthz. It always answers 200; "status" is
// "degraded" while the store is on in-memory storage.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.Store.Degraded() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"users":  h.Store.Len(r.Context()),
	})
}
