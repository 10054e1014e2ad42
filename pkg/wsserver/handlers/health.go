package handlers

import (
	"net/http"

	"github.com/marmos91/relayfs/pkg/registry"
)

// HealthHandler serves unauthenticated liveness/readiness probes.
type HealthHandler struct {
	registry *registry.Registry
}

func NewHealthHandler(reg *registry.Registry) *HealthHandler {
	return &HealthHandler{registry: reg}
}

// Liveness handles GET /health: is the process running at all.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, map[string]string{"status": "ok"})
}

// Readiness handles GET /health/ready: is the session registry usable. There
// is no dependency to fail open on here (no database connection, no remote
// store), so readiness degrades only if the registry was never wired in.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "registry not initialized")
		return
	}
	WriteJSONOK(w, map[string]any{
		"status":         "ok",
		"online_users":   h.registry.OnlineUsers(),
		"online_clients": h.registry.OnlineClients(),
	})
}
