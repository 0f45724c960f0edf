package handlers

import (
	"net/http"

	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/ws"
)

// HealthHandler serves the unauthenticated liveness/readiness endpoints.
type HealthHandler struct {
	hub *ws.Hub
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(hub *ws.Hub) *HealthHandler {
	return &HealthHandler{hub: hub}
}

// Live handles GET /healthz: the process is up and serving requests.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	pkg.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz: reports the hub's connected-server count so an
// operator dashboard or load balancer can see the fleet is actually wired
// up, not just that the HTTP listener answers.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	online := h.hub.OnlineServerIDs()
	pkg.JSON(w, r, http.StatusOK, map[string]any{
		"status":        "ok",
		"onlineServers": len(online),
	})
}
