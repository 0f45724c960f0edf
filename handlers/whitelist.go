package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/services"
)

// WhitelistHandler serves the whitelist half of C8.
type WhitelistHandler struct {
	whitelist services.WhitelistService
}

// NewWhitelistHandler constructs a WhitelistHandler.
func NewWhitelistHandler(whitelist services.WhitelistService) *WhitelistHandler {
	return &WhitelistHandler{whitelist: whitelist}
}

type playerRequest struct {
	Player string `json:"player"`
}

// Add handles POST /api/servers/{serverId}/whitelist. 202 plus
// {"enqueued":true} when the target server is offline, 200 otherwise.
func (h *WhitelistHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, h.whitelist.Add)
}

// Remove handles DELETE /api/servers/{serverId}/whitelist/{player}.
func (h *WhitelistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	operator, ok := OperatorFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, r, http.StatusUnauthorized, "operator not found in context")
		return
	}
	serverID := r.PathValue("serverId")
	player := r.PathValue("player")
	if player == "" {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "player is required")
		return
	}

	enqueued, err := h.whitelist.Remove(r.Context(), operator.ID, serverID, player)
	if err != nil && err != pkg.ErrServerOffline {
		pkg.Error(w, r, err)
		return
	}
	status := http.StatusOK
	if enqueued {
		status = http.StatusAccepted
	}
	pkg.JSON(w, r, status, map[string]any{"player": player, "enqueued": enqueued})
}

// Sync handles GET /api/servers/{serverId}/whitelist: the connector's live
// whitelist, fetched through the single-flight request path.
func (h *WhitelistHandler) Sync(w http.ResponseWriter, r *http.Request) {
	players, err := h.whitelist.Sync(r.Context(), r.PathValue("serverId"))
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, map[string]any{"players": players})
}

func (h *WhitelistHandler) dispatch(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, operatorID, serverID, player string) (bool, error)) {
	var req playerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Player == "" {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "player is required")
		return
	}

	operator, ok := OperatorFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, r, http.StatusUnauthorized, "operator not found in context")
		return
	}
	serverID := r.PathValue("serverId")

	enqueued, err := op(r.Context(), operator.ID, serverID, req.Player)
	if err != nil && err != pkg.ErrServerOffline {
		pkg.Error(w, r, err)
		return
	}
	status := http.StatusOK
	if enqueued {
		status = http.StatusAccepted
	}
	pkg.JSON(w, r, status, map[string]any{"player": req.Player, "enqueued": enqueued})
}
