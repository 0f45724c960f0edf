package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/services"
)

// PlayerHandler serves the player half of C8.
type PlayerHandler struct {
	players services.PlayerService
}

// NewPlayerHandler constructs a PlayerHandler.
func NewPlayerHandler(players services.PlayerService) *PlayerHandler {
	return &PlayerHandler{players: players}
}

// ListOnline handles GET /api/servers/{serverId}/players.
func (h *PlayerHandler) ListOnline(w http.ResponseWriter, r *http.Request) {
	players, err := h.players.ListOnline(r.Context(), r.PathValue("serverId"))
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, map[string]any{"players": players})
}

// Lookup handles GET /api/players/{identifier}: cross-server cache lookup
// by uuid or name.
func (h *PlayerHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	entry, err := h.players.Lookup(r.Context(), r.PathValue("identifier"))
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, entry)
}

// Kick handles POST /api/servers/{serverId}/players/{player}/kick.
func (h *PlayerHandler) Kick(w http.ResponseWriter, r *http.Request) {
	operator, ok := OperatorFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, r, http.StatusUnauthorized, "operator not found in context")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	serverID := r.PathValue("serverId")
	player := r.PathValue("player")
	if err := h.players.Kick(r.Context(), operator.ID, serverID, player, req.Reason); err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, map[string]string{"message": "kick dispatched"})
}
