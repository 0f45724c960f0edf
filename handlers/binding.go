package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/services"
)

// BindingHandler serves the group-binding CRUD endpoints (C9).
type BindingHandler struct {
	bindings services.BindingService
}

// NewBindingHandler constructs a BindingHandler.
func NewBindingHandler(bindings services.BindingService) *BindingHandler {
	return &BindingHandler{bindings: bindings}
}

// Create handles POST /api/bindings.
func (h *BindingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	operator, ok := OperatorFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, r, http.StatusUnauthorized, "operator not found in context")
		return
	}

	binding, err := h.bindings.Create(r.Context(), req, operator.ID)
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusCreated, binding)
}

// Get handles GET /api/bindings/{bindingId}.
func (h *BindingHandler) Get(w http.ResponseWriter, r *http.Request) {
	binding, err := h.bindings.Get(r.Context(), r.PathValue("bindingId"))
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, binding)
}

// ListForServer handles GET /api/servers/{serverId}/bindings.
func (h *BindingHandler) ListForServer(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.bindings.ListByServer(r.Context(), r.PathValue("serverId"))
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, map[string]any{"bindings": bindings})
}

// ListForGroup handles GET /api/groups/{groupId}/bindings.
func (h *BindingHandler) ListForGroup(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.bindings.ListByGroup(r.Context(), r.PathValue("groupId"))
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, map[string]any{"bindings": bindings})
}

// SetStatus handles PATCH /api/bindings/{bindingId}/status. Body:
// {"status": "inactive"}.
func (h *BindingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.BindingStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.bindings.SetStatus(r.Context(), r.PathValue("bindingId"), req.Status); err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, map[string]string{"message": "status updated"})
}

// Delete handles DELETE /api/bindings/{bindingId}.
func (h *BindingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.bindings.Delete(r.Context(), r.PathValue("bindingId")); err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, map[string]string{"message": "binding deleted"})
}
