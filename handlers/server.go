// Package handlers is the HTTP surface: parse the request, call a service,
// write the response. Handlers carry no business logic and never touch the
// database directly.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/services"
)

// ServerHandler serves the server catalogue (C6) endpoints: register, read,
// list, update, delete, and the live status view.
type ServerHandler struct {
	servers services.ServerManager
}

// NewServerHandler constructs a ServerHandler.
func NewServerHandler(servers services.ServerManager) *ServerHandler {
	return &ServerHandler{servers: servers}
}

// Register handles POST /api/servers.
func (h *ServerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	operator, ok := OperatorFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, r, http.StatusUnauthorized, "operator not found in context")
		return
	}

	server, err := h.servers.Register(r.Context(), req, operator.ID)
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusCreated, server)
}

// Get handles GET /api/servers/{serverId}.
func (h *ServerHandler) Get(w http.ResponseWriter, r *http.Request) {
	server, err := h.servers.Get(r.Context(), r.PathValue("serverId"))
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, server)
}

// List handles GET /api/servers?status=&owner=&tag=&page=&limit=.
func (h *ServerHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := models.ServerListFilter{
		Page:  intQuery(r, "page", 1),
		Limit: intQuery(r, "limit", 50),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := models.ServerStatus(v)
		filter.Status = &status
	}
	if v := r.URL.Query().Get("owner"); v != "" {
		filter.Owner = &v
	}
	if v := r.URL.Query().Get("tag"); v != "" {
		filter.Tag = &v
	}

	servers, total, err := h.servers.List(r.Context(), filter)
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, map[string]any{
		"servers": servers,
		"total":   total,
		"page":    filter.Page,
		"limit":   filter.Limit,
	})
}

// Update handles PATCH /api/servers/{serverId}. Requires PermServerUpdate,
// enforced by the permission middleware chain at the route level.
func (h *ServerHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	server, err := h.servers.Update(r.Context(), r.PathValue("serverId"), req)
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, server)
}

// Delete handles DELETE /api/servers/{serverId}. Requires PermServerDelete.
func (h *ServerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.servers.Delete(r.Context(), r.PathValue("serverId")); err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, map[string]string{"message": "server deleted"})
}

// Status handles GET /api/servers/{serverId}/status: the live view composed
// from the Hub rather than the last persisted write.
func (h *ServerHandler) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.servers.Status(r.Context(), r.PathValue("serverId"))
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, view)
}

// intQuery parses a positive-integer query parameter, falling back to def
// on absence or a malformed value.
func intQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
