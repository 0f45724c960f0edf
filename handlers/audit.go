package handlers

import (
	"net/http"
	"time"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/repository"
)

// AuditHandler serves the read side of the audit log. Writes only ever
// happen from within a service's auditRecorder — there is no POST route.
type AuditHandler struct {
	repo repository.AuditRepository
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(repo repository.AuditRepository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

// List handles GET /api/audit?serverId=&userId=&operation=&since=&until=&page=&limit=.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.AuditFilter{
		Page:  intQuery(r, "page", 1),
		Limit: intQuery(r, "limit", 50),
	}
	if v := q.Get("serverId"); v != "" {
		filter.ServerID = &v
	}
	if v := q.Get("userId"); v != "" {
		filter.UserID = &v
	}
	if v := q.Get("operation"); v != "" {
		filter.Operation = &v
	}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Since = &t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Until = &t
		}
	}

	logs, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, map[string]any{
		"logs":  logs,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// ListForServer handles GET /api/servers/{serverId}/audit.
func (h *AuditHandler) ListForServer(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("serverId")
	filter := models.AuditFilter{
		ServerID: &serverID,
		Page:     intQuery(r, "page", 1),
		Limit:    intQuery(r, "limit", 50),
	}
	logs, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, map[string]any{
		"logs":  logs,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}
