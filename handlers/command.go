package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/services"
)

// CommandHandler serves console command dispatch (C8).
type CommandHandler struct {
	commands services.CommandService
}

// NewCommandHandler constructs a CommandHandler.
func NewCommandHandler(commands services.CommandService) *CommandHandler {
	return &CommandHandler{commands: commands}
}

// Execute handles POST /api/servers/{serverId}/commands. Body:
// {"command": "say hello"}.
func (h *CommandHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Command == "" {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "command is required")
		return
	}

	operator, ok := OperatorFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, r, http.StatusUnauthorized, "operator not found in context")
		return
	}

	result, err := h.commands.Execute(r.Context(), operator.ID, r.PathValue("serverId"), req.Command)
	if err != nil && !result.Enqueued {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, result)
}

// ExecuteBatch handles POST /api/servers/{serverId}/commands/batch. Body:
// {"commands": ["say one", "say two"]}.
func (h *CommandHandler) ExecuteBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Commands []string `json:"commands"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Commands) == 0 {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "commands must be a non-empty list")
		return
	}

	operator, ok := OperatorFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, r, http.StatusUnauthorized, "operator not found in context")
		return
	}

	results, err := h.commands.ExecuteBatch(r.Context(), operator.ID, r.PathValue("serverId"), req.Commands)
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, map[string]any{"results": results})
}
