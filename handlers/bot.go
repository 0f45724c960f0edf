package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chm413/mochi-link/bot"
	"github.com/chm413/mochi-link/pkg"
)

// BotHandler exposes the bot command surface (C12) over HTTP so a chat-bot
// adapter — kept out of scope per spec.md §1, which only requires the hub
// to "expose command handlers" — can forward operator input without
// needing to link the bot package directly.
type BotHandler struct {
	router *bot.Router
}

// NewBotHandler constructs a BotHandler.
func NewBotHandler(router *bot.Router) *BotHandler {
	return &BotHandler{router: router}
}

type botCommandRequest struct {
	GroupID string `json:"groupId"`
	Command string `json:"command"`
}

// Execute handles POST /api/bot/command: {"groupId": "...", "command":
// "mochi.whitelist.add Steve"}. The reply is the plain string the
// chat-bot adapter posts back into the originating group.
func (h *BotHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req botCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Command == "" {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "command is required")
		return
	}

	operator, ok := OperatorFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, r, http.StatusUnauthorized, "operator not found in context")
		return
	}

	reply, err := h.router.Dispatch(r.Context(), operator.ID, req.GroupID, req.Command)
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, map[string]string{"reply": reply})
}
