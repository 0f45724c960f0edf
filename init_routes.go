// Package main — HTTP route registration, split out of main.go per the
// teacher's init_routes.go. Literal path segments ("rotate", "batch") are
// always registered before the parametric routes they could otherwise be
// swallowed by. Protected handlers are reached through one of two
// middleware-chain closures built from AuthMiddleware/PermissionMiddleware:
// auth (authentication only) and authPerm (authentication plus a per-server
// permission). The health, login/refresh and docs routes are registered
// without either.
package main

import (
	"net/http"

	"github.com/chm413/mochi-link/middleware"
	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/ws"
)

// newWSRouter builds the connector-facing mux, served on its own port
// (config.WSConfig) separately from the operator admin API — a stalled
// connector handshake or a slow admin-API client should never contend on
// the same listener as the other.
func newWSRouter(wsHandler *ws.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", wsHandler.HandleConnection)
	return mux
}

// newRouter builds the operator-facing admin API mux, served on
// config.HTTPConfig's port.
func newRouter(h *Handlers, authMw *middleware.AuthMiddleware, permMw *middleware.PermissionMiddleware) *http.ServeMux {
	mux := http.NewServeMux()

	auth := func(f http.HandlerFunc) http.Handler {
		return authMw.Require(http.HandlerFunc(f))
	}
	authPerm := func(perm models.Permission, f http.HandlerFunc) http.Handler {
		return authMw.Require(permMw.Require(perm, http.HandlerFunc(f)))
	}

	// ── Health (unauthenticated) ──
	mux.HandleFunc("GET /healthz", h.Health.Live)
	mux.HandleFunc("GET /readyz", h.Health.Ready)
	mux.HandleFunc("GET /api/health", h.Health.Live)

	// ── Auth (unauthenticated except Me/ChangePassword) ──
	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/auth/refresh", h.Auth.Refresh)
	mux.HandleFunc("POST /api/auth/logout", h.Auth.Logout)
	mux.Handle("GET /api/operators/me", auth(h.Auth.Me))
	mux.Handle("POST /api/operators/me/password", auth(h.Auth.ChangePassword))

	// ── OpenAPI document (unauthenticated, read-only) ──
	mux.HandleFunc("GET /api/docs", h.OpenAPI.Docs)
	mux.HandleFunc("GET /api/docs/openapi.json", h.OpenAPI.JSON)
	mux.HandleFunc("GET /api/docs/openapi.yaml", h.OpenAPI.YAML)

	// ── Servers (C6) ──
	mux.Handle("GET /api/servers", auth(h.Server.List))
	mux.Handle("POST /api/servers", auth(h.Server.Register))
	mux.Handle("GET /api/servers/{serverId}", authPerm(models.PermServerView, h.Server.Get))
	mux.Handle("GET /api/servers/{serverId}/status", authPerm(models.PermServerView, h.Server.Status))
	mux.Handle("PATCH /api/servers/{serverId}", authPerm(models.PermServerUpdate, h.Server.Update))
	mux.Handle("DELETE /api/servers/{serverId}", authPerm(models.PermServerDelete, h.Server.Delete))

	// ── Whitelist (C8) ──
	mux.Handle("GET /api/servers/{serverId}/whitelist", authPerm(models.PermWhitelistManage, h.Whitelist.Sync))
	mux.Handle("POST /api/servers/{serverId}/whitelist", authPerm(models.PermWhitelistManage, h.Whitelist.Add))
	mux.Handle("DELETE /api/servers/{serverId}/whitelist/{player}", authPerm(models.PermWhitelistManage, h.Whitelist.Remove))

	// ── Players (C8) ──
	mux.Handle("GET /api/servers/{serverId}/players", authPerm(models.PermPlayerList, h.Player.ListOnline))
	// "kick" sits one segment past {player} so no literal-vs-parametric
	// ordering conflict is possible here.
	mux.Handle("POST /api/servers/{serverId}/players/{player}/kick", authPerm(models.PermPlayerKick, h.Player.Kick))
	mux.Handle("GET /api/players/{identifier}", auth(h.Player.Lookup))

	// ── Commands (C8) — "batch" registered before the bare collection route
	// would matter if both shared a trailing parametric segment; they don't
	// here, but the ordering convention is kept for consistency.
	mux.Handle("POST /api/servers/{serverId}/commands/batch", authPerm(models.PermCommandExecute, h.Command.ExecuteBatch))
	mux.Handle("POST /api/servers/{serverId}/commands", authPerm(models.PermCommandExecute, h.Command.Execute))

	// ── Tokens (C2) ──
	mux.Handle("GET /api/servers/{serverId}/tokens", authPerm(models.PermTokenRotate, h.Token.List))
	mux.Handle("POST /api/servers/{serverId}/tokens/rotate", authPerm(models.PermTokenRotate, h.Token.Rotate))
	mux.Handle("POST /api/servers/{serverId}/tokens", authPerm(models.PermTokenRotate, h.Token.Generate))
	mux.Handle("DELETE /api/tokens/{tokenId}", auth(h.Token.Revoke))

	// ── Bindings (C9) ──
	mux.Handle("POST /api/bindings", auth(h.Binding.Create))
	mux.Handle("GET /api/bindings/{bindingId}", auth(h.Binding.Get))
	mux.Handle("PATCH /api/bindings/{bindingId}/status", auth(h.Binding.SetStatus))
	mux.Handle("DELETE /api/bindings/{bindingId}", auth(h.Binding.Delete))
	mux.Handle("GET /api/servers/{serverId}/bindings", authPerm(models.PermBindingManage, h.Binding.ListForServer))
	mux.Handle("GET /api/groups/{groupId}/bindings", auth(h.Binding.ListForGroup))

	// ── Audit (C11) ──
	mux.Handle("GET /api/audit", auth(h.Audit.List))
	mux.Handle("GET /api/servers/{serverId}/audit", authPerm(models.PermAuditView, h.Audit.ListForServer))

	// ── Bot command surface (C12) ── permission checks happen inside
	// bot.Router.Dispatch per-command, since the target server isn't known
	// until the command string is parsed.
	mux.Handle("POST /api/bot/command", auth(h.Bot.Execute))

	return mux
}
