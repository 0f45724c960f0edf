// Package main — handler layer construction.
package main

import (
	"github.com/chm413/mochi-link/bot"
	"github.com/chm413/mochi-link/handlers"
	"github.com/chm413/mochi-link/pkg/ratelimit"
	"github.com/chm413/mochi-link/ws"
)

// Handlers bundles every HTTP handler the router wires routes to.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Server    *handlers.ServerHandler
	Whitelist *handlers.WhitelistHandler
	Player    *handlers.PlayerHandler
	Command   *handlers.CommandHandler
	Binding   *handlers.BindingHandler
	Token     *handlers.TokenHandler
	Audit     *handlers.AuditHandler
	Health    *handlers.HealthHandler
	OpenAPI   *handlers.OpenAPIHandler
	Bot       *handlers.BotHandler
}

// initHandlers constructs every handler from its service dependency. The
// bot command surface (C12) is built here too and exposed through
// BotHandler, since the chat-bot framework's own ingress/egress is the
// only piece spec.md §1 places out of scope — the command handlers
// themselves are this hub's responsibility.
func initHandlers(svc *Services, hub *ws.Hub, loginLimiter *ratelimit.LoginRateLimiter, repos *Repositories) *Handlers {
	botRouter := bot.NewRouter(svc.Authz, svc.Bindings, svc.Servers, svc.Tokens, svc.Whitelist, svc.Players, svc.Commands)

	return &Handlers{
		Auth:      handlers.NewAuthHandler(svc.Auth, loginLimiter),
		Server:    handlers.NewServerHandler(svc.Servers),
		Whitelist: handlers.NewWhitelistHandler(svc.Whitelist),
		Player:    handlers.NewPlayerHandler(svc.Players),
		Command:   handlers.NewCommandHandler(svc.Commands),
		Binding:   handlers.NewBindingHandler(svc.Bindings),
		Token:     handlers.NewTokenHandler(svc.Tokens),
		Audit:     handlers.NewAuditHandler(repos.Audit),
		Health:    handlers.NewHealthHandler(hub),
		OpenAPI:   handlers.NewOpenAPIHandler(),
		Bot:       handlers.NewBotHandler(botRouter),
	}
}
