// Package main — service layer construction.
package main

import (
	"github.com/chm413/mochi-link/config"
	"github.com/chm413/mochi-link/pkg/ratelimit"
	"github.com/chm413/mochi-link/services"
	"github.com/chm413/mochi-link/ws"
)

// Services bundles every service instance the handler layer calls into.
type Services struct {
	Auth         services.AuthService
	Authz        services.AuthzService
	Tokens       services.TokenService
	Servers      services.ServerManager
	PendingOps   services.PendingOpsEngine
	Whitelist    services.WhitelistService
	Players      services.PlayerService
	Commands     services.CommandService
	Bindings     services.BindingService
	Router       services.RouterService
	Subscriptions services.SubscriptionService
}

// initServices wires every service from its repository dependencies plus
// the shared Hub. The Hub's ConnectionObserver/EventDispatcher are not
// installed here — ServerManager and SubscriptionService must exist before
// they can be composed into the observer chain the Hub is told about, so
// that wiring happens back in main after this call returns.
func initServices(repos *Repositories, hub *ws.Hub, cfg *config.Config) *Services {
	bindingLimiter := ratelimit.NewBindingRateLimiter()

	pendingOps := services.NewPendingOpsEngine(repos.PendingOps, hub)

	return &Services{
		Auth: services.NewAuthService(
			repos.Operators,
			repos.Sessions,
			cfg.JWT.Secret,
			cfg.JWT.AccessTokenExpiry,
			cfg.JWT.RefreshTokenExpiry,
		),
		Authz:         services.NewAuthzService(repos.ACLs, repos.Operators),
		Tokens:        services.NewTokenService(repos.Tokens, repos.Servers),
		Servers:       services.NewServerManager(repos.Servers, hub),
		PendingOps:    pendingOps,
		Whitelist:     services.NewWhitelistService(hub, pendingOps, repos.Audit),
		Players:       services.NewPlayerService(hub, repos.Players, repos.Audit),
		Commands:      services.NewCommandService(hub, pendingOps, repos.Servers, repos.Audit),
		Bindings:      services.NewBindingService(repos.Bindings),
		Router:        services.NewRouterService(hub, repos.Bindings, bindingLimiter),
		Subscriptions: services.NewSubscriptionService(),
	}
}
