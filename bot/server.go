package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/services"
)

// registerServerCommands wires the server catalogue (C6) and token (C2)
// commands. mochi.server.register is the hub's single registration path —
// see SPEC_FULL.md §9 on mochi.server.add being dropped as the duplicate.
func registerServerCommands(r *Router, servers services.ServerManager, tokens services.TokenService) {
	r.register("mochi.server.register", false, 0, func(ctx context.Context, inv Invocation, _ string) (string, error) {
		if len(inv.Args) < 4 {
			return "", fmt.Errorf("%w: usage: mochi.server.register <id> <displayName> <coreType> <coreName>", pkg.ErrBadRequest)
		}
		req := models.RegisterServerRequest{
			ID:             inv.Arg(0),
			DisplayName:    inv.Arg(1),
			CoreType:       models.CoreType(strings.ToLower(inv.Arg(2))),
			CoreName:       inv.Arg(3),
			ConnectionMode: models.ConnectionModePlugin,
		}
		server, err := servers.Register(ctx, req, inv.OperatorID)
		if err != nil {
			return "", err
		}
		tok, err := tokens.GenerateToken(ctx, server.ID, models.TokenOptions{})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("registered %q — token (save this, it won't be shown again): %s", server.ID, tok.Token), nil
	})

	// mochi.server.list has no default-server requirement — it lists across
	// the catalogue, so there is nothing to check an ACL against.
	r.register("mochi.server.list", false, 0, func(ctx context.Context, _ Invocation, _ string) (string, error) {
		list, total, err := servers.List(ctx, models.ServerListFilter{Page: 1, Limit: 50})
		if err != nil {
			return "", err
		}
		if total == 0 {
			return "no servers registered", nil
		}
		lines := make([]string, 0, len(list))
		for _, s := range list {
			lines = append(lines, fmt.Sprintf("%s (%s/%s) — %s", s.ID, s.CoreType, s.CoreName, s.Status))
		}
		return strings.Join(lines, "\n"), nil
	})

	r.register("mochi.server.status", true, models.PermServerView, func(ctx context.Context, _ Invocation, serverID string) (string, error) {
		view, err := servers.Status(ctx, serverID)
		if err != nil {
			return "", err
		}
		if view.PlayerCount != nil {
			return fmt.Sprintf("%s: %s (%d players)", serverID, view.Status, *view.PlayerCount), nil
		}
		return fmt.Sprintf("%s: %s", serverID, view.Status), nil
	})

	r.register("mochi.server.delete", true, models.PermServerDelete, func(ctx context.Context, _ Invocation, serverID string) (string, error) {
		if err := servers.Delete(ctx, serverID); err != nil {
			return "", err
		}
		return fmt.Sprintf("deleted %q", serverID), nil
	})

	// mochi.server.token: prints current credential metadata, or rotates it
	// when the -r flag is present — the "optional flags (e.g. -r for
	// rotate token)" example from spec.md §4.12.
	r.register("mochi.server.token", true, models.PermTokenRotate, func(ctx context.Context, inv Invocation, serverID string) (string, error) {
		if inv.Flag("r") {
			tok, err := tokens.RotateToken(ctx, serverID)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("rotated — new token (save this, it won't be shown again): %s", tok.Token), nil
		}
		list, err := tokens.ListTokens(ctx, serverID)
		if err != nil {
			return "", err
		}
		if len(list) == 0 {
			return fmt.Sprintf("%s has no active tokens", serverID), nil
		}
		return fmt.Sprintf("%s has %d active token(s); use -r to rotate", serverID, len(list)), nil
	})
}
