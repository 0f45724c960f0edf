package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/services"
)

// registerWhitelistCommands wires the whitelist half of C8.
func registerWhitelistCommands(r *Router, whitelist services.WhitelistService) {
	r.register("mochi.whitelist.add", true, models.PermWhitelistManage, func(ctx context.Context, inv Invocation, serverID string) (string, error) {
		player := inv.Arg(0)
		if player == "" {
			return "", fmt.Errorf("%w: usage: mochi.whitelist.add <player>", pkg.ErrBadRequest)
		}
		enqueued, err := whitelist.Add(ctx, inv.OperatorID, serverID, player)
		if err != nil && err != pkg.ErrServerOffline {
			return "", err
		}
		return whitelistOutcome(player, "added", enqueued), nil
	})

	r.register("mochi.whitelist.remove", true, models.PermWhitelistManage, func(ctx context.Context, inv Invocation, serverID string) (string, error) {
		player := inv.Arg(0)
		if player == "" {
			return "", fmt.Errorf("%w: usage: mochi.whitelist.remove <player>", pkg.ErrBadRequest)
		}
		enqueued, err := whitelist.Remove(ctx, inv.OperatorID, serverID, player)
		if err != nil && err != pkg.ErrServerOffline {
			return "", err
		}
		return whitelistOutcome(player, "removed", enqueued), nil
	})

	r.register("mochi.whitelist.list", true, models.PermServerView, func(ctx context.Context, _ Invocation, serverID string) (string, error) {
		players, err := whitelist.Sync(ctx, serverID)
		if err != nil {
			return "", err
		}
		if len(players) == 0 {
			return fmt.Sprintf("%s's whitelist is empty", serverID), nil
		}
		return strings.Join(players, ", "), nil
	})
}

func whitelistOutcome(player, verb string, enqueued bool) string {
	if enqueued {
		return fmt.Sprintf("server is offline — %s %q queued, will apply on reconnect", verb, player)
	}
	return fmt.Sprintf("%s %q", verb, player)
}
