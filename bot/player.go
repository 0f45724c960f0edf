package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/services"
)

// registerPlayerCommands wires the player half of C8.
func registerPlayerCommands(r *Router, players services.PlayerService) {
	r.register("mochi.player.list", true, models.PermPlayerList, func(ctx context.Context, _ Invocation, serverID string) (string, error) {
		online, err := players.ListOnline(ctx, serverID)
		if err != nil {
			return "", err
		}
		if len(online) == 0 {
			return fmt.Sprintf("no players online on %s", serverID), nil
		}
		return strings.Join(online, ", "), nil
	})

	r.register("mochi.player.kick", true, models.PermPlayerKick, func(ctx context.Context, inv Invocation, serverID string) (string, error) {
		player := inv.Arg(0)
		if player == "" {
			return "", fmt.Errorf("%w: usage: mochi.player.kick <player> [reason]", pkg.ErrBadRequest)
		}
		reason := strings.Join(inv.Args[1:], " ")
		if err := players.Kick(ctx, inv.OperatorID, serverID, player, reason); err != nil {
			return "", err
		}
		return fmt.Sprintf("kicked %q", player), nil
	})
}
