package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/services"
)

// registerCommandCommands wires console command dispatch (C8). The console
// command string itself is everything after the command name — it is not
// split into further positional args, since `say hello there` must reach
// the connector as one string.
func registerCommandCommands(r *Router, commands services.CommandService) {
	r.register("mochi.command.execute", true, models.PermCommandExecute, func(ctx context.Context, inv Invocation, serverID string) (string, error) {
		command := strings.Join(inv.Args, " ")
		if command == "" {
			return "", fmt.Errorf("%w: usage: mochi.command.execute <command...>", pkg.ErrBadRequest)
		}
		result, err := commands.Execute(ctx, inv.OperatorID, serverID, command)
		if err != nil && !result.Enqueued {
			return "", err
		}
		if result.Enqueued {
			return fmt.Sprintf("server is offline — %q queued, will run on reconnect", command), nil
		}
		if result.Output != "" {
			return result.Output, nil
		}
		return fmt.Sprintf("executed %q", command), nil
	})
}
