// Package bot is the Bot Command Surface (C12): a flat dotted-command
// namespace (mochi.server.register, mochi.whitelist.add, ...) that parses
// operator chat-bot input, resolves a default serverId from the invoking
// group's binding when one is omitted, checks ACL (C2), and invokes the
// same C6/C8/C9 services the HTTP admin API (C11) calls. The chat-bot
// framework's own message ingress/egress is out of scope — Router.Dispatch
// takes and returns plain strings, leaving the adapter to the caller.
package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/services"
)

// Invocation is one parsed operator command, stripped of its dotted name.
type Invocation struct {
	OperatorID string
	GroupID    string
	Args       []string
	Flags      map[string]string
}

// Flag reports whether a boolean flag (e.g. "-r") was present.
func (inv Invocation) Flag(name string) bool {
	_, ok := inv.Flags[name]
	return ok
}

// Arg returns the i'th positional argument, or "" when absent.
func (inv Invocation) Arg(i int) string {
	if i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}

// handlerFunc is a command's implementation once permission and the
// default-server resolution (when requireServer is set) have already run.
type handlerFunc func(ctx context.Context, inv Invocation, serverID string) (string, error)

type commandSpec struct {
	requireServer bool
	perm          models.Permission
	handler       handlerFunc
}

// Router parses and dispatches the "mochi.*" command namespace. It holds no
// per-invocation state; one Router instance serves every operator and group.
type Router struct {
	authz    services.AuthzService
	bindings services.BindingService

	commands map[string]commandSpec
}

// NewRouter constructs the Router and registers every command group.
// Additional services are threaded through to the per-group constructors
// below rather than stored on Router directly, so each file
// (server.go/whitelist.go/player.go/command.go) owns exactly the
// dependencies its own commands need.
func NewRouter(
	authz services.AuthzService,
	bindings services.BindingService,
	servers services.ServerManager,
	tokens services.TokenService,
	whitelist services.WhitelistService,
	players services.PlayerService,
	commands services.CommandService,
) *Router {
	r := &Router{
		authz:    authz,
		bindings: bindings,
		commands: make(map[string]commandSpec),
	}
	registerServerCommands(r, servers, tokens)
	registerWhitelistCommands(r, whitelist)
	registerPlayerCommands(r, players)
	registerCommandCommands(r, commands)
	return r
}

// register adds one command to the namespace. perm is ignored when
// requireServer is false (server-less commands like mochi.server.register
// have no serverId to check an ACL against, and their handlers perform no
// permission check of their own).
func (r *Router) register(name string, requireServer bool, perm models.Permission, handler handlerFunc) {
	r.commands[name] = commandSpec{requireServer: requireServer, perm: perm, handler: handler}
}

// Dispatch parses raw operator input ("mochi.whitelist.add Steve
// -server=survival") and runs the matching command. groupID is the chat group the
// command arrived in, used only to resolve a default serverId when the
// command needs one and none was supplied explicitly.
func (r *Router) Dispatch(ctx context.Context, operatorID, groupID, raw string) (string, error) {
	name, args, flags, err := parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	spec, ok := r.commands[name]
	if !ok {
		return "", fmt.Errorf("%w: unknown command %q", pkg.ErrBadRequest, name)
	}

	serverID := flags["server"]
	inv := Invocation{OperatorID: operatorID, GroupID: groupID, Args: args, Flags: flags}

	if !spec.requireServer {
		return spec.handler(ctx, inv, "")
	}

	if serverID == "" {
		serverID, err = r.defaultServer(ctx, groupID)
		if err != nil {
			return "", err
		}
	}
	if err := r.authz.CheckPermission(ctx, operatorID, serverID, spec.perm); err != nil {
		return "", err
	}
	return spec.handler(ctx, inv, serverID)
}

// defaultServer resolves groupID's bound server for commands that omit an
// explicit -server flag: the first active command-capable binding
// (bindingType command or full), ordered by creation so the oldest binding
// wins when a group is bound to more than one server.
func (r *Router) defaultServer(ctx context.Context, groupID string) (string, error) {
	bindings, err := r.bindings.ListByGroup(ctx, groupID)
	if err != nil {
		return "", err
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].CreatedAt.Before(bindings[j].CreatedAt) })
	for _, b := range bindings {
		if b.Status != models.BindingActive {
			continue
		}
		if b.BindingType == models.BindingCommand || b.BindingType == models.BindingFull {
			return b.ServerID, nil
		}
	}
	return "", fmt.Errorf("%w: no default server bound to this group, pass -server=<id>", pkg.ErrBadRequest)
}

// parse splits raw operator input into a dotted command name, positional
// args, and flags. Flags are "-name" (boolean) or "-name=value"; everything
// else is positional. A double-quoted span ("like this") is kept as one
// argument, matching the free-text display-name arguments spec.md §4.12
// calls out.
func parse(raw string) (name string, args []string, flags map[string]string, err error) {
	tokens, err := tokenize(strings.TrimSpace(raw))
	if err != nil {
		return "", nil, nil, err
	}
	if len(tokens) == 0 {
		return "", nil, nil, fmt.Errorf("empty command")
	}

	name = tokens[0]
	flags = make(map[string]string)
	for _, tok := range tokens[1:] {
		if strings.HasPrefix(tok, "-") && len(tok) > 1 {
			body := strings.TrimPrefix(tok, "-")
			if eq := strings.IndexByte(body, '='); eq >= 0 {
				flags[body[:eq]] = body[eq+1:]
			} else {
				flags[body] = "true"
			}
			continue
		}
		args = append(args, tok)
	}
	return name, args, flags, nil
}

// tokenize is a small whitespace splitter that honors double-quoted spans,
// so `mochi.server.register survival "生存服" java paper` keeps the quoted
// display name as a single token.
func tokenize(raw string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	hasToken := false

	flush := func() {
		if hasToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			hasToken = false
		}
	}

	for _, r := range raw {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			hasToken = true
		case r == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
			hasToken = true
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unterminated quote")
	}
	flush()
	return tokens, nil
}
