package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/repository"
	"github.com/chm413/mochi-link/ws"
)

// CommandResult is the outcome of dispatching one console command.
type CommandResult struct {
	Command     string `json:"command"`
	Enqueued    bool   `json:"enqueued"`
	Output      string `json:"output,omitempty"`
	ExitCode    *int   `json:"exitCode,omitempty"`
	ExecutionMs int64  `json:"executionMs"`
	Error       string `json:"error,omitempty"`
}

// CommandService is the command half of C8: Execute/ExecuteBatch dispatch
// console commands to an online connector, falling back to the pending
// ops queue per server when offline — the same dispatch-or-enqueue shape
// WhitelistService uses, generalized to carry a console command string as
// the operation's target instead of a player name.
type CommandService interface {
	Execute(ctx context.Context, operatorID, serverID, command string) (CommandResult, error)
	ExecuteBatch(ctx context.Context, operatorID, serverID string, commands []string) ([]CommandResult, error)
}

type commandService struct {
	hub     *ws.Hub
	pending PendingOpsEngine
	servers repository.ServerRepository
	audit   auditRecorder
}

// NewCommandService constructs the CommandService.
func NewCommandService(hub *ws.Hub, pending PendingOpsEngine, servers repository.ServerRepository, auditRepo repository.AuditRepository) CommandService {
	return &commandService{hub: hub, pending: pending, servers: servers, audit: newAuditRecorder(auditRepo)}
}

func (s *commandService) Execute(ctx context.Context, operatorID, serverID, command string) (CommandResult, error) {
	if err := s.checkAllowed(ctx, serverID, command); err != nil {
		s.audit.record(ctx, operatorID, serverID, "command.execute", map[string]any{"command": command}, err)
		return CommandResult{Command: command, Error: err.Error()}, err
	}

	start := time.Now()
	raw, err := s.hub.SendRequest(ctx, serverID, "command.execute", map[string]string{"command": command}, 0)
	if err == pkg.ErrServerOffline {
		_, enqueueErr := s.pending.Enqueue(ctx, serverID, "command.execute", command, nil)
		s.audit.record(ctx, operatorID, serverID, "command.execute", map[string]any{"command": command, "enqueued": true}, enqueueErr)
		return CommandResult{Command: command, Enqueued: true}, enqueueErr
	}

	result := CommandResult{Command: command, ExecutionMs: time.Since(start).Milliseconds()}
	if err != nil {
		result.Error = err.Error()
	} else {
		var payload struct {
			Output   string `json:"output"`
			ExitCode *int   `json:"exitCode"`
		}
		if unmarshalErr := unmarshalRaw(raw, &payload); unmarshalErr == nil {
			result.Output = payload.Output
			result.ExitCode = payload.ExitCode
		}
	}
	s.audit.record(ctx, operatorID, serverID, "command.execute", map[string]any{"command": command}, err)
	return result, err
}

// checkAllowed enforces the per-server allowlist/blocklist (spec.md §4.8)
// against the command's leading token (e.g. "whitelist" out of "whitelist
// add Steve") before anything is dispatched. An empty allowlist means every
// command not on the blocklist is allowed; a non-empty allowlist restricts
// execution to exactly those entries, and the blocklist always wins.
func (s *commandService) checkAllowed(ctx context.Context, serverID, command string) error {
	server, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		return err
	}

	name := commandName(command)
	for _, blocked := range server.CommandBlocklist {
		if strings.EqualFold(blocked, name) {
			return fmt.Errorf("%w: command %q is blocklisted on this server", pkg.ErrForbidden, name)
		}
	}
	if len(server.CommandAllowlist) == 0 {
		return nil
	}
	for _, allowed := range server.CommandAllowlist {
		if strings.EqualFold(allowed, name) {
			return nil
		}
	}
	return fmt.Errorf("%w: command %q is not on this server's allowlist", pkg.ErrForbidden, name)
}

func commandName(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ExecuteBatch runs each command in order against the same server,
// stopping neither on a per-command error nor an offline transition
// mid-batch — every command gets either a live result or an enqueue,
// and the caller sees exactly which.
func (s *commandService) ExecuteBatch(ctx context.Context, operatorID, serverID string, commands []string) ([]CommandResult, error) {
	results := make([]CommandResult, 0, len(commands))
	for _, cmd := range commands {
		result, err := s.Execute(ctx, operatorID, serverID, cmd)
		if err != nil && result.Error == "" && !result.Enqueued {
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results, nil
}
