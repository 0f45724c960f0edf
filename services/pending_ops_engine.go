package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/repository"
	"github.com/chm413/mochi-link/ws"
)

const drainRequestTimeout = 15 * time.Second

// PendingOpsEngine is the Pending Operations Engine (C7): mutations issued
// against an offline server are queued rather than rejected, collapsed by
// models.OptimizePendingOps, and drained in order once the server comes
// back online. It has no direct teacher analogue — the teacher's protocol
// has no offline-queue concept — so this is built from the repository's
// own transactional Replace path plus the Hub's request correlator.
type PendingOpsEngine interface {
	Enqueue(ctx context.Context, serverID, operationType, target string, params map[string]any) (*models.PendingOperation, error)
	ListQueued(ctx context.Context, serverID string) ([]models.PendingOperation, error)
	// DrainOnReconnect runs the optimize pass and replays every surviving
	// operation against serverID's now-live connection, in order. It is
	// meant to be called from the ws.ConnectionObserver.OnServerOnline
	// callback the composition root wires up.
	DrainOnReconnect(ctx context.Context, serverID string)
}

type pendingOpsEngine struct {
	repo repository.PendingOperationRepository
	hub  *ws.Hub
}

// NewPendingOpsEngine constructs the PendingOpsEngine.
func NewPendingOpsEngine(repo repository.PendingOperationRepository, hub *ws.Hub) PendingOpsEngine {
	return &pendingOpsEngine{repo: repo, hub: hub}
}

// Enqueue rejects an empty target outright (there is nothing to optimize
// or replay against) and otherwise persists op as pending, then runs the
// optimize pass immediately so a burst of enqueues never leaves a
// cancel-out pair sitting in the store even before the server reconnects.
func (e *pendingOpsEngine) Enqueue(ctx context.Context, serverID, operationType, target string, params map[string]any) (*models.PendingOperation, error) {
	if target == "" {
		return nil, fmt.Errorf("%w: pending operation target must not be empty", pkg.ErrBadRequest)
	}

	op := &models.PendingOperation{
		ServerID:      serverID,
		OperationType: operationType,
		Target:        target,
		Parameters:    params,
		Status:        models.PendingOpPending,
	}
	if err := e.repo.Enqueue(ctx, op); err != nil {
		return nil, err
	}

	if err := e.optimize(ctx, serverID); err != nil {
		slog.Warn("pending op optimize pass failed", "serverId", serverID, "error", err)
	}

	return op, nil
}

func (e *pendingOpsEngine) ListQueued(ctx context.Context, serverID string) ([]models.PendingOperation, error) {
	return e.repo.ListByServer(ctx, serverID)
}

// optimize reloads serverID's full queue, runs models.OptimizePendingOps,
// and writes the result back atomically via Replace.
func (e *pendingOpsEngine) optimize(ctx context.Context, serverID string) error {
	current, err := e.repo.ListByServer(ctx, serverID)
	if err != nil {
		return err
	}
	optimized := models.OptimizePendingOps(current)
	return e.repo.Replace(ctx, serverID, optimized)
}

// DrainOnReconnect replays serverID's queue through the live connection in
// createdAt order, marking each operation done or failed as it resolves.
// A failure on one operation does not abort the rest — each is
// independent once it is queued.
func (e *pendingOpsEngine) DrainOnReconnect(ctx context.Context, serverID string) {
	if err := e.optimize(ctx, serverID); err != nil {
		slog.Warn("pending op optimize pass failed before drain", "serverId", serverID, "error", err)
	}

	ops, err := e.repo.ListByServer(ctx, serverID)
	if err != nil {
		slog.Error("failed to list pending operations for drain", "serverId", serverID, "error", err)
		return
	}

	for _, op := range ops {
		if op.Status != models.PendingOpPending {
			continue
		}
		e.replay(ctx, op)
	}
}

func (e *pendingOpsEngine) replay(ctx context.Context, op models.PendingOperation) {
	reqCtx, cancel := context.WithTimeout(ctx, drainRequestTimeout)
	defer cancel()

	if err := e.repo.MarkStatus(ctx, op.ID, models.PendingOpRunning, nil); err != nil {
		slog.Error("failed to mark pending operation running", "id", op.ID, "error", err)
	}

	payload := map[string]any{"target": op.Target}
	for k, v := range op.Parameters {
		payload[k] = v
	}

	_, err := e.hub.SendRequest(reqCtx, op.ServerID, op.OperationType, payload, drainRequestTimeout)
	now := time.Now()
	if err != nil {
		slog.Warn("pending operation replay failed", "serverId", op.ServerID, "op", op.OperationType, "target", op.Target, "error", err)
		if markErr := e.repo.MarkStatus(ctx, op.ID, models.PendingOpFailed, &now); markErr != nil {
			slog.Error("failed to mark pending operation failed", "id", op.ID, "error", markErr)
		}
		return
	}

	if err := e.repo.MarkStatus(ctx, op.ID, models.PendingOpDone, &now); err != nil {
		slog.Error("failed to mark pending operation done", "id", op.ID, "error", err)
	}
}
