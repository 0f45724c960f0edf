package models

import "time"

// PendingOpStatus is the lifecycle of a queued offline mutation.
type PendingOpStatus string

const (
	PendingOpPending PendingOpStatus = "pending"
	PendingOpRunning PendingOpStatus = "running"
	PendingOpDone    PendingOpStatus = "done"
	PendingOpFailed  PendingOpStatus = "failed"
)

// PendingOperation is a mutation enqueued because ServerID was not online
// at the time it was issued. Ordered by (serverId, createdAt); drained in
// that order once the server transitions to online, after the optimize
// pass described in the Pending Operations Engine.
type PendingOperation struct {
	ID            string          `json:"id"`
	ServerID      string          `json:"serverId"`
	OperationType string          `json:"operationType"`
	Target        string          `json:"target"`
	Parameters    map[string]any  `json:"parameters,omitempty"`
	Status        PendingOpStatus `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	ScheduledAt   *time.Time      `json:"scheduledAt,omitempty"`
	ExecutedAt    *time.Time      `json:"executedAt,omitempty"`
}

// isWhitelistOp reports whether op is one of the commutative pair this
// engine knows how to collapse/cancel. Every other operation type (kick,
// ban, command, ...) is always preserved, in order, even against its own
// target — "whitelist.add X then player.kick X — keep both, in order."
func isWhitelistOp(op string) bool {
	return op == "whitelist.add" || op == "whitelist.remove"
}

// OptimizePendingOps runs the collapse pass described for the Pending
// Operations Engine, scanning the whole per-target history rather than
// only adjacent entries (a non-whitelist op for the same target, or an
// op for a different target, may sit between two whitelist ops that still
// need to collapse — see Scenario D: [add Alice, remove Bob, add Alice]
// collapses the duplicate add Alice even though remove Bob sits between).
//
// Invariants checked: duplicate whitelist.add/whitelist.remove on the same
// target collapse to one; an add/remove, remove/add pair on the same
// target cancels both; any non-whitelist op, or a whitelist op whose
// target has an intervening non-whitelist op, is preserved in order.
func OptimizePendingOps(ops []PendingOperation) []PendingOperation {
	result := make([]PendingOperation, 0, len(ops))
	// pendingWhitelistIdx maps target -> index in result of the most recent
	// uncancelled whitelist op for that target, reset whenever a
	// non-whitelist op touches the same target.
	pendingWhitelistIdx := make(map[string]int)

	for _, op := range ops {
		if !isWhitelistOp(op.OperationType) {
			result = append(result, op)
			delete(pendingWhitelistIdx, op.Target)
			continue
		}

		if idx, ok := pendingWhitelistIdx[op.Target]; ok {
			prev := result[idx]
			if prev.OperationType == op.OperationType {
				// Duplicate add/add or remove/remove — collapse to the one already queued.
				continue
			}
			// Opposite op on the same target — cancel both out.
			result = append(result[:idx], result[idx+1:]...)
			delete(pendingWhitelistIdx, op.Target)
			for t, i := range pendingWhitelistIdx {
				if i > idx {
					pendingWhitelistIdx[t] = i - 1
				}
			}
			continue
		}

		result = append(result, op)
		pendingWhitelistIdx[op.Target] = len(result) - 1
	}
	return result
}
