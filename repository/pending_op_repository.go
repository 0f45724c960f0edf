package repository

import (
	"context"
	"time"

	"github.com/chm413/mochi-link/models"
)

// PendingOperationRepository persists queued offline mutations (C7). Replace
// is the optimize-pass write path: it atomically swaps a server's whole
// pending queue for the collapsed/cancelled result of
// models.OptimizePendingOps, grounded on the teacher's transactional
// UpdatePositions idiom (all-or-nothing bulk replace under one tx).
type PendingOperationRepository interface {
	Enqueue(ctx context.Context, op *models.PendingOperation) error
	ListByServer(ctx context.Context, serverID string) ([]models.PendingOperation, error)
	Replace(ctx context.Context, serverID string, ops []models.PendingOperation) error
	MarkStatus(ctx context.Context, id string, status models.PendingOpStatus, executedAt *time.Time) error
	DeleteByServer(ctx context.Context, serverID string) error
}
