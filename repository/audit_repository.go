package repository

import (
	"context"
	"time"

	"github.com/chm413/mochi-link/models"
)

// AuditRepository appends to and reads the audit log. Rows are never
// updated or individually deleted — DeleteOlderThan is the only bulk
// removal path, driven by the retention sweep.
type AuditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
