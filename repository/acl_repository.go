package repository

import (
	"context"

	"github.com/chm413/mochi-link/models"
)

// ACLRepository persists (userId, serverId) authorization rows. Unique on
// the pair — Upsert replaces an existing grant rather than erroring.
type ACLRepository interface {
	Upsert(ctx context.Context, acl *models.ServerACL) error
	Get(ctx context.Context, userID, serverID string) (*models.ServerACL, error)
	ListByServer(ctx context.Context, serverID string) ([]models.ServerACL, error)
	ListByUser(ctx context.Context, userID string) ([]models.ServerACL, error)
	Revoke(ctx context.Context, userID, serverID string) error
}
