package repository

import (
	"context"

	"github.com/chm413/mochi-link/models"
)

// PlayerRepository persists the cross-server player cache. Lookups go by
// uuid or by name; there is no lookup by xuid. Upsert
// is responsible for calling PlayerCacheEntry.MergeFrom against any existing
// row before writing, so merge-conflict detection always runs server-side.
type PlayerRepository interface {
	Upsert(ctx context.Context, observed models.PlayerCacheEntry) (*models.PlayerCacheEntry, error)
	GetByUUID(ctx context.Context, uuid string) (*models.PlayerCacheEntry, error)
	GetByName(ctx context.Context, name string) (*models.PlayerCacheEntry, error)
	ListByServer(ctx context.Context, serverID string) ([]models.PlayerCacheEntry, error)
}
