package repository

import (
	"context"

	"github.com/chm413/mochi-link/models"
)

// APITokenRepository persists connector credentials for a Server. Lookup by
// hash (GetByHash) is the hot path exercised on every /ws admission; the
// admin-facing list/rotate endpoints read by server (GetByServerID) and
// revoke deletes by token ID.
type APITokenRepository interface {
	Create(ctx context.Context, token *models.APIToken) error
	GetByHash(ctx context.Context, hash string) (*models.APIToken, error)
	GetByServerID(ctx context.Context, serverID string) ([]models.APIToken, error)
	Touch(ctx context.Context, id string) error
	Revoke(ctx context.Context, id string) error
}
