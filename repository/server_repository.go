package repository

import (
	"context"
	"time"

	"github.com/chm413/mochi-link/models"
)

// ServerRepository persists the servers catalogue (C1 Store). Unlike the
// teacher's channel/category rows, Server.ID is caller-supplied at
// registration time (the connector names itself), not a generated randomblob.
type ServerRepository interface {
	Create(ctx context.Context, server *models.Server) error
	GetByID(ctx context.Context, id string) (*models.Server, error)
	List(ctx context.Context, filter models.ServerListFilter) ([]models.Server, int, error)
	Update(ctx context.Context, server *models.Server) error
	UpdateStatus(ctx context.Context, id string, status models.ServerStatus, lastSeen *time.Time) error
	Delete(ctx context.Context, id string) error
}
