package repository

import (
	"context"

	"github.com/chm413/mochi-link/models"
)

// GroupBindingRepository persists chat-group-to-server bindings. Unique on
// (group_id, server_id, binding_type) — a group may hold several bindings
// of different types to the same server, never two of the same type.
type GroupBindingRepository interface {
	Create(ctx context.Context, binding *models.GroupBinding) error
	GetByID(ctx context.Context, id string) (*models.GroupBinding, error)
	ListByServer(ctx context.Context, serverID string) ([]models.GroupBinding, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.GroupBinding, error)
	UpdateStatus(ctx context.Context, id string, status models.BindingStatus) error
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
