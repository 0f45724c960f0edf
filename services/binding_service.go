package services

import (
	"context"
	"fmt"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/repository"
)

// BindingService is the CRUD half of the Binding & Message Router (C9) —
// RouterService (the other half) applies a binding's rules at message
// time, this creates/reads/updates/deletes the binding rows themselves.
type BindingService interface {
	Create(ctx context.Context, req models.CreateBindingRequest, createdBy string) (*models.GroupBinding, error)
	Get(ctx context.Context, id string) (*models.GroupBinding, error)
	ListByServer(ctx context.Context, serverID string) ([]models.GroupBinding, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.GroupBinding, error)
	SetStatus(ctx context.Context, id string, status models.BindingStatus) error
	Delete(ctx context.Context, id string) error
}

type bindingService struct {
	repo repository.GroupBindingRepository
}

// NewBindingService constructs the BindingService.
func NewBindingService(repo repository.GroupBindingRepository) BindingService {
	return &bindingService{repo: repo}
}

func (s *bindingService) Create(ctx context.Context, req models.CreateBindingRequest, createdBy string) (*models.GroupBinding, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	binding := &models.GroupBinding{
		GroupID:     req.GroupID,
		ServerID:    req.ServerID,
		BindingType: req.BindingType,
		ChatConfig:  req.ChatConfig,
		EventConfig: req.EventConfig,
		CreatedBy:   createdBy,
		Status:      models.BindingActive,
	}
	if err := s.repo.Create(ctx, binding); err != nil {
		return nil, err
	}
	return binding, nil
}

func (s *bindingService) Get(ctx context.Context, id string) (*models.GroupBinding, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *bindingService) ListByServer(ctx context.Context, serverID string) ([]models.GroupBinding, error) {
	return s.repo.ListByServer(ctx, serverID)
}

func (s *bindingService) ListByGroup(ctx context.Context, groupID string) ([]models.GroupBinding, error) {
	return s.repo.ListByGroup(ctx, groupID)
}

func (s *bindingService) SetStatus(ctx context.Context, id string, status models.BindingStatus) error {
	switch status {
	case models.BindingActive, models.BindingInactive, models.BindingError:
	default:
		return fmt.Errorf("%w: invalid status", pkg.ErrBadRequest)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

func (s *bindingService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
