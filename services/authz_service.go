package services

import (
	"context"
	"errors"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/repository"
)

// AuthzService resolves an operator's effective permission on a server
// outside the HTTP middleware chain — the bot command surface (C12) has
// no request context to attach permissions to, so it calls this directly
// instead of going through middleware.PermissionMiddleware.
type AuthzService interface {
	CheckPermission(ctx context.Context, operatorID, serverID string, perm models.Permission) error
	Effective(ctx context.Context, operatorID, serverID string) (models.Permission, error)
}

type authzService struct {
	aclRepo      repository.ACLRepository
	operatorRepo repository.OperatorRepository
}

// NewAuthzService constructs the AuthzService.
func NewAuthzService(aclRepo repository.ACLRepository, operatorRepo repository.OperatorRepository) AuthzService {
	return &authzService{aclRepo: aclRepo, operatorRepo: operatorRepo}
}

// Effective returns operatorID's effective permission bitmask for
// serverID, bypassing ACL lookup entirely for platform admins.
func (s *authzService) Effective(ctx context.Context, operatorID, serverID string) (models.Permission, error) {
	operator, err := s.operatorRepo.GetByID(ctx, operatorID)
	if err != nil {
		return 0, err
	}
	if operator.IsPlatformAdmin {
		return models.BasePermissions(models.RoleOwner), nil
	}

	acl, err := s.aclRepo.Get(ctx, operatorID, serverID)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return 0, pkg.ErrForbidden
		}
		return 0, err
	}
	return acl.Effective(), nil
}

// CheckPermission returns pkg.ErrForbidden when operatorID lacks perm on
// serverID, nil otherwise.
func (s *authzService) CheckPermission(ctx context.Context, operatorID, serverID string, perm models.Permission) error {
	effective, err := s.Effective(ctx, operatorID, serverID)
	if err != nil {
		return err
	}
	if !effective.Has(perm) {
		return pkg.ErrForbidden
	}
	return nil
}
