package services

import (
	"context"
	"testing"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
)

type fakeOperatorRepo struct {
	operators map[string]*models.Operator
}

func (f *fakeOperatorRepo) Create(ctx context.Context, operator *models.Operator) error {
	f.operators[operator.ID] = operator
	return nil
}
func (f *fakeOperatorRepo) GetByID(ctx context.Context, id string) (*models.Operator, error) {
	op, ok := f.operators[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return op, nil
}
func (f *fakeOperatorRepo) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	for _, op := range f.operators {
		if op.Username == username {
			return op, nil
		}
	}
	return nil, pkg.ErrNotFound
}
func (f *fakeOperatorRepo) Count(ctx context.Context) (int, error) { return len(f.operators), nil }
func (f *fakeOperatorRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	return nil
}

type fakeACLRepo struct {
	rows map[string]*models.ServerACL
}

func aclKey(userID, serverID string) string { return userID + ":" + serverID }

func (f *fakeACLRepo) Upsert(ctx context.Context, acl *models.ServerACL) error {
	f.rows[aclKey(acl.UserID, acl.ServerID)] = acl
	return nil
}
func (f *fakeACLRepo) Get(ctx context.Context, userID, serverID string) (*models.ServerACL, error) {
	acl, ok := f.rows[aclKey(userID, serverID)]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return acl, nil
}
func (f *fakeACLRepo) ListByServer(ctx context.Context, serverID string) ([]models.ServerACL, error) {
	return nil, nil
}
func (f *fakeACLRepo) ListByUser(ctx context.Context, userID string) ([]models.ServerACL, error) {
	return nil, nil
}
func (f *fakeACLRepo) Revoke(ctx context.Context, userID, serverID string) error {
	delete(f.rows, aclKey(userID, serverID))
	return nil
}

func newTestAuthz() (*fakeACLRepo, *fakeOperatorRepo, AuthzService) {
	acls := &fakeACLRepo{rows: map[string]*models.ServerACL{}}
	operators := &fakeOperatorRepo{operators: map[string]*models.Operator{}}
	return acls, operators, NewAuthzService(acls, operators)
}

func TestAuthzService_PlatformAdminBypassesACL(t *testing.T) {
	acls, operators, svc := newTestAuthz()
	operators.operators["admin-1"] = &models.Operator{ID: "admin-1", IsPlatformAdmin: true}

	perm, err := svc.Effective(context.Background(), "admin-1", "server-1")
	if err != nil {
		t.Fatalf("Effective: %v", err)
	}
	if perm != models.BasePermissions(models.RoleOwner) {
		t.Fatalf("expected platform admin to get owner-level permissions, got %v", perm)
	}
	if len(acls.rows) != 0 {
		t.Fatalf("expected no ACL lookup for a platform admin")
	}
}

func TestAuthzService_NoACLRowIsForbidden(t *testing.T) {
	_, operators, svc := newTestAuthz()
	operators.operators["op-1"] = &models.Operator{ID: "op-1"}

	_, err := svc.Effective(context.Background(), "op-1", "server-1")
	if err != pkg.ErrForbidden {
		t.Fatalf("expected ErrForbidden for a missing ACL row, got %v", err)
	}
}

func TestAuthzService_RoleGrantsBasePermissions(t *testing.T) {
	acls, operators, svc := newTestAuthz()
	operators.operators["op-1"] = &models.Operator{ID: "op-1"}
	acls.rows[aclKey("op-1", "server-1")] = &models.ServerACL{
		UserID: "op-1", ServerID: "server-1", Role: models.RoleViewer,
	}

	if err := svc.CheckPermission(context.Background(), "op-1", "server-1", models.PermServerView); err != nil {
		t.Fatalf("expected a viewer to have PermServerView, got %v", err)
	}
	if err := svc.CheckPermission(context.Background(), "op-1", "server-1", models.PermServerDelete); err != pkg.ErrForbidden {
		t.Fatalf("expected a viewer to lack PermServerDelete, got %v", err)
	}
}

func TestAuthzService_ExplicitPermissionsOverrideRole(t *testing.T) {
	acls, operators, svc := newTestAuthz()
	operators.operators["op-1"] = &models.Operator{ID: "op-1"}
	acls.rows[aclKey("op-1", "server-1")] = &models.ServerACL{
		UserID:      "op-1",
		ServerID:    "server-1",
		Role:        models.RoleViewer,
		Permissions: models.PermServerDelete,
	}

	if err := svc.CheckPermission(context.Background(), "op-1", "server-1", models.PermServerDelete); err != nil {
		t.Fatalf("expected the explicit allowlist to grant PermServerDelete, got %v", err)
	}
	if err := svc.CheckPermission(context.Background(), "op-1", "server-1", models.PermServerView); err != pkg.ErrForbidden {
		t.Fatalf("expected the explicit allowlist to not merely extend the role, got %v", err)
	}
}
