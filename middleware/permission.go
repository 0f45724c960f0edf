package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/chm413/mochi-link/handlers"
	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/repository"
)

// PermissionMiddleware checks a caller's ServerACL grant for the {serverId}
// path parameter. It runs after AuthMiddleware.Require — the operator is
// already on the context. Generalized from the teacher's per-channel role
// lookup to a single per-server ACL row (ServerACL.Effective).
type PermissionMiddleware struct {
	aclRepo repository.ACLRepository
}

// NewPermissionMiddleware constructs a PermissionMiddleware.
func NewPermissionMiddleware(aclRepo repository.ACLRepository) *PermissionMiddleware {
	return &PermissionMiddleware{aclRepo: aclRepo}
}

// Load resolves the caller's effective permissions for {serverId} and
// attaches them to the context without enforcing any particular bit —
// useful when a handler's own logic decides ("owner of the binding, or
// someone with BindingManage").
func (m *PermissionMiddleware) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		perms, ok := m.resolve(w, r)
		if !ok {
			return
		}
		ctx := withServerContext(r, perms)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require rejects the request with 403 unless the caller's effective
// permissions for {serverId} include perm.
func (m *PermissionMiddleware) Require(perm models.Permission, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		perms, ok := m.resolve(w, r)
		if !ok {
			return
		}
		if !perms.Has(perm) {
			pkg.ErrorWithMessage(w, r, http.StatusForbidden, "insufficient permissions")
			return
		}
		ctx := withServerContext(r, perms)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve loads the operator's effective permission bitmask for the
// {serverId} path value, short-circuiting to full permissions for platform
// admins (they bypass per-server ACL rows entirely).
func (m *PermissionMiddleware) resolve(w http.ResponseWriter, r *http.Request) (models.Permission, bool) {
	operator, ok := handlers.OperatorFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, r, http.StatusUnauthorized, "operator not found in context")
		return 0, false
	}

	serverID := r.PathValue("serverId")
	if serverID == "" {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "server context required for permission check")
		return 0, false
	}

	if operator.IsPlatformAdmin {
		return models.BasePermissions(models.RoleOwner), true
	}

	acl, err := m.aclRepo.Get(r.Context(), operator.ID, serverID)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			pkg.ErrorWithMessage(w, r, http.StatusForbidden, "insufficient permissions")
			return 0, false
		}
		pkg.ErrorWithMessage(w, r, http.StatusInternalServerError, "failed to resolve permissions")
		return 0, false
	}

	return acl.Effective(), true
}

func withServerContext(r *http.Request, perms models.Permission) context.Context {
	ctx := context.WithValue(r.Context(), handlers.ServerIDContextKey, r.PathValue("serverId"))
	return context.WithValue(ctx, handlers.PermissionsContextKey, perms)
}
