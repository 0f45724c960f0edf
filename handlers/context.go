package handlers

import (
	"context"

	"github.com/chm413/mochi-link/models"
)

// contextKey namespaces request-scoped context values so a plain string key
// from another package can never collide with one of these.
type contextKey string

const (
	// OperatorContextKey carries the authenticated *models.Operator, set by
	// middleware.AuthMiddleware.Require.
	OperatorContextKey contextKey = "operator"
	// ServerIDContextKey carries the {serverId} path parameter, set by
	// middleware.RequireServerPermission.
	ServerIDContextKey contextKey = "server_id"
	// PermissionsContextKey carries the caller's effective models.Permission
	// bitmask for ServerIDContextKey's server, set alongside it.
	PermissionsContextKey contextKey = "permissions"
)

// OperatorFromContext extracts the authenticated operator set by the auth
// middleware.
func OperatorFromContext(ctx context.Context) (*models.Operator, bool) {
	operator, ok := ctx.Value(OperatorContextKey).(*models.Operator)
	return operator, ok
}

// ServerIDFromContext extracts the {serverId} path parameter set by the
// permission middleware.
func ServerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ServerIDContextKey).(string)
	return id, ok
}

// PermissionsFromContext extracts the caller's effective permission bitmask
// for the server named by ServerIDFromContext.
func PermissionsFromContext(ctx context.Context) (models.Permission, bool) {
	perms, ok := ctx.Value(PermissionsContextKey).(models.Permission)
	return perms, ok
}
