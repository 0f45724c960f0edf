// Package middleware holds the HTTP pipeline's chained handlers: Auth →
// Permission → the route's own handler (there is no rate-limit stage in
// the chain). Each is a plain
// func(http.Handler) http.Handler — the teacher's closure-chain idiom,
// generalized here from Discord guild membership to per-server ACLs.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/chm413/mochi-link/handlers"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/repository"
	"github.com/chm413/mochi-link/services"
)

// AuthMiddleware validates an operator's JWT access token and attaches the
// resolved Operator to the request context.
type AuthMiddleware struct {
	authService  services.AuthService
	operatorRepo repository.OperatorRepository
}

// NewAuthMiddleware constructs an AuthMiddleware.
func NewAuthMiddleware(authService services.AuthService, operatorRepo repository.OperatorRepository) *AuthMiddleware {
	return &AuthMiddleware{
		authService:  authService,
		operatorRepo: operatorRepo,
	}
}

// Require rejects any request without a valid `Authorization: Bearer <token>`
// header with 401, and otherwise attaches the operator to the context before
// calling next.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkg.ErrorWithMessage(w, r, http.StatusUnauthorized, "authorization header required")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			pkg.ErrorWithMessage(w, r, http.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := m.authService.ValidateAccessToken(tokenString)
		if err != nil {
			pkg.Error(w, r, err)
			return
		}

		// Re-fetch from the store — the token may be valid but the account
		// since deleted.
		operator, err := m.operatorRepo.GetByID(r.Context(), claims.OperatorID)
		if err != nil {
			pkg.ErrorWithMessage(w, r, http.StatusUnauthorized, "operator not found")
			return
		}
		operator.PasswordHash = ""

		ctx := context.WithValue(r.Context(), handlers.OperatorContextKey, operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
