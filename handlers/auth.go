// Package handlers is the HTTP surface: parse the request, call a service,
// write the response. Handlers carry no business logic and never touch the
// database directly.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/pkg/ratelimit"
	"github.com/chm413/mochi-link/services"
)

// AuthHandler serves the operator auth endpoints.
type AuthHandler struct {
	authService  services.AuthService
	loginLimiter *ratelimit.LoginRateLimiter
}

// NewAuthHandler constructs an AuthHandler. loginLimiter may be nil to
// disable brute-force throttling (e.g. in tests).
func NewAuthHandler(authService services.AuthService, loginLimiter *ratelimit.LoginRateLimiter) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		loginLimiter: loginLimiter,
	}
}

// Register handles POST /api/auth/register. The first operator ever
// registered becomes a platform admin.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		pkg.Error(w, r, err)
		return
	}

	pkg.JSON(w, r, http.StatusCreated, tokens)
}

// Login handles POST /api/auth/login, with IP-based brute-force throttling.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ExtractIP(r)
	if h.loginLimiter != nil && !h.loginLimiter.Allow(ip) {
		retryAfter := h.loginLimiter.RetryAfterSeconds(ip)
		w.Header().Set("Retry-After", formatSeconds(retryAfter))
		pkg.ErrorWithMessage(w, r, http.StatusTooManyRequests,
			"too many login attempts, please try again in "+ratelimit.FormatRetryMessage(retryAfter))
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		pkg.Error(w, r, err)
		return
	}

	if h.loginLimiter != nil {
		h.loginLimiter.Reset(ip)
	}

	pkg.JSON(w, r, http.StatusOK, tokens)
}

// Refresh handles POST /api/auth/refresh. Body: {"refresh_token": "..."}.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	tokens, err := h.authService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		pkg.Error(w, r, err)
		return
	}

	pkg.JSON(w, r, http.StatusOK, tokens)
}

// Logout handles POST /api/auth/logout. Body: {"refresh_token": "..."}.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		pkg.Error(w, r, err)
		return
	}

	pkg.JSON(w, r, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/operators/me. Requires the auth middleware.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	operator, ok := OperatorFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, r, http.StatusUnauthorized, "operator not found in context")
		return
	}
	pkg.JSON(w, r, http.StatusOK, operator)
}

// ChangePassword handles POST /api/operators/me/password. Requires the auth
// middleware; operators change only their own password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	operator, ok := OperatorFromContext(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, r, http.StatusUnauthorized, "operator not found in context")
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		pkg.ErrorWithMessage(w, r, http.StatusBadRequest, "current_password and new_password are required")
		return
	}

	if err := h.authService.ChangePassword(r.Context(), operator.ID, req.CurrentPassword, req.NewPassword); err != nil {
		pkg.Error(w, r, err)
		return
	}

	pkg.JSON(w, r, http.StatusOK, map[string]string{"message": "password changed"})
}

func formatSeconds(seconds int) string {
	return time.Duration(seconds * int(time.Second)).String()
}
