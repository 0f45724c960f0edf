package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/services"
)

// TokenHandler serves connector API token issuance (C2). Generate, List and
// Rotate are guarded by PermTokenRotate at the route level; Revoke requires
// an authenticated operator but checks no per-server permission.
type TokenHandler struct {
	tokens services.TokenService
}

// NewTokenHandler constructs a TokenHandler.
func NewTokenHandler(tokens services.TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

type generateTokenRequest struct {
	ExpiresInSeconds *int64   `json:"expiresInSeconds"`
	IPWhitelist      []string `json:"ipWhitelist"`
}

// Generate handles POST /api/servers/{serverId}/tokens. The response carries
// the raw token value; List returns it too, since it is stored alongside the
// hash.
func (h *TokenHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateTokenRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	opts := models.TokenOptions{IPWhitelist: req.IPWhitelist}
	if req.ExpiresInSeconds != nil {
		d := time.Duration(*req.ExpiresInSeconds) * time.Second
		opts.ExpiresIn = &d
	}

	tok, err := h.tokens.GenerateToken(r.Context(), r.PathValue("serverId"), opts)
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusCreated, tok)
}

// List handles GET /api/servers/{serverId}/tokens. Each entry includes the
// stored raw token value along with its metadata.
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.tokens.ListTokens(r.Context(), r.PathValue("serverId"))
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, map[string]any{"tokens": tokens})
}

// Rotate handles POST /api/servers/{serverId}/tokens/rotate.
func (h *TokenHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	tok, err := h.tokens.RotateToken(r.Context(), r.PathValue("serverId"))
	if err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, tok)
}

// Revoke handles DELETE /api/tokens/{tokenId}.
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.RevokeToken(r.Context(), r.PathValue("tokenId")); err != nil {
		pkg.Error(w, r, err)
		return
	}
	pkg.JSON(w, r, http.StatusOK, map[string]string{"message": "token revoked"})
}
