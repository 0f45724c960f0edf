package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/repository"
)

// TokenService issues and validates connector API tokens (C2). It plays
// the role auth_service.go plays for operator JWTs, but the credential
// here is an opaque bearer secret hashed with SHA-256 rather than a
// bcrypt-hashed password plus JWT, since connectors authenticate once per
// TCP connection rather than once per HTTP request.
type TokenService interface {
	GenerateToken(ctx context.Context, serverID string, opts models.TokenOptions) (*models.APIToken, error)
	ValidateToken(ctx context.Context, serverID, presentedToken, remoteIP string) (models.TokenValidationResult, error)
	RotateToken(ctx context.Context, serverID string) (*models.APIToken, error)
	ListTokens(ctx context.Context, serverID string) ([]models.APIToken, error)
	RevokeToken(ctx context.Context, tokenID string) error
}

type tokenService struct {
	tokens  repository.APITokenRepository
	servers repository.ServerRepository
}

// NewTokenService constructs the TokenService.
func NewTokenService(tokens repository.APITokenRepository, servers repository.ServerRepository) TokenService {
	return &tokenService{tokens: tokens, servers: servers}
}

// tokenByteLength is the raw entropy of a generated connector token before
// hex-encoding; 32 bytes matches the AES-256 key size pkg/crypto expects
// when a token also carries an EncryptionConfig.
const tokenByteLength = 32

func generateRandomToken() (string, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateToken mints a new credential for serverID. The raw token is
// returned exactly once — only its hash is kept for lookup.
func (s *tokenService) GenerateToken(ctx context.Context, serverID string, opts models.TokenOptions) (*models.APIToken, error) {
	if _, err := s.servers.GetByID(ctx, serverID); err != nil {
		return nil, err
	}

	raw, err := generateRandomToken()
	if err != nil {
		return nil, err
	}

	tok := &models.APIToken{
		ServerID:         serverID,
		Token:            raw,
		TokenHash:        hashToken(raw),
		IPWhitelist:      opts.IPWhitelist,
		EncryptionConfig: opts.EncryptionConfig,
	}
	if opts.ExpiresIn != nil {
		expiresAt := time.Now().Add(*opts.ExpiresIn)
		tok.ExpiresAt = &expiresAt
	}

	if err := s.tokens.Create(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// ValidateToken implements ws.TokenValidator: it looks the presented token
// up by hash, then checks server identity, expiry, and IP whitelist, in
// that order.
func (s *tokenService) ValidateToken(ctx context.Context, serverID, presentedToken, remoteIP string) (models.TokenValidationResult, error) {
	tok, err := s.tokens.GetByHash(ctx, hashToken(presentedToken))
	if err != nil {
		if err == pkg.ErrNotFound {
			return models.TokenNotFound, nil
		}
		return models.TokenNotFound, err
	}
	if tok.ServerID != serverID {
		return models.TokenNotFound, nil
	}
	if tok.ExpiresAt != nil && time.Now().After(*tok.ExpiresAt) {
		return models.TokenExpired, nil
	}
	if len(tok.IPWhitelist) > 0 && !ipAllowed(remoteIP, tok.IPWhitelist) {
		return models.TokenIPDenied, nil
	}

	go s.tokens.Touch(context.WithoutCancel(ctx), tok.ID)

	return models.TokenValid, nil
}

// ipAllowed reports whether remoteIP matches any entry in whitelist, each
// of which may be a bare IP or a CIDR block.
func ipAllowed(remoteIP string, whitelist []string) bool {
	ip := net.ParseIP(remoteIP)
	if ip == nil {
		return false
	}
	for _, entry := range whitelist {
		if entry == remoteIP {
			return true
		}
		if _, cidr, err := net.ParseCIDR(entry); err == nil && cidr.Contains(ip) {
			return true
		}
		if entryIP := net.ParseIP(entry); entryIP != nil && entryIP.Equal(ip) {
			return true
		}
	}
	return false
}

// RotateToken revokes every existing credential for serverID and issues a
// fresh one, so a leaked token cannot be reused once rotated.
func (s *tokenService) RotateToken(ctx context.Context, serverID string) (*models.APIToken, error) {
	existing, err := s.tokens.GetByServerID(ctx, serverID)
	if err != nil {
		return nil, err
	}
	for _, tok := range existing {
		if err := s.tokens.Revoke(ctx, tok.ID); err != nil {
			return nil, err
		}
	}
	return s.GenerateToken(ctx, serverID, models.TokenOptions{})
}

func (s *tokenService) ListTokens(ctx context.Context, serverID string) ([]models.APIToken, error) {
	return s.tokens.GetByServerID(ctx, serverID)
}

func (s *tokenService) RevokeToken(ctx context.Context, tokenID string) error {
	return s.tokens.Revoke(ctx, tokenID)
}
