// Package services holds the business logic layer — the seam between
// handlers (HTTP) and repository (DB). Services never see *http.Request and
// never run SQL directly; they depend on repository interfaces only.
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/repository"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService authenticates operators (humans and external systems driving
// the admin API / bot surface). It never touches Server credentials — see
// TokenService for connector auth.
type AuthService interface {
	Register(ctx context.Context, req *models.RegisterOperatorRequest) (*AuthTokens, error)
	Login(ctx context.Context, req *models.LoginRequest) (*AuthTokens, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
	ChangePassword(ctx context.Context, operatorID, currentPassword, newPassword string) error
}

// AuthTokens is the pair returned by register/login/refresh.
type AuthTokens struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	Operator     models.Operator `json:"operator"`
}

type authService struct {
	operatorRepo repository.OperatorRepository
	sessionRepo  repository.OperatorSessionRepository
	jwtSecret    []byte
	accessExp    time.Duration
	refreshExp   time.Duration
}

// NewAuthService constructs the AuthService. jwtSecret signs access tokens;
// accessExpMinutes/refreshExpDays size the token pair's lifetimes.
func NewAuthService(
	operatorRepo repository.OperatorRepository,
	sessionRepo repository.OperatorSessionRepository,
	jwtSecret string,
	accessExpMinutes int,
	refreshExpDays int,
) AuthService {
	return &authService{
		operatorRepo: operatorRepo,
		sessionRepo:  sessionRepo,
		jwtSecret:    []byte(jwtSecret),
		accessExp:    time.Duration(accessExpMinutes) * time.Minute,
		refreshExp:   time.Duration(refreshExpDays) * 24 * time.Hour,
	}
}

// Register creates an operator account. The first operator ever registered
// becomes a platform admin; every subsequent one starts unprivileged and
// must be granted ServerACL rows by an existing admin.
func (s *authService) Register(ctx context.Context, req *models.RegisterOperatorRequest) (*AuthTokens, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var displayName *string
	if req.DisplayName != "" {
		displayName = &req.DisplayName
	}
	var email *string
	if req.Email != "" {
		email = &req.Email
	}

	operator := &models.Operator{
		Username:     req.Username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Email:        email,
	}

	existingCount, err := s.operatorRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count operators: %w", err)
	}
	operator.IsPlatformAdmin = existingCount == 0

	if err := s.operatorRepo.Create(ctx, operator); err != nil {
		return nil, err
	}

	return s.generateTokens(ctx, operator)
}

// Login verifies credentials and issues a fresh token pair.
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*AuthTokens, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	operator, err := s.operatorRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			// Generic error: don't let a caller enumerate valid usernames.
			return nil, fmt.Errorf("%w: invalid username or password", pkg.ErrUnauthorized)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid username or password", pkg.ErrUnauthorized)
	}

	return s.generateTokens(ctx, operator)
}

// RefreshToken rotates a refresh token: the presented one is consumed and a
// brand new pair is issued, so a stolen refresh token can't be replayed
// after its legitimate owner has refreshed once.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	session, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid refresh token", pkg.ErrUnauthorized)
		}
		return nil, err
	}

	if time.Now().After(session.ExpiresAt) {
		if delErr := s.sessionRepo.DeleteByID(ctx, session.ID); delErr != nil {
			return nil, fmt.Errorf("failed to delete expired session: %w", delErr)
		}
		return nil, fmt.Errorf("%w: refresh token expired", pkg.ErrUnauthorized)
	}

	if err := s.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("failed to delete old session: %w", err)
	}

	operator, err := s.operatorRepo.GetByID(ctx, session.OperatorID)
	if err != nil {
		return nil, err
	}

	return s.generateTokens(ctx, operator)
}

// Logout revokes a refresh token's session; a refresh token that's already
// gone is treated as already logged out, not an error.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.sessionRepo.DeleteByID(ctx, session.ID)
}

// ValidateAccessToken verifies a JWT access token's signature and
// expiration, returning its claims. Called by middleware on every request.
func (s *authService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}
	return claims, nil
}

// ChangePassword verifies the caller's current password before replacing
// the stored hash; it does not revoke existing sessions.
func (s *authService) ChangePassword(ctx context.Context, operatorID, currentPassword, newPassword string) error {
	operator, err := s.operatorRepo.GetByID(ctx, operatorID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(currentPassword)); err != nil {
		return fmt.Errorf("%w: current password is incorrect", pkg.ErrUnauthorized)
	}
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", pkg.ErrBadRequest)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), 12)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.operatorRepo.UpdatePasswordHash(ctx, operatorID, string(hash))
}

func (s *authService) generateTokens(ctx context.Context, operator *models.Operator) (*AuthTokens, error) {
	now := time.Now()
	accessClaims := &models.TokenClaims{
		OperatorID: operator.ID,
		Username:   operator.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExp)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "mochi-link",
		},
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessString, err := accessToken.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshBytes := make([]byte, 32)
	if _, err := rand.Read(refreshBytes); err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	refreshString := hex.EncodeToString(refreshBytes)

	session := &models.OperatorSession{
		OperatorID:   operator.ID,
		RefreshToken: refreshString,
		ExpiresAt:    now.Add(s.refreshExp),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	operator.PasswordHash = ""

	return &AuthTokens{
		AccessToken:  accessString,
		RefreshToken: refreshString,
		Operator:     *operator,
	}, nil
}
