package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the payload carried by an operator's JWT access token.
// Defined in models (rather than services) so ws, middleware, and bot can
// all depend on it without a cycle back into services.
type TokenClaims struct {
	OperatorID string `json:"operator_id"`
	Username   string `json:"username"`
	jwt.RegisteredClaims
}
