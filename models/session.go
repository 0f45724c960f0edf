package models

import "time"

// OperatorSession backs an operator's refresh token, grounded on the
// teacher's short-lived-access/long-lived-refresh split: the access token
// is a signed JWT validated without a DB round trip; the refresh token is a
// random hex string looked up here so it can be revoked and rotated.
type OperatorSession struct {
	ID           string    `json:"id"`
	OperatorID   string    `json:"operator_id"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}
