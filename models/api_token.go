package models

import "time"

// APIToken authenticates a connector to the hub over /ws. The raw Token is
// stored once for operator retrieval (e.g. to print it after registration)
// and compared by equality on validation; TokenHash is the SHA-256 index
// used for the fast lookup-by-presented-token path.
type APIToken struct {
	ID               string     `json:"id"`
	ServerID         string     `json:"serverId"`
	Token            string     `json:"token,omitempty"`
	TokenHash        string     `json:"-"`
	IPWhitelist      []string   `json:"ipWhitelist,omitempty"`
	EncryptionConfig *EncryptionConfig `json:"encryptionConfig,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	LastUsed         *time.Time `json:"lastUsed,omitempty"`
}

// EncryptionConfig names the algorithm and key material used to encrypt
// sensitive payload fields exchanged with this server's connector.
type EncryptionConfig struct {
	Algorithm string `json:"algorithm"`
	// Material is the hex-encoded AES-256 key, encrypted at rest using the
	// hub's master key before this struct is persisted (see pkg/crypto).
	Material string `json:"material"`
}

// TokenOptions configures generateToken.
type TokenOptions struct {
	ExpiresIn        *time.Duration
	IPWhitelist      []string
	EncryptionConfig *EncryptionConfig
}

// TokenValidationResult is the outcome of validateToken.
type TokenValidationResult int

const (
	TokenValid TokenValidationResult = iota
	TokenNotFound
	TokenExpired
	TokenIPDenied
)
