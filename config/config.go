// Package config centrally manages the hub's configuration, reading from
// environment variables (with an optional .env file for development).
//
// Config groups settings into one struct per concern — Single
// Responsibility: each struct represents one concern, so nothing reaches
// into a neighboring group's fields.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries every configuration group the hub needs at startup.
type Config struct {
	WS         WSConfig
	HTTP       HTTPConfig
	DB         DBConfig
	Security   SecurityConfig
	Monitoring MonitoringConfig
	Logging    LoggingConfig
	JWT        JWTConfig
}

// WSConfig configures the connector-facing WebSocket listener.
type WSConfig struct {
	Host    string
	Port    int
	TLSCert string // empty disables TLS — plain ws://, not wss://
	TLSKey  string
}

// HTTPConfig configures the operator-facing admin API.
type HTTPConfig struct {
	Host       string
	Port       int
	CORSOrigin string // "*" or a comma-separated allowlist
}

// DBConfig configures the SQLite store.
type DBConfig struct {
	Path   string
	Prefix string // table name prefix setting; loaded but not read, so table names carry no prefix
}

// SecurityConfig holds the connector-security settings. ChallengeResponseAuth
// and EncryptionMasterKeyHex are used at startup; TokenExpiryDays,
// MaxConnections and the RateLimit* fields are loaded but no component reads
// them, so they do not cap connections or set token lifetime or rate limits.
type SecurityConfig struct {
	TokenExpiryDays         int
	MaxConnections          int
	RateLimitWindowMs       int
	RateLimitMaxRequests    int
	ChallengeResponseAuth   bool // optional compatibility path for older connectors, default false
	EncryptionMasterKeyHex  string
}

// MonitoringConfig holds the status-report cadence and history retention
// settings. They are loaded but no component reads them.
type MonitoringConfig struct {
	ReportIntervalSec     int
	HistoryRetentionDays  int
}

// LoggingConfig holds the logging level and audit retention settings. Only
// AuditRetentionDays is used (by the audit retention sweep).
type LoggingConfig struct {
	Level             string // debug, info, warn, error — loaded but not read; it does not set the slog level
	AuditRetentionDays int
}

// JWTConfig configures operator access/refresh token signing.
type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  int // minutes
	RefreshTokenExpiry int // days
}

// Load builds a Config from environment variables, loading a .env file
// first if one is present (silently skipped otherwise — production deploys
// rely on real environment variables, not a checked-in file).
func Load() (*Config, error) {
	_ = godotenv.Load()

	wsPort, err := strconv.Atoi(getEnv("WS_PORT", "9091"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_PORT: %w", err)
	}
	httpPort, err := strconv.Atoi(getEnv("HTTP_PORT", "9090"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_PORT: %w", err)
	}
	accessExpiry, err := strconv.Atoi(getEnv("JWT_ACCESS_EXPIRY_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_EXPIRY_MINUTES: %w", err)
	}
	refreshExpiry, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRY_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRY_DAYS: %w", err)
	}
	tokenExpiryDays, err := strconv.Atoi(getEnv("SECURITY_TOKEN_EXPIRY_DAYS", "365"))
	if err != nil {
		return nil, fmt.Errorf("invalid SECURITY_TOKEN_EXPIRY_DAYS: %w", err)
	}
	maxConnections, err := strconv.Atoi(getEnv("SECURITY_MAX_CONNECTIONS", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid SECURITY_MAX_CONNECTIONS: %w", err)
	}
	rateLimitWindowMs, err := strconv.Atoi(getEnv("SECURITY_RATE_LIMIT_WINDOW_MS", "10000"))
	if err != nil {
		return nil, fmt.Errorf("invalid SECURITY_RATE_LIMIT_WINDOW_MS: %w", err)
	}
	rateLimitMax, err := strconv.Atoi(getEnv("SECURITY_RATE_LIMIT_MAX_REQUESTS", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid SECURITY_RATE_LIMIT_MAX_REQUESTS: %w", err)
	}
	reportIntervalSec, err := strconv.Atoi(getEnv("MONITORING_REPORT_INTERVAL_SEC", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid MONITORING_REPORT_INTERVAL_SEC: %w", err)
	}
	historyRetentionDays, err := strconv.Atoi(getEnv("MONITORING_HISTORY_RETENTION_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid MONITORING_HISTORY_RETENTION_DAYS: %w", err)
	}
	auditRetentionDays, err := strconv.Atoi(getEnv("LOGGING_AUDIT_RETENTION_DAYS", "90"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGGING_AUDIT_RETENTION_DAYS: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg := &Config{
		WS: WSConfig{
			Host:    getEnv("WS_HOST", "0.0.0.0"),
			Port:    wsPort,
			TLSCert: getEnv("WS_TLS_CERT", ""),
			TLSKey:  getEnv("WS_TLS_KEY", ""),
		},
		HTTP: HTTPConfig{
			Host:       getEnv("HTTP_HOST", "0.0.0.0"),
			Port:       httpPort,
			CORSOrigin: getEnv("HTTP_CORS_ORIGIN", "*"),
		},
		DB: DBConfig{
			Path:   getEnv("DB_PATH", "./data/mochi-link.db"),
			Prefix: getEnv("DB_PREFIX", ""),
		},
		Security: SecurityConfig{
			TokenExpiryDays:        tokenExpiryDays,
			MaxConnections:         maxConnections,
			RateLimitWindowMs:      rateLimitWindowMs,
			RateLimitMaxRequests:   rateLimitMax,
			ChallengeResponseAuth:  strings.EqualFold(getEnv("SECURITY_CHALLENGE_RESPONSE_AUTH", "false"), "true"),
			EncryptionMasterKeyHex: getEnv("SECURITY_ENCRYPTION_MASTER_KEY", ""),
		},
		Monitoring: MonitoringConfig{
			ReportIntervalSec:    reportIntervalSec,
			HistoryRetentionDays: historyRetentionDays,
		},
		Logging: LoggingConfig{
			Level:              getEnv("LOGGING_LEVEL", "info"),
			AuditRetentionDays: auditRetentionDays,
		},
		JWT: JWTConfig{
			Secret:             jwtSecret,
			AccessTokenExpiry:  accessExpiry,
			RefreshTokenExpiry: refreshExpiry,
		},
	}

	return cfg, nil
}

// Addr returns the address the WebSocket listener binds to (e.g. "0.0.0.0:9091").
func (c *WSConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the address the admin HTTP API binds to (e.g. "0.0.0.0:9090").
func (c *HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv reads an environment variable, falling back when unset.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
