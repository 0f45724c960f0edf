package models

import "time"

// AuditResult is the outcome recorded against an audit row.
type AuditResult string

const (
	AuditSuccess AuditResult = "success"
	AuditFailure AuditResult = "failure"
	AuditError   AuditResult = "error"
)

// AuditLog is an append-only record of an operator-visible mutation.
// Retention is time-based (logging.auditRetentionDays, default 90).
type AuditLog struct {
	ID            int64          `json:"id"`
	UserID        *string        `json:"userId,omitempty"`
	ServerID      *string        `json:"serverId,omitempty"`
	Operation     string         `json:"operation"`
	OperationData map[string]any `json:"operationData,omitempty"`
	Result        AuditResult    `json:"result"`
	ErrorMessage  *string        `json:"errorMessage,omitempty"`
	IPAddress     *string        `json:"ipAddress,omitempty"`
	UserAgent     *string        `json:"userAgent,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// AuditFilter carries the optional filters the audit list query accepts.
type AuditFilter struct {
	UserID    *string
	ServerID  *string
	Operation *string
	Since     *time.Time
	Until     *time.Time
	Page      int
	Limit     int
}
