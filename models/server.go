// Package models defines the hub's domain types.
package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// CoreType distinguishes the two families of Minecraft server software the
// hub can federate.
type CoreType string

const (
	CoreTypeJava    CoreType = "java"
	CoreTypeBedrock CoreType = "bedrock"
)

// ConnectionMode is the operator-chosen integration method for a Server.
// Only "plugin" mode servers connect inbound to /ws; "rcon" and "terminal"
// imply a hub-initiated outbound connection via an adapter this hub does
// not itself implement.
type ConnectionMode string

const (
	ConnectionModePlugin   ConnectionMode = "plugin"
	ConnectionModeRCON     ConnectionMode = "rcon"
	ConnectionModeTerminal ConnectionMode = "terminal"
)

// ServerStatus is the lifecycle state machine: registered servers start
// offline, transition through connecting while the handshake is pending,
// reach online once handshake completes, and may independently enter error
// or maintenance.
type ServerStatus string

const (
	ServerStatusOffline     ServerStatus = "offline"
	ServerStatusConnecting  ServerStatus = "connecting"
	ServerStatusOnline      ServerStatus = "online"
	ServerStatusError       ServerStatus = "error"
	ServerStatusMaintenance ServerStatus = "maintenance"
)

// serverIDPattern enforces the data model's `[A-Za-z0-9_-]+`, 1-64 char id shape.
var serverIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Server is a registered Minecraft server in the hub's catalogue. ID is
// immutable after creation; deleting a Server cascades to its APITokens,
// ServerACL rows, GroupBindings, and PendingOperations.
type Server struct {
	ID               string         `json:"id"`
	DisplayName      string         `json:"displayName"`
	CoreType         CoreType       `json:"coreType"`
	CoreName         string         `json:"coreName"`
	CoreVersion      string         `json:"coreVersion"`
	ConnectionMode   ConnectionMode `json:"connectionMode"`
	ConnectionConfig map[string]any `json:"connectionConfig"`
	// CommandAllowlist/CommandBlocklist gate Command.execute (spec.md
	// §4.8): an empty allowlist means every command is allowed for
	// privileged roles; a non-empty allowlist restricts execution to
	// exactly those entries. Blocklist entries are rejected regardless of
	// the allowlist.
	CommandAllowlist []string     `json:"commandAllowlist"`
	CommandBlocklist []string     `json:"commandBlocklist"`
	Status           ServerStatus `json:"status"`
	OwnerID          string       `json:"ownerId"`
	Tags             []string     `json:"tags"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
	LastSeen         *time.Time   `json:"lastSeen,omitempty"`
}

// RegisterServerRequest is the payload for the hub's single registration
// path, `server.register` (HTTP POST /api/servers, bot mochi.server.register).
type RegisterServerRequest struct {
	ID               string         `json:"id"`
	DisplayName      string         `json:"displayName"`
	CoreType         CoreType       `json:"coreType"`
	CoreName         string         `json:"coreName"`
	CoreVersion      string         `json:"coreVersion"`
	ConnectionMode   ConnectionMode `json:"connectionMode"`
	ConnectionConfig map[string]any `json:"connectionConfig"`
	Tags             []string       `json:"tags"`
}

// Validate trims and bounds-checks a registration request against the data
// model invariants.
func (r *RegisterServerRequest) Validate() error {
	r.ID = strings.TrimSpace(r.ID)
	if !serverIDPattern.MatchString(r.ID) {
		return fmt.Errorf("id must match [A-Za-z0-9_-]{1,64}")
	}
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	if len(r.DisplayName) == 0 || len([]rune(r.DisplayName)) > 255 {
		return fmt.Errorf("displayName must be between 1 and 255 characters")
	}
	switch r.CoreType {
	case CoreTypeJava, CoreTypeBedrock:
	default:
		return fmt.Errorf("coreType must be 'java' or 'bedrock'")
	}
	r.CoreName = strings.TrimSpace(r.CoreName)
	if r.CoreName == "" {
		return fmt.Errorf("coreName is required")
	}
	switch r.ConnectionMode {
	case ConnectionModePlugin, ConnectionModeRCON, ConnectionModeTerminal:
	default:
		return fmt.Errorf("connectionMode must be one of plugin, rcon, terminal")
	}
	if r.ConnectionConfig == nil {
		r.ConnectionConfig = map[string]any{}
	}
	return nil
}

// UpdateServerRequest is a partial update: nil fields are left unchanged.
type UpdateServerRequest struct {
	DisplayName      *string       `json:"displayName"`
	CoreVersion      *string       `json:"coreVersion"`
	Tags             *[]string     `json:"tags"`
	Status           *ServerStatus `json:"status"`
	CommandAllowlist *[]string     `json:"commandAllowlist"`
	CommandBlocklist *[]string     `json:"commandBlocklist"`
}

// Validate bounds-checks the fields that were actually supplied.
func (r *UpdateServerRequest) Validate() error {
	if r.DisplayName != nil {
		trimmed := strings.TrimSpace(*r.DisplayName)
		if len(trimmed) == 0 || len([]rune(trimmed)) > 255 {
			return fmt.Errorf("displayName must be between 1 and 255 characters")
		}
		*r.DisplayName = trimmed
	}
	if r.Status != nil {
		switch *r.Status {
		case ServerStatusOffline, ServerStatusConnecting, ServerStatusOnline, ServerStatusError, ServerStatusMaintenance:
		default:
			return fmt.Errorf("invalid status")
		}
	}
	return nil
}

// ServerListFilter carries the optional filters the paginated Server list
// query accepts.
type ServerListFilter struct {
	Status *ServerStatus
	Owner  *string
	Tag    *string
	Page   int
	Limit  int
}

// ServerStatusView is the runtime status Server Manager (C6) reports —
// distinct from the persisted Server record: lastSeen/capabilities/
// playerCount/tps are best-effort, recreated from the live connection.
type ServerStatusView struct {
	Status       ServerStatus `json:"status"`
	LastSeen     *time.Time   `json:"lastSeen,omitempty"`
	Capabilities []string     `json:"capabilities"`
	PlayerCount  *int         `json:"playerCount,omitempty"`
	TPS          *float64     `json:"tps,omitempty"`
}
