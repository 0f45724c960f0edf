package models

import (
	"fmt"
	"time"
)

// BindingType is the kind of relationship a GroupBinding establishes
// between a chat group and a server.
type BindingType string

const (
	BindingChat       BindingType = "chat"
	BindingEvent      BindingType = "event"
	BindingCommand    BindingType = "command"
	BindingMonitoring BindingType = "monitoring"
	BindingFull       BindingType = "full"
)

// BindingStatus tracks whether a binding is currently serving traffic.
type BindingStatus string

const (
	BindingActive   BindingStatus = "active"
	BindingInactive BindingStatus = "inactive"
	BindingError    BindingStatus = "error"
)

// FilterAction is what a FilterRule does once it matches.
type FilterAction string

const (
	FilterAllow     FilterAction = "allow"
	FilterBlock     FilterAction = "block"
	FilterTransform FilterAction = "transform"
)

// FilterRuleType selects how Pattern is interpreted.
type FilterRuleType string

const (
	FilterRegex   FilterRuleType = "regex"
	FilterKeyword FilterRuleType = "keyword"
	FilterUser    FilterRuleType = "user"
	FilterLength  FilterRuleType = "length"
)

// FilterRule is one entry of a chat binding's filterRules list, evaluated
// in order by the Binding & Message Router.
type FilterRule struct {
	Type        FilterRuleType `json:"type"`
	Pattern     string         `json:"pattern"`
	Action      FilterAction   `json:"action"`
	Replacement string         `json:"replacement,omitempty"`
	MaxLength   int            `json:"maxLength,omitempty"`
}

// ChatBindingConfig is the per-type config for BindingChat.
type ChatBindingConfig struct {
	Enabled         bool         `json:"enabled"`
	Bidirectional   bool         `json:"bidirectional"`
	FilterRules     []FilterRule `json:"filterRules,omitempty"`
	RateLimitWindow int          `json:"windowMs"`
	RateLimitMax    int          `json:"maxMessages"`
	MessageFormat   string       `json:"messageFormat"`
}

// EventBindingConfig is the per-type config for BindingEvent.
type EventBindingConfig struct {
	EventTypes    []string              `json:"eventTypes"`
	Filters       map[string]any        `json:"filters,omitempty"`
	MessageFormat string                `json:"messageFormat"`
}

// GroupBinding is a many-to-many association between a chat group and a
// server, one binding per (groupId, serverId, bindingType) triple.
type GroupBinding struct {
	ID          string              `json:"id"`
	GroupID     string              `json:"groupId"`
	ServerID    string              `json:"serverId"`
	BindingType BindingType         `json:"bindingType"`
	ChatConfig  *ChatBindingConfig  `json:"chatConfig,omitempty"`
	EventConfig *EventBindingConfig `json:"eventConfig,omitempty"`
	CreatedBy   string              `json:"createdBy"`
	CreatedAt   time.Time           `json:"createdAt"`
	Status      BindingStatus       `json:"status"`
	LastUsedAt  *time.Time          `json:"lastUsedAt,omitempty"`
	RouteCount  int64               `json:"routeCount"`
}

// CreateBindingRequest is the payload for POST /api/bindings.
type CreateBindingRequest struct {
	GroupID     string              `json:"groupId"`
	ServerID    string              `json:"serverId"`
	BindingType BindingType         `json:"bindingType"`
	ChatConfig  *ChatBindingConfig  `json:"chatConfig,omitempty"`
	EventConfig *EventBindingConfig `json:"eventConfig,omitempty"`
}

// Validate checks the required fields are present and the type is known.
func (r *CreateBindingRequest) Validate() error {
	if r.GroupID == "" || r.ServerID == "" {
		return fmt.Errorf("groupId and serverId are required")
	}
	switch r.BindingType {
	case BindingChat, BindingEvent, BindingCommand, BindingMonitoring, BindingFull:
	default:
		return fmt.Errorf("bindingType must be one of chat, event, command, monitoring, full")
	}
	return nil
}
