package models

import "time"

// IdentityMarkers are correlating signals used to merge PlayerCacheEntry
// rows referring to the same physical player across reconnects.
type IdentityMarkers struct {
	IP        *string    `json:"ip,omitempty"`
	Device    *string    `json:"device,omitempty"`
	FirstSeen *time.Time `json:"firstSeen,omitempty"`
}

// PlayerCacheEntry is the hub's best-effort, server-agnostic view of a
// player. Primary lookup is by any of {uuid, xuid, name}; entries are
// merged, not duplicated, when markers correlate. A merge conflict (e.g.
// same name, non-matching IP/device) lowers IdentityConfidence below 1 and
// surfaces via HasIdentityConflict.
type PlayerCacheEntry struct {
	UUID                *string          `json:"uuid,omitempty"`
	XUID                *string          `json:"xuid,omitempty"`
	Name                string           `json:"name"`
	DisplayName         *string          `json:"displayName,omitempty"`
	LastServerID        string           `json:"lastServerId"`
	LastSeen            time.Time        `json:"lastSeen"`
	IdentityConfidence  float64          `json:"identityConfidence"`
	IdentityMarkers     *IdentityMarkers `json:"identityMarkers,omitempty"`
	HasIdentityConflict bool             `json:"hasIdentityConflict"`
	IsPremium           *bool            `json:"isPremium,omitempty"`
	DeviceType          *string          `json:"deviceType,omitempty"`
}

// MergeFrom folds an observation of the same player into e, lowering
// IdentityConfidence and flagging a conflict when a previously recorded
// marker disagrees with the new one.
func (e *PlayerCacheEntry) MergeFrom(observed PlayerCacheEntry) {
	conflict := false
	if e.IdentityMarkers != nil && observed.IdentityMarkers != nil {
		if e.IdentityMarkers.IP != nil && observed.IdentityMarkers.IP != nil &&
			*e.IdentityMarkers.IP != *observed.IdentityMarkers.IP {
			conflict = true
		}
		if e.IdentityMarkers.Device != nil && observed.IdentityMarkers.Device != nil &&
			*e.IdentityMarkers.Device != *observed.IdentityMarkers.Device {
			conflict = true
		}
	}

	e.LastServerID = observed.LastServerID
	e.LastSeen = observed.LastSeen
	if observed.DisplayName != nil {
		e.DisplayName = observed.DisplayName
	}
	if observed.IdentityMarkers != nil {
		e.IdentityMarkers = observed.IdentityMarkers
	}
	if observed.IsPremium != nil {
		e.IsPremium = observed.IsPremium
	}
	if observed.DeviceType != nil {
		e.DeviceType = observed.DeviceType
	}

	if conflict {
		e.HasIdentityConflict = true
		e.IdentityConfidence = minFloat(e.IdentityConfidence, 0.5)
	} else if e.IdentityConfidence < 1 {
		e.IdentityConfidence = minFloat(1, e.IdentityConfidence+0.25)
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
