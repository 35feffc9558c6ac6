package models

import (
	"time"
)

// PlatformIntegration connects a villa to a booking platform. At most one
// active integration may exist per (villa, platform) pair; this is enforced
// by a partial unique index in the schema and re-checked on create.
type PlatformIntegration struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"owner_id"`
	VillaID         string     `json:"villa_id"`
	Platform        string     `json:"platform"`
	CredentialRef   string     `json:"credential_ref"`
	SyncIntervalMin int        `json:"sync_interval_min"`
	AutoSync        bool       `json:"auto_sync"`
	Status          string     `json:"status"`
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
	LastSyncSummary *string    `json:"last_sync_summary,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Integration status constants
const (
	IntegrationStatusActive   = "active"
	IntegrationStatusError    = "error"    // last sync hit an auth failure, needs re-auth
	IntegrationStatusDisabled = "disabled"
)
