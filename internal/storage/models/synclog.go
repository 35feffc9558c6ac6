package models

import (
	"time"
)

// Sync outcome constants
const (
	SyncStatusSuccess   = "success"
	SyncStatusPartial   = "partial"
	SyncStatusFailed    = "failed"
	SyncStatusCancelled = "cancelled"
)

// ConflictDetail describes one booking that could not be applied during a
// sync run, with enough context for an owner to resolve it by hand.
type ConflictDetail struct {
	ExternalRef       string    `json:"external_ref"`
	GuestName         string    `json:"guest_name,omitempty"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	Reason            string    `json:"reason"`
	ConflictingID     string    `json:"conflicting_id,omitempty"`
	ConflictingSource string    `json:"conflicting_source,omitempty"`
}

// SyncResult is the outcome of one sync run, returned to callers and
// broadcast to connected clients.
type SyncResult struct {
	VillaID         string           `json:"villa_id"`
	Platform        string           `json:"platform"`
	Status          string           `json:"status"`
	NewBookings     int              `json:"new_bookings"`
	UpdatedBookings int              `json:"updated_bookings"`
	Conflicts       []ConflictDetail `json:"conflicts"`
	Errors          []string         `json:"errors"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
}

// SyncLogEntry is the immutable record of one sync run. Entries are created
// by the orchestrator's recorder and never mutated afterwards.
type SyncLogEntry struct {
	ID              string           `json:"id"`
	VillaID         string           `json:"villa_id"`
	Platform        string           `json:"platform"`
	Status          string           `json:"status"`
	NewBookings     int              `json:"new_bookings"`
	UpdatedBookings int              `json:"updated_bookings"`
	ConflictCount   int              `json:"conflict_count"`
	ErrorCount      int              `json:"error_count"`
	Conflicts       []ConflictDetail `json:"conflicts,omitempty"`
	Errors          []string         `json:"errors,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NewSyncLogEntry builds a log entry from a sync result.
func NewSyncLogEntry(result *SyncResult) *SyncLogEntry {
	return &SyncLogEntry{
		VillaID:         result.VillaID,
		Platform:        result.Platform,
		Status:          result.Status,
		NewBookings:     result.NewBookings,
		UpdatedBookings: result.UpdatedBookings,
		ConflictCount:   len(result.Conflicts),
		ErrorCount:      len(result.Errors),
		Conflicts:       result.Conflicts,
		Errors:          result.Errors,
		StartedAt:       result.StartedAt,
		FinishedAt:      result.FinishedAt,
	}
}

// SyncLogFilter narrows sync-history queries. Zero values mean "no filter".
type SyncLogFilter struct {
	VillaID  string
	Platform string
	Status   string
	From     time.Time
	To       time.Time
	Limit    int
}

// SyncStatistics aggregates sync-log outcomes for reporting.
type SyncStatistics struct {
	TotalRuns       int            `json:"total_runs"`
	ByStatus        map[string]int `json:"by_status"`
	ByPlatform      map[string]int `json:"by_platform"`
	NewBookings     int            `json:"new_bookings"`
	UpdatedBookings int            `json:"updated_bookings"`
	Conflicts       int            `json:"conflicts"`
	Errors          int            `json:"errors"`
	LastRunAt       *time.Time     `json:"last_run_at,omitempty"`
}
