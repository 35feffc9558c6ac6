// Package syncer implements the multi-platform booking synchronization
// engine: the orchestrator that runs sync passes, the conflict resolver
// that protects the no-double-confirm invariant, and the sync-log recorder.
package syncer

import (
	"context"
	"time"

	"github.com/villa-sync-manager/backend/internal/platform"
	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// BookingStore provides the booking access the orchestrator needs.
// Implemented by [storage.BookingRepository].
type BookingStore interface {
	ListConfirmed(ctx context.Context, villaID string) ([]models.Booking, error)
	Upsert(ctx context.Context, b *models.Booking) (created, updated bool, err error)
}

// IntegrationStore provides platform-integration access.
// Implemented by [storage.IntegrationRepository].
type IntegrationStore interface {
	GetActive(ctx context.Context, villaID, platform string) (*models.PlatformIntegration, error)
	ListActiveByOwner(ctx context.Context, ownerID string) ([]models.PlatformIntegration, error)
	MarkSynced(ctx context.Context, id string, at time.Time, summary string) error
	MarkError(ctx context.Context, id, message string) error
}

// LogStore persists sync log entries. Implemented by
// [storage.SyncLogRepository].
type LogStore interface {
	Insert(ctx context.Context, entry *models.SyncLogEntry) error
}

// CredentialSource resolves credential refs. Implemented by [vault.Vault].
type CredentialSource interface {
	Get(ctx context.Context, ref string) (*models.CredentialSet, error)
}

// AdapterSource dispatches platform names to adapters. Implemented by
// [platform.Registry].
type AdapterSource interface {
	Get(name string) (platform.Adapter, bool)
}
