package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// IntegrationRepository provides data access for platform integrations.
type IntegrationRepository struct {
	BaseRepository
}

// NewIntegrationRepository creates a new integration repository.
func NewIntegrationRepository(db *DB) *IntegrationRepository {
	return &IntegrationRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const integrationColumns = `id, owner_id, villa_id, platform, credential_ref, sync_interval_min, auto_sync, status, last_sync_at, last_sync_summary, created_at, updated_at`

// Create inserts a new integration. The partial unique index on
// (villa_id, platform) rejects a second non-disabled integration for the
// same pair.
func (r *IntegrationRepository) Create(ctx context.Context, integ *models.PlatformIntegration) error {
	integ.ID = GenerateID()
	integ.CreatedAt = r.Now()
	integ.UpdatedAt = r.Now()
	if integ.Status == "" {
		integ.Status = models.IntegrationStatusActive
	}
	if integ.SyncIntervalMin < 5 {
		integ.SyncIntervalMin = 15
	}

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO platform_integrations (`+integrationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		integ.ID, integ.OwnerID, integ.VillaID, integ.Platform, integ.CredentialRef,
		integ.SyncIntervalMin, integ.AutoSync, integ.Status,
		integ.LastSyncAt, integ.LastSyncSummary, integ.CreatedAt, integ.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting integration: %w", err)
	}

	return nil
}

// GetByID retrieves an integration by its ID. Returns nil if not found.
func (r *IntegrationRepository) GetByID(ctx context.Context, id string) (*models.PlatformIntegration, error) {
	row := r.DB().QueryRowContext(ctx, `
		SELECT `+integrationColumns+` FROM platform_integrations WHERE id = ?
	`, id)

	integ, err := scanIntegration(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying integration: %w", err)
	}
	return integ, nil
}

// GetActive retrieves the non-disabled integration for a (villa, platform)
// pair. Returns nil if the villa is not connected to the platform.
func (r *IntegrationRepository) GetActive(ctx context.Context, villaID, platform string) (*models.PlatformIntegration, error) {
	row := r.DB().QueryRowContext(ctx, `
		SELECT `+integrationColumns+` FROM platform_integrations
		WHERE villa_id = ? AND platform = ? AND status != ?
	`, villaID, platform, models.IntegrationStatusDisabled)

	integ, err := scanIntegration(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying active integration: %w", err)
	}
	return integ, nil
}

// ListActiveByOwner retrieves all non-disabled integrations across an
// owner's villas.
func (r *IntegrationRepository) ListActiveByOwner(ctx context.Context, ownerID string) ([]models.PlatformIntegration, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+integrationColumns+` FROM platform_integrations
		WHERE owner_id = ? AND status != ?
		ORDER BY villa_id, platform
	`, ownerID, models.IntegrationStatusDisabled)
	if err != nil {
		return nil, fmt.Errorf("querying owner integrations: %w", err)
	}
	defer rows.Close()

	return collectIntegrations(rows)
}

// ListAutoSync retrieves all integrations the scheduler should run
// periodically.
func (r *IntegrationRepository) ListAutoSync(ctx context.Context) ([]models.PlatformIntegration, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+integrationColumns+` FROM platform_integrations
		WHERE auto_sync = 1 AND status = ?
		ORDER BY last_sync_at ASC NULLS FIRST
	`, models.IntegrationStatusActive)
	if err != nil {
		return nil, fmt.Errorf("querying auto-sync integrations: %w", err)
	}
	defer rows.Close()

	return collectIntegrations(rows)
}

// List retrieves all integrations for a villa, including disabled ones.
func (r *IntegrationRepository) List(ctx context.Context, villaID string) ([]models.PlatformIntegration, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+integrationColumns+` FROM platform_integrations
		WHERE villa_id = ?
		ORDER BY platform
	`, villaID)
	if err != nil {
		return nil, fmt.Errorf("querying integrations: %w", err)
	}
	defer rows.Close()

	return collectIntegrations(rows)
}

// Update modifies an integration's settings. Returns false if not found.
func (r *IntegrationRepository) Update(ctx context.Context, integ *models.PlatformIntegration) (bool, error) {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE platform_integrations
		SET credential_ref = ?, sync_interval_min = ?, auto_sync = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, integ.CredentialRef, integ.SyncIntervalMin, integ.AutoSync, integ.Status, r.Now(), integ.ID)
	if err != nil {
		return false, fmt.Errorf("updating integration: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// MarkSynced records a completed sync run on the integration.
func (r *IntegrationRepository) MarkSynced(ctx context.Context, id string, at time.Time, summary string) error {
	_, err := r.DB().ExecContext(ctx, `
		UPDATE platform_integrations
		SET last_sync_at = ?, last_sync_summary = ?, updated_at = ?
		WHERE id = ?
	`, at, summary, r.Now(), id)
	if err != nil {
		return fmt.Errorf("marking integration synced: %w", err)
	}
	return nil
}

// MarkError flags the integration as needing re-authentication. Auto-sync
// skips integrations in this state until the owner intervenes.
func (r *IntegrationRepository) MarkError(ctx context.Context, id, message string) error {
	_, err := r.DB().ExecContext(ctx, `
		UPDATE platform_integrations
		SET status = ?, last_sync_summary = ?, updated_at = ?
		WHERE id = ?
	`, models.IntegrationStatusError, message, r.Now(), id)
	if err != nil {
		return fmt.Errorf("marking integration errored: %w", err)
	}
	return nil
}

// Disable marks the integration disabled rather than deleting it, keeping
// the sync history attributable. Returns false if not found.
func (r *IntegrationRepository) Disable(ctx context.Context, id string) (bool, error) {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE platform_integrations SET status = ?, updated_at = ? WHERE id = ?
	`, models.IntegrationStatusDisabled, r.Now(), id)
	if err != nil {
		return false, fmt.Errorf("disabling integration: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func scanIntegration(row rowScanner) (*models.PlatformIntegration, error) {
	integ := &models.PlatformIntegration{}
	if err := row.Scan(
		&integ.ID, &integ.OwnerID, &integ.VillaID, &integ.Platform, &integ.CredentialRef,
		&integ.SyncIntervalMin, &integ.AutoSync, &integ.Status,
		&integ.LastSyncAt, &integ.LastSyncSummary, &integ.CreatedAt, &integ.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return integ, nil
}

func collectIntegrations(rows *sql.Rows) ([]models.PlatformIntegration, error) {
	var integrations []models.PlatformIntegration
	for rows.Next() {
		integ, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning integration: %w", err)
		}
		integrations = append(integrations, *integ)
	}
	return integrations, rows.Err()
}
