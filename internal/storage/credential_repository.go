package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// CredentialRepository provides data access for platform credential sets.
// Secret values leave this package only through the vault; API reads go
// through CredentialSet.Masked.
type CredentialRepository struct {
	BaseRepository
}

// NewCredentialRepository creates a new credential repository.
func NewCredentialRepository(db *DB) *CredentialRepository {
	return &CredentialRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new credential set.
func (r *CredentialRepository) Create(ctx context.Context, c *models.CredentialSet) error {
	c.ID = GenerateID()
	c.CreatedAt = r.Now()
	c.UpdatedAt = r.Now()

	secrets, err := json.Marshal(c.Secrets)
	if err != nil {
		return fmt.Errorf("encoding secrets: %w", err)
	}

	_, err = r.DB().ExecContext(ctx, `
		INSERT INTO credential_sets (id, owner_id, platform, name, secrets, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.OwnerID, c.Platform, c.Name, string(secrets), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting credential set: %w", err)
	}

	return nil
}

// GetByID retrieves a credential set including its secrets. Returns nil if
// not found.
func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*models.CredentialSet, error) {
	row := r.DB().QueryRowContext(ctx, `
		SELECT id, owner_id, platform, name, secrets, created_at, updated_at
		FROM credential_sets WHERE id = ?
	`, id)

	c, err := scanCredential(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying credential set: %w", err)
	}
	return c, nil
}

// ListByOwner retrieves an owner's credential sets.
func (r *CredentialRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.CredentialSet, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT id, owner_id, platform, name, secrets, created_at, updated_at
		FROM credential_sets WHERE owner_id = ?
		ORDER BY platform, name
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying credential sets: %w", err)
	}
	defer rows.Close()

	var sets []models.CredentialSet
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning credential set: %w", err)
		}
		sets = append(sets, *c)
	}

	return sets, rows.Err()
}

// Update replaces a credential set's secret fields (rotation). Returns
// false if not found.
func (r *CredentialRepository) Update(ctx context.Context, c *models.CredentialSet) (bool, error) {
	secrets, err := json.Marshal(c.Secrets)
	if err != nil {
		return false, fmt.Errorf("encoding secrets: %w", err)
	}

	result, err := r.DB().ExecContext(ctx, `
		UPDATE credential_sets SET name = ?, secrets = ?, updated_at = ? WHERE id = ?
	`, c.Name, string(secrets), r.Now(), c.ID)
	if err != nil {
		return false, fmt.Errorf("updating credential set: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// Delete removes a credential set.
func (r *CredentialRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM credential_sets WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting credential set: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func scanCredential(row rowScanner) (*models.CredentialSet, error) {
	c := &models.CredentialSet{}
	var secrets string
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Platform, &c.Name, &secrets, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(secrets), &c.Secrets); err != nil {
		return nil, fmt.Errorf("decoding secrets: %w", err)
	}
	return c, nil
}
