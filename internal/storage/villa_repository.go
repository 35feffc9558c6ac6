package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// VillaRepository provides data access for villas.
type VillaRepository struct {
	BaseRepository
}

// NewVillaRepository creates a new villa repository.
func NewVillaRepository(db *DB) *VillaRepository {
	return &VillaRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new villa.
func (r *VillaRepository) Create(ctx context.Context, v *models.Villa) error {
	v.ID = GenerateID()
	v.CreatedAt = r.Now()
	v.UpdatedAt = r.Now()

	amenities, err := json.Marshal(v.Amenities)
	if err != nil {
		return fmt.Errorf("encoding amenities: %w", err)
	}

	_, err = r.DB().ExecContext(ctx, `
		INSERT INTO villas (id, owner_id, name, location, price_per_night, amenities, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		v.ID, v.OwnerID, v.Name, v.Location, v.PricePerNight, string(amenities), v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting villa: %w", err)
	}

	return nil
}

// GetByID retrieves a villa by its ID. Returns nil if not found.
func (r *VillaRepository) GetByID(ctx context.Context, id string) (*models.Villa, error) {
	row := r.DB().QueryRowContext(ctx, `
		SELECT id, owner_id, name, location, price_per_night, amenities, created_at, updated_at
		FROM villas WHERE id = ?
	`, id)

	v, err := scanVilla(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying villa: %w", err)
	}
	return v, nil
}

// List retrieves all villas, optionally filtered by owner.
func (r *VillaRepository) List(ctx context.Context, ownerID string) ([]models.Villa, error) {
	query := `
		SELECT id, owner_id, name, location, price_per_night, amenities, created_at, updated_at
		FROM villas
	`
	var args []any
	if ownerID != "" {
		query += " WHERE owner_id = ?"
		args = append(args, ownerID)
	}
	query += " ORDER BY name"

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying villas: %w", err)
	}
	defer rows.Close()

	var villas []models.Villa
	for rows.Next() {
		v, err := scanVilla(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning villa: %w", err)
		}
		villas = append(villas, *v)
	}

	return villas, rows.Err()
}

// Update modifies an existing villa. Returns false if the villa does not exist.
func (r *VillaRepository) Update(ctx context.Context, v *models.Villa) (bool, error) {
	amenities, err := json.Marshal(v.Amenities)
	if err != nil {
		return false, fmt.Errorf("encoding amenities: %w", err)
	}

	result, err := r.DB().ExecContext(ctx, `
		UPDATE villas SET name = ?, location = ?, price_per_night = ?, amenities = ?, updated_at = ?
		WHERE id = ?
	`, v.Name, v.Location, v.PricePerNight, string(amenities), r.Now(), v.ID)
	if err != nil {
		return false, fmt.Errorf("updating villa: %w", err)
	}

	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// Delete removes a villa and, via cascade, its bookings and integrations.
func (r *VillaRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM villas WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting villa: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVilla(row rowScanner) (*models.Villa, error) {
	v := &models.Villa{}
	var amenities string
	if err := row.Scan(
		&v.ID, &v.OwnerID, &v.Name, &v.Location, &v.PricePerNight,
		&amenities, &v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(amenities), &v.Amenities); err != nil {
		return nil, fmt.Errorf("decoding amenities: %w", err)
	}
	return v, nil
}
