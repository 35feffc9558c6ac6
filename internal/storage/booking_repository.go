package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// BookingRepository provides data access for canonical bookings.
type BookingRepository struct {
	BaseRepository
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *DB) *BookingRepository {
	return &BookingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const bookingColumns = `id, villa_id, guest_name, start_date, end_date, total_fare, status, source, external_ref, created_at, updated_at`

// Create inserts a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	b.ID = GenerateID()
	b.CreatedAt = r.Now()
	b.UpdatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID, b.VillaID, b.GuestName, b.StartDate, b.EndDate,
		b.TotalFare, b.Status, b.Source, b.ExternalRef, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting booking: %w", err)
	}

	return nil
}

// GetByID retrieves a booking by its ID. Returns nil if not found.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	row := r.DB().QueryRowContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE id = ?
	`, id)

	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying booking: %w", err)
	}
	return b, nil
}

// GetByExternalRef retrieves the booking a platform previously reported for
// this villa, keyed by (villa, source, external ref). Returns nil if not found.
func (r *BookingRepository) GetByExternalRef(ctx context.Context, villaID, source, ref string) (*models.Booking, error) {
	row := r.DB().QueryRowContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE villa_id = ? AND source = ? AND external_ref = ?
	`, villaID, source, ref)

	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying booking by external ref: %w", err)
	}
	return b, nil
}

// ListByVilla retrieves all bookings for a villa, newest stay first.
func (r *BookingRepository) ListByVilla(ctx context.Context, villaID string) ([]models.Booking, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE villa_id = ?
		ORDER BY start_date DESC
	`, villaID)
	if err != nil {
		return nil, fmt.Errorf("querying bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// ListConfirmed retrieves the current Confirmed bookings for a villa, ordered
// by start date. This is the set conflict classification runs against.
func (r *BookingRepository) ListConfirmed(ctx context.Context, villaID string) ([]models.Booking, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE villa_id = ? AND status = ?
		ORDER BY start_date
	`, villaID, models.BookingStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("querying confirmed bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// Upsert inserts the booking or, when a row with the same (villa, source,
// external ref) exists, updates it in place. Re-running a sync with unchanged
// remote data is a no-op: created and updated are both false when the stored
// row already matches.
func (r *BookingRepository) Upsert(ctx context.Context, b *models.Booking) (created, updated bool, err error) {
	if b.ExternalRef == nil {
		return false, false, fmt.Errorf("upsert requires an external ref")
	}

	existing, err := r.GetByExternalRef(ctx, b.VillaID, b.Source, *b.ExternalRef)
	if err != nil {
		return false, false, err
	}

	if existing == nil {
		if err := r.Create(ctx, b); err != nil {
			return false, false, err
		}
		return true, false, nil
	}

	b.ID = existing.ID
	if existing.StartDate.Equal(b.StartDate) &&
		existing.EndDate.Equal(b.EndDate) &&
		existing.Status == b.Status &&
		existing.GuestName == b.GuestName &&
		existing.TotalFare == b.TotalFare {
		return false, false, nil
	}

	b.UpdatedAt = r.Now()
	_, err = r.DB().ExecContext(ctx, `
		UPDATE bookings SET guest_name = ?, start_date = ?, end_date = ?, total_fare = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, b.GuestName, b.StartDate, b.EndDate, b.TotalFare, b.Status, b.UpdatedAt, b.ID)
	if err != nil {
		return false, false, fmt.Errorf("updating booking: %w", err)
	}

	return false, true, nil
}

// UpdateStatus changes a booking's status. Bookings are never hard-deleted;
// cancellation preserves the audit history while freeing the date range.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?
	`, status, r.Now(), id)
	if err != nil {
		return fmt.Errorf("updating booking status: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("booking not found: %s", id)
	}
	return nil
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	if err := row.Scan(
		&b.ID, &b.VillaID, &b.GuestName, &b.StartDate, &b.EndDate,
		&b.TotalFare, &b.Status, &b.Source, &b.ExternalRef, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return b, nil
}

func collectBookings(rows *sql.Rows) ([]models.Booking, error) {
	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}
