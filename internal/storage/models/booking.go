package models

import (
	"time"
)

// Booking is the canonical representation of a reservation, independent of
// the platform it originated from. Date ranges are half-open: [StartDate,
// EndDate).
type Booking struct {
	ID          string    `json:"id"`
	VillaID     string    `json:"villa_id"`
	GuestName   string    `json:"guest_name"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	TotalFare   float64   `json:"total_fare"`
	Status      string    `json:"status"`
	Source      string    `json:"source"`
	ExternalRef *string   `json:"external_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Booking status constants
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusPending   = "pending"
	BookingStatusCancelled = "cancelled"
)

// SourceManual marks bookings entered directly by an owner rather than
// synced from a platform.
const SourceManual = "manual"

// Overlaps reports whether two half-open date ranges intersect.
func (b *Booking) Overlaps(other *Booking) bool {
	return b.StartDate.Before(other.EndDate) && other.StartDate.Before(b.EndDate)
}

// IsConfirmed reports whether the booking currently occupies its date range.
func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingStatusConfirmed
}

// SameExternalRef reports whether other refers to the same platform booking.
// Manual bookings (nil ref) never match.
func (b *Booking) SameExternalRef(other *Booking) bool {
	if b.ExternalRef == nil || other.ExternalRef == nil {
		return false
	}
	return b.Source == other.Source && *b.ExternalRef == *other.ExternalRef
}
