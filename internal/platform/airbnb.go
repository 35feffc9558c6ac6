package platform

import (
	"strings"
	"time"

	"github.com/villa-sync-manager/backend/internal/calendar"
	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// NewAirbnbAdapter creates the Airbnb adapter. Airbnb exposes reservations
// as a per-listing iCal feed; blocked-availability entries are filtered out
// since they are not guest bookings.
func NewAirbnbAdapter(timeout time.Duration) Adapter {
	return &icalFeed{
		name:   Airbnb,
		parser: calendar.NewParser(timeout),
		mapper: mapAirbnbEvent,
	}
}

func mapAirbnbEvent(event models.CalendarEvent) (models.Booking, bool) {
	summary := strings.TrimSpace(event.Summary)

	// Airbnb marks owner blocks as "Airbnb (Not available)".
	if strings.Contains(summary, "Not available") {
		return models.Booking{}, false
	}

	status := models.BookingStatusConfirmed
	if strings.EqualFold(event.Status, "CANCELLED") {
		status = models.BookingStatusCancelled
	}

	ref := event.UID
	return models.Booking{
		GuestName:   guestNameFromSummary(summary),
		StartDate:   event.Start,
		EndDate:     event.End,
		Status:      status,
		Source:      Airbnb,
		ExternalRef: &ref,
	}, true
}

// guestNameFromSummary strips the platform's "Reserved - " style prefixes.
func guestNameFromSummary(summary string) string {
	for _, prefix := range []string{"Reserved - ", "Reserved: "} {
		if strings.HasPrefix(summary, prefix) {
			return strings.TrimPrefix(summary, prefix)
		}
	}
	if summary == "Reserved" {
		return ""
	}
	return summary
}
