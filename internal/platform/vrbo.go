package platform

import (
	"strings"
	"time"

	"github.com/villa-sync-manager/backend/internal/calendar"
	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// NewVRBOAdapter creates the VRBO adapter. VRBO also publishes an iCal feed,
// but uses "Blocked" summaries for owner blocks and a "RESERVE-" prefix on
// reservation UIDs.
func NewVRBOAdapter(timeout time.Duration) Adapter {
	return &icalFeed{
		name:   VRBO,
		parser: calendar.NewParser(timeout),
		mapper: mapVRBOEvent,
	}
}

func mapVRBOEvent(event models.CalendarEvent) (models.Booking, bool) {
	summary := strings.TrimSpace(event.Summary)

	if strings.EqualFold(summary, "Blocked") || strings.HasPrefix(summary, "Unavailable") {
		return models.Booking{}, false
	}

	status := models.BookingStatusConfirmed
	switch {
	case strings.EqualFold(event.Status, "CANCELLED"):
		status = models.BookingStatusCancelled
	case strings.EqualFold(event.Status, "TENTATIVE"):
		status = models.BookingStatusPending
	}

	ref := strings.TrimPrefix(event.UID, "RESERVE-")
	return models.Booking{
		GuestName:   guestNameFromSummary(summary),
		StartDate:   event.Start,
		EndDate:     event.End,
		Status:      status,
		Source:      VRBO,
		ExternalRef: &ref,
	}, true
}
