package websocket

import (
	"github.com/villa-sync-manager/backend/internal/storage/models"
	"github.com/villa-sync-manager/backend/pkg/logger"
)

// EventBroadcaster handles broadcasting WebSocket events.
type EventBroadcaster struct {
	hub *Hub
	log logger.Logger
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub, log logger.Logger) *EventBroadcaster {
	return &EventBroadcaster{hub: hub, log: log}
}

// BroadcastSyncStarted announces that a sync run has begun.
func (b *EventBroadcaster) BroadcastSyncStarted(villaID, platform string) {
	b.broadcast(NewMessage(TypeSyncStarted, SyncStartedPayload{
		VillaID:  villaID,
		Platform: platform,
	}))
}

// BroadcastSyncCompleted sends the outcome of a finished sync run, including
// any conflicts it flagged.
func (b *EventBroadcaster) BroadcastSyncCompleted(result *models.SyncResult) {
	b.broadcast(NewMessage(TypeSyncCompleted, SyncCompletedPayload{
		VillaID:         result.VillaID,
		Platform:        result.Platform,
		Status:          result.Status,
		NewBookings:     result.NewBookings,
		UpdatedBookings: result.UpdatedBookings,
		Conflicts:       len(result.Conflicts),
		Errors:          len(result.Errors),
		FinishedAt:      result.FinishedAt,
	}))

	for _, conflict := range result.Conflicts {
		b.BroadcastConflictDetected(result.VillaID, result.Platform, conflict)
	}
}

// BroadcastSyncError sends a sync error event.
func (b *EventBroadcaster) BroadcastSyncError(villaID, platform, code, message string) {
	b.broadcast(NewMessage(TypeSyncError, SyncErrorPayload{
		VillaID:  villaID,
		Platform: platform,
		Error:    code,
		Message:  message,
	}))
}

// BroadcastConflictDetected sends a booking conflict event.
func (b *EventBroadcaster) BroadcastConflictDetected(villaID, platform string, detail models.ConflictDetail) {
	b.broadcast(NewMessage(TypeConflictDetected, ConflictPayload{
		VillaID:           villaID,
		Platform:          platform,
		ExternalRef:       detail.ExternalRef,
		GuestName:         detail.GuestName,
		StartDate:         detail.StartDate,
		EndDate:           detail.EndDate,
		Reason:            detail.Reason,
		ConflictingSource: detail.ConflictingSource,
	}))
}

// BroadcastBookingChanged sends a booking change event.
func (b *EventBroadcaster) BroadcastBookingChanged(booking *models.Booking, change string) {
	b.broadcast(NewMessage(TypeBookingChanged, BookingChangedPayload{
		BookingID: booking.ID,
		VillaID:   booking.VillaID,
		Source:    booking.Source,
		Change:    change,
		Status:    booking.Status,
	}))
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	b.broadcast(NewMessage(TypeNotification, NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}))
}

// BroadcastSystemStatusChanged sends a system status change event.
func (b *EventBroadcaster) BroadcastSystemStatusChanged(status map[string]any) {
	b.broadcast(NewMessage(TypeSystemStatusChanged, status))
}

// broadcast sends a message to all connected clients.
func (b *EventBroadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		b.log.Error("encoding websocket message", "error", err)
		return
	}

	b.hub.Broadcast(data)
}
