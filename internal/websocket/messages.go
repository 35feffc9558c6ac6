package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeSyncStarted         MessageType = "sync.started"
	TypeSyncCompleted       MessageType = "sync.completed"
	TypeSyncError           MessageType = "sync.error"
	TypeConflictDetected    MessageType = "booking.conflict_detected"
	TypeBookingChanged      MessageType = "booking.changed"
	TypeSystemStatusChanged MessageType = "system.status_changed"
	TypeNotification        MessageType = "notification"

	// Client -> Server command types
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePing        MessageType = "ping"

	// Server -> Client response types
	TypeSubscribeAck MessageType = "subscribe.ack"
	TypePong         MessageType = "pong"
	TypeError        MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncStartedPayload is the payload for sync.started events.
type SyncStartedPayload struct {
	VillaID  string `json:"villa_id"`
	Platform string `json:"platform"`
}

// SyncCompletedPayload is the payload for sync.completed events.
type SyncCompletedPayload struct {
	VillaID         string    `json:"villa_id"`
	Platform        string    `json:"platform"`
	Status          string    `json:"status"`
	NewBookings     int       `json:"new_bookings"`
	UpdatedBookings int       `json:"updated_bookings"`
	Conflicts       int       `json:"conflicts"`
	Errors          int       `json:"errors"`
	FinishedAt      time.Time `json:"finished_at"`
}

// SyncErrorPayload is the payload for sync.error events.
type SyncErrorPayload struct {
	VillaID  string `json:"villa_id"`
	Platform string `json:"platform"`
	Error    string `json:"error"`
	Message  string `json:"message"`
}

// ConflictPayload is the payload for booking.conflict_detected events.
type ConflictPayload struct {
	VillaID           string    `json:"villa_id"`
	Platform          string    `json:"platform"`
	ExternalRef       string    `json:"external_ref"`
	GuestName         string    `json:"guest_name,omitempty"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	Reason            string    `json:"reason"`
	ConflictingSource string    `json:"conflicting_source,omitempty"`
}

// BookingChangedPayload is the payload for booking.changed events.
type BookingChangedPayload struct {
	BookingID string `json:"booking_id"`
	VillaID   string `json:"villa_id"`
	Source    string `json:"source"`
	Change    string `json:"change"` // created, updated, cancelled
	Status    string `json:"status"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level       string              `json:"level"` // info, warning, error, success
	Title       string              `json:"title"`
	Message     string              `json:"message"`
	Action      *NotificationAction `json:"action,omitempty"`
	Dismissible bool                `json:"dismissible"`
}

// NotificationAction is an optional action button for notifications.
type NotificationAction struct {
	Type  string `json:"type"` // "link"
	Label string `json:"label"`
	URL   string `json:"url"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
