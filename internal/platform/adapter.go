// Package platform contains the booking-platform adapters. Each adapter
// translates one platform's native booking representation into the canonical
// models.Booking and reports expected failure modes as tagged errors so the
// orchestrator can apply a uniform retry policy. Adapters are stateless:
// everything they need arrives with the call.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// Platform name constants. These double as booking Source values.
const (
	Airbnb     = "airbnb"
	BookingCom = "booking_com"
	VRBO       = "vrbo"
	Expedia    = "expedia"
)

// Window is the date range a sync run requests from a platform.
type Window struct {
	Start time.Time
	End   time.Time
}

// ErrorKind tags an adapter failure for the orchestrator's retry policy.
type ErrorKind string

const (
	AuthFailure       ErrorKind = "auth_failure"       // credential invalid or expired, not retried
	RateLimited       ErrorKind = "rate_limited"       // transient, retried with backoff
	Unreachable       ErrorKind = "unreachable"        // transient, retried with backoff
	MalformedResponse ErrorKind = "malformed_response" // unexpected shape, not retried
)

// Error is the tagged failure an adapter returns for expected failure modes.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Transient reports whether the orchestrator should retry the call.
func (e *Error) Transient() bool {
	return e.Kind == RateLimited || e.Kind == Unreachable
}

// AsError extracts a platform *Error from err, if present.
func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// ErrCapabilityNotSupported is returned by adapters for operations the
// platform's API does not offer (e.g. listing management over an iCal feed).
var ErrCapabilityNotSupported = errors.New("capability not supported by platform")

// Adapter is the capability set a platform integration must satisfy.
// Bookings returned by FetchBookings carry Source and ExternalRef; VillaID
// is assigned by the orchestrator.
type Adapter interface {
	Name() string
	FetchBookings(ctx context.Context, creds *models.CredentialSet, window Window) ([]models.Booking, error)
	FetchCalendar(ctx context.Context, creds *models.CredentialSet, window Window) ([]models.CalendarEvent, error)
	PublishListing(ctx context.Context, creds *models.CredentialSet, villa *models.Villa) (string, error)
	UpdateListing(ctx context.Context, creds *models.CredentialSet, listingID string, villa *models.Villa) error
	DeleteListing(ctx context.Context, creds *models.CredentialSet, listingID string) error
}
