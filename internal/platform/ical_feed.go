package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/villa-sync-manager/backend/internal/calendar"
	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// eventMapper turns one parsed calendar event into a canonical booking.
// Returning false skips the event (e.g. a platform's "blocked" entries).
type eventMapper func(event models.CalendarEvent) (models.Booking, bool)

// icalFeed is the shared implementation for platforms that expose bookings
// as an iCal feed (Airbnb, VRBO). Those feeds are read-only, so all listing
// operations report ErrCapabilityNotSupported.
type icalFeed struct {
	name   string
	parser *calendar.Parser
	mapper eventMapper
}

// credFieldFeedURL is the credential field iCal-feed adapters require.
const credFieldFeedURL = "ical_url"

func (f *icalFeed) Name() string {
	return f.name
}

func (f *icalFeed) FetchCalendar(ctx context.Context, creds *models.CredentialSet, window Window) ([]models.CalendarEvent, error) {
	url := creds.Field(credFieldFeedURL)
	if url == "" {
		return nil, &Error{Kind: AuthFailure, Message: fmt.Sprintf("credential set is missing %q", credFieldFeedURL)}
	}

	events, err := f.parser.FetchAndParse(ctx, url)
	if err != nil {
		return nil, feedError(err)
	}

	return calendar.FilterByDateRange(events, window.Start, window.End), nil
}

func (f *icalFeed) FetchBookings(ctx context.Context, creds *models.CredentialSet, window Window) ([]models.Booking, error) {
	events, err := f.FetchCalendar(ctx, creds, window)
	if err != nil {
		return nil, err
	}

	var bookings []models.Booking
	for _, event := range events {
		if event.UID == "" {
			return nil, &Error{Kind: MalformedResponse, Message: "event without UID in feed"}
		}
		booking, ok := f.mapper(event)
		if !ok {
			continue
		}
		bookings = append(bookings, booking)
	}

	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].StartDate.Before(bookings[j].StartDate)
	})

	return bookings, nil
}

func (f *icalFeed) PublishListing(ctx context.Context, creds *models.CredentialSet, villa *models.Villa) (string, error) {
	return "", ErrCapabilityNotSupported
}

func (f *icalFeed) UpdateListing(ctx context.Context, creds *models.CredentialSet, listingID string, villa *models.Villa) error {
	return ErrCapabilityNotSupported
}

func (f *icalFeed) DeleteListing(ctx context.Context, creds *models.CredentialSet, listingID string) error {
	return ErrCapabilityNotSupported
}

// feedError maps transport failures to the tagged taxonomy.
func feedError(err error) error {
	var statusErr *calendar.FeedStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return &Error{Kind: AuthFailure, Message: err.Error(), Cause: err}
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return &Error{Kind: RateLimited, Message: err.Error(), Cause: err}
		default:
			return &Error{Kind: Unreachable, Message: err.Error(), Cause: err}
		}
	}
	return &Error{Kind: Unreachable, Message: err.Error(), Cause: err}
}
