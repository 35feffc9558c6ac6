package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/villa-sync-manager/backend/internal/storage/models"
)

const expediaDefaultEndpoint = "https://api.expediapartnercentral.com/v2"

// expediaAdapter talks to the Expedia Partner Central API. Same transport
// conventions as Booking.com but a different payload shape and status
// vocabulary.
type expediaAdapter struct {
	httpClient *http.Client
}

// NewExpediaAdapter creates the Expedia adapter.
func NewExpediaAdapter(timeout time.Duration) Adapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &expediaAdapter{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (a *expediaAdapter) Name() string {
	return Expedia
}

type expediaBooking struct {
	ItineraryID string  `json:"itinerary_id"`
	Guest       string  `json:"primary_guest"`
	CheckIn     string  `json:"check_in"`  // YYYY-MM-DD
	CheckOut    string  `json:"check_out"` // YYYY-MM-DD
	Amount      float64 `json:"booking_amount"`
	State       string  `json:"state"`
}

type expediaBookingsResponse struct {
	Bookings []expediaBooking `json:"bookings"`
}

func (a *expediaAdapter) FetchBookings(ctx context.Context, creds *models.CredentialSet, window Window) ([]models.Booking, error) {
	apiKey := creds.Field(credFieldAPIKey)
	propertyID := creds.Field(credFieldPropertyID)
	if apiKey == "" || propertyID == "" {
		return nil, &Error{Kind: AuthFailure, Message: "credential set is missing api_key or property_id"}
	}

	endpoint := creds.Field(credFieldEndpoint)
	if endpoint == "" {
		endpoint = expediaDefaultEndpoint
	}

	reqURL := fmt.Sprintf("%s/properties/%s/bookings?checkInFrom=%s&checkInTo=%s",
		endpoint, url.PathEscape(propertyID),
		window.Start.UTC().Format("2006-01-02"), window.End.UTC().Format("2006-01-02"))

	var result expediaBookingsResponse
	if err := doJSON(ctx, a.httpClient, http.MethodGet, reqURL, apiKey, nil, &result); err != nil {
		return nil, err
	}

	bookings := make([]models.Booking, 0, len(result.Bookings))
	for _, eb := range result.Bookings {
		booking, err := a.toBooking(eb)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].StartDate.Before(bookings[j].StartDate)
	})

	return bookings, nil
}

func (a *expediaAdapter) toBooking(eb expediaBooking) (models.Booking, error) {
	if eb.ItineraryID == "" {
		return models.Booking{}, &Error{Kind: MalformedResponse, Message: "booking without itinerary_id"}
	}

	start, err := time.Parse("2006-01-02", eb.CheckIn)
	if err != nil {
		return models.Booking{}, &Error{Kind: MalformedResponse, Message: fmt.Sprintf("bad check_in date %q", eb.CheckIn), Cause: err}
	}
	end, err := time.Parse("2006-01-02", eb.CheckOut)
	if err != nil {
		return models.Booking{}, &Error{Kind: MalformedResponse, Message: fmt.Sprintf("bad check_out date %q", eb.CheckOut), Cause: err}
	}

	// Expedia state vocabulary to canonical.
	var status string
	switch eb.State {
	case "booked", "committed":
		status = models.BookingStatusConfirmed
	case "cancelled":
		status = models.BookingStatusCancelled
	case "pending":
		status = models.BookingStatusPending
	default:
		return models.Booking{}, &Error{Kind: MalformedResponse, Message: fmt.Sprintf("unknown booking state %q", eb.State)}
	}

	ref := eb.ItineraryID
	return models.Booking{
		GuestName:   eb.Guest,
		StartDate:   start,
		EndDate:     end,
		TotalFare:   eb.Amount,
		Status:      status,
		Source:      Expedia,
		ExternalRef: &ref,
	}, nil
}

func (a *expediaAdapter) FetchCalendar(ctx context.Context, creds *models.CredentialSet, window Window) ([]models.CalendarEvent, error) {
	bookings, err := a.FetchBookings(ctx, creds, window)
	if err != nil {
		return nil, err
	}

	events := make([]models.CalendarEvent, 0, len(bookings))
	for _, b := range bookings {
		events = append(events, models.CalendarEvent{
			UID:     *b.ExternalRef,
			Summary: b.GuestName,
			Status:  b.Status,
			Start:   b.StartDate,
			End:     b.EndDate,
		})
	}
	return events, nil
}

// Listing management goes through Expedia's property onboarding flow, which
// is not exposed via this API surface.
func (a *expediaAdapter) PublishListing(ctx context.Context, creds *models.CredentialSet, villa *models.Villa) (string, error) {
	return "", ErrCapabilityNotSupported
}

func (a *expediaAdapter) UpdateListing(ctx context.Context, creds *models.CredentialSet, listingID string, villa *models.Villa) error {
	apiKey := creds.Field(credFieldAPIKey)
	if apiKey == "" {
		return &Error{Kind: AuthFailure, Message: "credential set is missing api_key"}
	}
	endpoint := creds.Field(credFieldEndpoint)
	if endpoint == "" {
		endpoint = expediaDefaultEndpoint
	}
	return doJSON(ctx, a.httpClient, http.MethodPut, endpoint+"/properties/"+url.PathEscape(listingID), apiKey, listingPayload(villa), nil)
}

func (a *expediaAdapter) DeleteListing(ctx context.Context, creds *models.CredentialSet, listingID string) error {
	return ErrCapabilityNotSupported
}
