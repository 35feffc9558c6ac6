package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/villa-sync-manager/backend/internal/storage/models"
)

const bookingComDefaultEndpoint = "https://supply-api.booking.com/v1"

// Credential fields the Booking.com adapter reads.
const (
	credFieldAPIKey     = "api_key"
	credFieldPropertyID = "property_id"
	credFieldEndpoint   = "endpoint" // override for testing / sandbox
)

// bookingComAdapter talks to the Booking.com connectivity API.
type bookingComAdapter struct {
	httpClient *http.Client
}

// NewBookingComAdapter creates the Booking.com adapter.
func NewBookingComAdapter(timeout time.Duration) Adapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &bookingComAdapter{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (a *bookingComAdapter) Name() string {
	return BookingCom
}

// bookingComReservation is the platform's native reservation shape.
type bookingComReservation struct {
	ID        string  `json:"id"`
	GuestName string  `json:"guest_name"`
	Checkin   string  `json:"checkin"`  // YYYY-MM-DD
	Checkout  string  `json:"checkout"` // YYYY-MM-DD
	Total     float64 `json:"total_amount"`
	Status    string  `json:"status"`
}

type bookingComReservationsPage struct {
	Reservations []bookingComReservation `json:"reservations"`
	NextPage     string                  `json:"next_page,omitempty"`
}

// FetchBookings pages through the reservations endpoint for the window and
// translates each reservation to a canonical booking.
func (a *bookingComAdapter) FetchBookings(ctx context.Context, creds *models.CredentialSet, window Window) ([]models.Booking, error) {
	apiKey := creds.Field(credFieldAPIKey)
	propertyID := creds.Field(credFieldPropertyID)
	if apiKey == "" || propertyID == "" {
		return nil, &Error{Kind: AuthFailure, Message: "credential set is missing api_key or property_id"}
	}

	endpoint := creds.Field(credFieldEndpoint)
	if endpoint == "" {
		endpoint = bookingComDefaultEndpoint
	}

	var bookings []models.Booking
	page := ""
	for {
		reqURL := fmt.Sprintf("%s/properties/%s/reservations?from=%s&to=%s",
			endpoint, url.PathEscape(propertyID),
			window.Start.UTC().Format("2006-01-02"), window.End.UTC().Format("2006-01-02"))
		if page != "" {
			reqURL += "&page=" + url.QueryEscape(page)
		}

		var result bookingComReservationsPage
		if err := a.getJSON(ctx, reqURL, apiKey, &result); err != nil {
			return nil, err
		}

		for _, res := range result.Reservations {
			booking, err := a.toBooking(res)
			if err != nil {
				return nil, err
			}
			bookings = append(bookings, booking)
		}

		if result.NextPage == "" {
			break
		}
		page = result.NextPage
	}

	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].StartDate.Before(bookings[j].StartDate)
	})

	return bookings, nil
}

func (a *bookingComAdapter) toBooking(res bookingComReservation) (models.Booking, error) {
	if res.ID == "" {
		return models.Booking{}, &Error{Kind: MalformedResponse, Message: "reservation without id"}
	}

	start, err := time.Parse("2006-01-02", res.Checkin)
	if err != nil {
		return models.Booking{}, &Error{Kind: MalformedResponse, Message: fmt.Sprintf("bad checkin date %q", res.Checkin), Cause: err}
	}
	end, err := time.Parse("2006-01-02", res.Checkout)
	if err != nil {
		return models.Booking{}, &Error{Kind: MalformedResponse, Message: fmt.Sprintf("bad checkout date %q", res.Checkout), Cause: err}
	}

	// Booking.com status vocabulary to canonical.
	var status string
	switch res.Status {
	case "ok", "confirmed", "modified":
		status = models.BookingStatusConfirmed
	case "cancelled", "cancelled_by_guest", "cancelled_by_hotel", "no_show":
		status = models.BookingStatusCancelled
	case "pending", "request":
		status = models.BookingStatusPending
	default:
		return models.Booking{}, &Error{Kind: MalformedResponse, Message: fmt.Sprintf("unknown reservation status %q", res.Status)}
	}

	ref := res.ID
	return models.Booking{
		GuestName:   res.GuestName,
		StartDate:   start,
		EndDate:     end,
		TotalFare:   res.Total,
		Status:      status,
		Source:      BookingCom,
		ExternalRef: &ref,
	}, nil
}

// FetchCalendar reports availability as events derived from reservations.
func (a *bookingComAdapter) FetchCalendar(ctx context.Context, creds *models.CredentialSet, window Window) ([]models.CalendarEvent, error) {
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

type bookingComListing struct {
	ID string `json:"id"`
}

// PublishListing creates a property listing and returns the platform's ID.
func (a *bookingComAdapter) PublishListing(ctx context.Context, creds *models.CredentialSet, villa *models.Villa) (string, error) {
	apiKey := creds.Field(credFieldAPIKey)
	if apiKey == "" {
		return "", &Error{Kind: AuthFailure, Message: "credential set is missing api_key"}
	}
	endpoint := creds.Field(credFieldEndpoint)
	if endpoint == "" {
		endpoint = bookingComDefaultEndpoint
	}

	var created bookingComListing
	if err := a.sendJSON(ctx, http.MethodPost, endpoint+"/properties", apiKey, listingPayload(villa), &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &Error{Kind: MalformedResponse, Message: "create listing response without id"}
	}
	return created.ID, nil
}

// UpdateListing pushes the villa's current attributes to an existing listing.
func (a *bookingComAdapter) UpdateListing(ctx context.Context, creds *models.CredentialSet, listingID string, villa *models.Villa) error {
	apiKey := creds.Field(credFieldAPIKey)
	if apiKey == "" {
		return &Error{Kind: AuthFailure, Message: "credential set is missing api_key"}
	}
	endpoint := creds.Field(credFieldEndpoint)
	if endpoint == "" {
		endpoint = bookingComDefaultEndpoint
	}
	return a.sendJSON(ctx, http.MethodPut, endpoint+"/properties/"+url.PathEscape(listingID), apiKey, listingPayload(villa), nil)
}

// DeleteListing removes a listing from the platform.
func (a *bookingComAdapter) DeleteListing(ctx context.Context, creds *models.CredentialSet, listingID string) error {
	apiKey := creds.Field(credFieldAPIKey)
	if apiKey == "" {
		return &Error{Kind: AuthFailure, Message: "credential set is missing api_key"}
	}
	endpoint := creds.Field(credFieldEndpoint)
	if endpoint == "" {
		endpoint = bookingComDefaultEndpoint
	}
	return a.sendJSON(ctx, http.MethodDelete, endpoint+"/properties/"+url.PathEscape(listingID), apiKey, nil, nil)
}

func listingPayload(villa *models.Villa) map[string]any {
	return map[string]any{
		"name":            villa.Name,
		"location":        villa.Location,
		"price_per_night": villa.PricePerNight,
		"amenities":       villa.Amenities,
	}
}

func (a *bookingComAdapter) getJSON(ctx context.Context, reqURL, apiKey string, out any) error {
	return doJSON(ctx, a.httpClient, http.MethodGet, reqURL, apiKey, nil, out)
}

func (a *bookingComAdapter) sendJSON(ctx context.Context, method, reqURL, apiKey string, body, out any) error {
	return doJSON(ctx, a.httpClient, method, reqURL, apiKey, body, out)
}

// doJSON performs an authenticated JSON request and maps HTTP failures to
// the tagged taxonomy.
func doJSON(ctx context.Context, client *http.Client, method, reqURL, apiKey string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return &Error{Kind: Unreachable, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Error{Kind: AuthFailure, Message: fmt.Sprintf("platform returned status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &Error{Kind: RateLimited, Message: "platform rate limit hit"}
	case resp.StatusCode >= 500:
		return &Error{Kind: Unreachable, Message: fmt.Sprintf("platform returned status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &Error{Kind: MalformedResponse, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Kind: MalformedResponse, Message: "decoding response", Cause: err}
		}
	}
	return nil
}
