package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/villa-sync-manager/backend/internal/storage/models"
)

func feedCreds(url string) *models.CredentialSet {
	return &models.CredentialSet{
		ID:      "cred-1",
		Secrets: map[string]string{"ical_url": url},
	}
}

func testWindow() Window {
	return Window{
		Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const airbnbFeed = "BEGIN:VCALENDAR\r\n" +
	"PRODID:-//Airbnb Inc//Hosting Calendar 1.0//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:res-1@airbnb.com\r\n" +
	"DTSTART;VALUE=DATE:20260601\r\n" +
	"DTEND;VALUE=DATE:20260605\r\n" +
	"SUMMARY:Reserved - Jane Doe\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:block-1@airbnb.com\r\n" +
	"DTSTART;VALUE=DATE:20260610\r\n" +
	"DTEND;VALUE=DATE:20260615\r\n" +
	"SUMMARY:Airbnb (Not available)\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:res-2@airbnb.com\r\n" +
	"DTSTART;VALUE=DATE:20260520\r\n" +
	"DTEND;VALUE=DATE:20260522\r\n" +
	"SUMMARY:Reserved\r\n" +
	"STATUS:CANCELLED\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestAirbnb_FetchBookings(t *testing.T) {
	srv := serveFeed(t, airbnbFeed)
	adapter := NewAirbnbAdapter(5 * time.Second)

	bookings, err := adapter.FetchBookings(context.Background(), feedCreds(srv.URL), testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Owner block filtered out, reservations kept, sorted by start date.
	if len(bookings) != 2 {
		t.Fatalf("bookings = %d, want 2", len(bookings))
	}

	first := bookings[0]
	if *first.ExternalRef != "res-2@airbnb.com" {
		t.Errorf("bookings not sorted by start date: first ref = %q", *first.ExternalRef)
	}
	if first.Status != models.BookingStatusCancelled {
		t.Errorf("cancelled event status = %q", first.Status)
	}

	second := bookings[1]
	if second.GuestName != "Jane Doe" {
		t.Errorf("guest name = %q, want Jane Doe (prefix stripped)", second.GuestName)
	}
	if second.Source != Airbnb {
		t.Errorf("source = %q, want %q", second.Source, Airbnb)
	}
	if !second.StartDate.Equal(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", second.StartDate)
	}
}

func TestAirbnb_MissingFeedURL_AuthFailure(t *testing.T) {
	adapter := NewAirbnbAdapter(5 * time.Second)

	_, err := adapter.FetchBookings(context.Background(),
		&models.CredentialSet{Secrets: map[string]string{}}, testWindow())

	perr, ok := AsError(err)
	if !ok || perr.Kind != AuthFailure {
		t.Fatalf("err = %v, want AuthFailure", err)
	}
}

func TestAirbnb_FeedStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusUnauthorized, AuthFailure},
		{http.StatusForbidden, AuthFailure},
		{http.StatusTooManyRequests, RateLimited},
		{http.StatusInternalServerError, Unreachable},
		{http.StatusNotFound, Unreachable},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		adapter := NewAirbnbAdapter(5 * time.Second)
		_, err := adapter.FetchBookings(context.Background(), feedCreds(srv.URL), testWindow())
		srv.Close()

		perr, ok := AsError(err)
		if !ok {
			t.Errorf("status %d: err = %v, want tagged error", tc.status, err)
			continue
		}
		if perr.Kind != tc.kind {
			t.Errorf("status %d: kind = %q, want %q", tc.status, perr.Kind, tc.kind)
		}
	}
}

func TestAirbnb_EventWithoutUID_Malformed(t *testing.T) {
	feed := "BEGIN:VCALENDAR\r\n" +
		"BEGIN:VEVENT\r\n" +
		"DTSTART;VALUE=DATE:20260601\r\n" +
		"DTEND;VALUE=DATE:20260605\r\n" +
		"SUMMARY:Reserved - Ghost\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	srv := serveFeed(t, feed)

	adapter := NewAirbnbAdapter(5 * time.Second)
	_, err := adapter.FetchBookings(context.Background(), feedCreds(srv.URL), testWindow())

	perr, ok := AsError(err)
	if !ok || perr.Kind != MalformedResponse {
		t.Fatalf("err = %v, want MalformedResponse", err)
	}
}

func TestAirbnb_ListingOps_NotSupported(t *testing.T) {
	adapter := NewAirbnbAdapter(5 * time.Second)
	creds := feedCreds("http://example.invalid")

	if _, err := adapter.PublishListing(context.Background(), creds, &models.Villa{}); err != ErrCapabilityNotSupported {
		t.Errorf("PublishListing err = %v, want ErrCapabilityNotSupported", err)
	}
	if err := adapter.DeleteListing(context.Background(), creds, "x"); err != ErrCapabilityNotSupported {
		t.Errorf("DeleteListing err = %v, want ErrCapabilityNotSupported", err)
	}
}

func TestVRBO_FetchBookings(t *testing.T) {
	feed := "BEGIN:VCALENDAR\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:RESERVE-77\r\n" +
		"DTSTART;VALUE=DATE:20260601\r\n" +
		"DTEND;VALUE=DATE:20260605\r\n" +
		"SUMMARY:Reserved - John Roe\r\n" +
		"STATUS:TENTATIVE\r\n" +
		"END:VEVENT\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:block-2\r\n" +
		"DTSTART;VALUE=DATE:20260610\r\n" +
		"DTEND;VALUE=DATE:20260615\r\n" +
		"SUMMARY:Blocked\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	srv := serveFeed(t, feed)

	adapter := NewVRBOAdapter(5 * time.Second)
	bookings, err := adapter.FetchBookings(context.Background(), feedCreds(srv.URL), testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bookings) != 1 {
		t.Fatalf("bookings = %d, want 1 (blocks filtered)", len(bookings))
	}
	b := bookings[0]
	if *b.ExternalRef != "77" {
		t.Errorf("ref = %q, want RESERVE- prefix stripped", *b.ExternalRef)
	}
	if b.Status != models.BookingStatusPending {
		t.Errorf("tentative status = %q, want pending", b.Status)
	}
	if b.Source != VRBO {
		t.Errorf("source = %q, want %q", b.Source, VRBO)
	}
}
