package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/villa-sync-manager/backend/internal/api/middleware"
	"github.com/villa-sync-manager/backend/internal/calendar"
	"github.com/villa-sync-manager/backend/internal/storage"
	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// ExportCalendar serves a villa's confirmed bookings as an iCal feed, ready
// to be subscribed to from a platform's "import calendar" settings.
func ExportCalendar(villas *storage.VillaRepository, bookings *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		villaID := mux.Vars(r)["id"]
		ctx := r.Context()

		villa, err := villas.GetByID(ctx, villaID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query villa")
			return
		}
		if villa == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Villa not found")
			return
		}

		confirmed, err := bookings.ListConfirmed(ctx, villaID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query bookings")
			return
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", villa.Name+".ics"))
		if err := calendar.Export(w, villa, confirmed); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to write calendar")
		}
	}
}

// ImportCalendarResponse summarizes an iCal import.
type ImportCalendarResponse struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// ImportCalendar ingests an iCal file posted in the request body and records
// its events as manual bookings, keeping each event's UID as the booking's
// external ref so an exported calendar imports back to the same date ranges
// and external IDs. Events overlapping a different confirmed booking are
// skipped rather than imported.
func ImportCalendar(villas *storage.VillaRepository, bookings *storage.BookingRepository, parser *calendar.Parser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		villaID := mux.Vars(r)["id"]
		ctx := r.Context()

		villa, err := villas.GetByID(ctx, villaID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query villa")
			return
		}
		if villa == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Villa not found")
			return
		}

		events, err := parser.Parse(r.Body)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid iCal data")
			return
		}

		resp := ImportCalendarResponse{Errors: []string{}}
		for _, event := range events {
			if event.Status == "CANCELLED" {
				resp.Skipped++
				continue
			}

			booking := &models.Booking{
				VillaID:   villaID,
				GuestName: event.Summary,
				StartDate: event.Start,
				EndDate:   event.End,
				Status:    models.BookingStatusConfirmed,
				Source:    models.SourceManual,
			}
			if event.UID != "" {
				ref := event.UID
				booking.ExternalRef = &ref
			}

			confirmed, err := bookings.ListConfirmed(ctx, villaID)
			if err != nil {
				resp.Errors = append(resp.Errors, fmt.Sprintf("reading bookings: %v", err))
				continue
			}
			overlap := false
			for i := range confirmed {
				existing := &confirmed[i]
				// A prior import of the same event updates in place below.
				if booking.ExternalRef != nil && existing.ExternalRef != nil &&
					existing.Source == booking.Source && *existing.ExternalRef == *booking.ExternalRef {
					continue
				}
				if booking.Overlaps(existing) {
					overlap = true
					break
				}
			}
			if overlap {
				resp.Skipped++
				continue
			}

			if booking.ExternalRef != nil {
				created, updated, err := bookings.Upsert(ctx, booking)
				if err != nil {
					resp.Errors = append(resp.Errors, fmt.Sprintf("importing %s: %v", event.UID, err))
					continue
				}
				if created || updated {
					resp.Imported++
				} else {
					resp.Skipped++
				}
				continue
			}

			if err := bookings.Create(ctx, booking); err != nil {
				resp.Errors = append(resp.Errors, "importing event: "+err.Error())
				continue
			}
			resp.Imported++
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
