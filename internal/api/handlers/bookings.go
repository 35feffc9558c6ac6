package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/villa-sync-manager/backend/internal/api/middleware"
	"github.com/villa-sync-manager/backend/internal/storage"
	"github.com/villa-sync-manager/backend/internal/storage/models"
	"github.com/villa-sync-manager/backend/internal/websocket"
)

// CreateBookingRequest is the payload for a manual booking. Dates are
// calendar days ("2006-01-02"); the range is half-open, so end_date is the
// checkout day.
type CreateBookingRequest struct {
	GuestName string  `json:"guest_name"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	TotalFare float64 `json:"total_fare"`
	Status    string  `json:"status,omitempty"`
}

const dateLayout = "2006-01-02"

// ListBookings returns a villa's bookings, optionally filtered by status
// and date range.
func ListBookings(bookings *storage.BookingRepository, villas *storage.VillaRepository) http.HandlerFunc {
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

		list, err := bookings.ListByVilla(ctx, villaID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query bookings")
			return
		}

		q := r.URL.Query()
		filtered := make([]models.Booking, 0, len(list))
		for _, b := range list {
			if status := q.Get("status"); status != "" && b.Status != status {
				continue
			}
			if from, err := time.Parse(dateLayout, q.Get("from")); err == nil && !b.EndDate.After(from) {
				continue
			}
			if to, err := time.Parse(dateLayout, q.Get("to")); err == nil && !b.StartDate.Before(to) {
				continue
			}
			filtered = append(filtered, b)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(filtered)
	}
}

// GetBooking returns a single booking by ID.
func GetBooking(bookings *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		booking, err := bookings.GetByID(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query booking")
			return
		}
		if booking == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(booking)
	}
}

// CreateBooking records a manual booking for a villa. A confirmed booking
// whose dates overlap an existing confirmed booking is rejected outright;
// the owner has to resolve the clash first.
func CreateBooking(bookings *storage.BookingRepository, villas *storage.VillaRepository, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		villaID := mux.Vars(r)["id"]
		ctx := r.Context()

		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		start, err := time.Parse(dateLayout, req.StartDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "start_date must be YYYY-MM-DD")
			return
		}
		end, err := time.Parse(dateLayout, req.EndDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "end_date must be YYYY-MM-DD")
			return
		}
		if !start.Before(end) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "start_date must be before end_date")
			return
		}
		if req.TotalFare < 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "total_fare must not be negative")
			return
		}

		status := req.Status
		if status == "" {
			status = models.BookingStatusConfirmed
		}
		switch status {
		case models.BookingStatusConfirmed, models.BookingStatusPending:
		default:
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "status must be confirmed or pending")
			return
		}

		villa, err := villas.GetByID(ctx, villaID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query villa")
			return
		}
		if villa == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Villa not found")
			return
		}

		booking := &models.Booking{
			VillaID:   villaID,
			GuestName: req.GuestName,
			StartDate: start,
			EndDate:   end,
			TotalFare: req.TotalFare,
			Status:    status,
			Source:    models.SourceManual,
		}

		if booking.IsConfirmed() {
			confirmed, err := bookings.ListConfirmed(ctx, villaID)
			if err != nil {
				middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query bookings")
				return
			}
			for i := range confirmed {
				if booking.Overlaps(&confirmed[i]) {
					middleware.WriteErrorWithDetails(w, http.StatusConflict, middleware.ErrConflict,
						"Dates overlap an existing confirmed booking", confirmed[i])
					return
				}
			}
		}

		if err := bookings.Create(ctx, booking); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create booking")
			return
		}

		if broadcaster != nil {
			broadcaster.BroadcastBookingChanged(booking, "created")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(booking)
	}
}

// CancelBooking cancels a booking, freeing its date range. The row is kept
// for history.
func CancelBooking(bookings *storage.BookingRepository, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		ctx := r.Context()

		booking, err := bookings.GetByID(ctx, id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query booking")
			return
		}
		if booking == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
			return
		}
		if booking.Status == models.BookingStatusCancelled {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if err := bookings.UpdateStatus(ctx, id, models.BookingStatusCancelled); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to cancel booking")
			return
		}

		booking.Status = models.BookingStatusCancelled
		if broadcaster != nil {
			broadcaster.BroadcastBookingChanged(booking, "cancelled")
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
