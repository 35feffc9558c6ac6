// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/villa-sync-manager/backend/internal/api/middleware"
	"github.com/villa-sync-manager/backend/internal/storage"
	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// VillaRequest is the create/update payload for a villa.
type VillaRequest struct {
	OwnerID       string   `json:"owner_id"`
	Name          string   `json:"name"`
	Location      string   `json:"location"`
	PricePerNight float64  `json:"price_per_night"`
	Amenities     []string `json:"amenities"`
}

// ListVillas returns all villas, optionally filtered by owner_id.
func ListVillas(villas *storage.VillaRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := villas.List(r.Context(), r.URL.Query().Get("owner_id"))
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query villas")
			return
		}

		if list == nil {
			list = []models.Villa{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(list)
	}
}

// CreateVilla registers a new villa.
func CreateVilla(villas *storage.VillaRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VillaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if req.OwnerID == "" || req.Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "owner_id and name are required")
			return
		}
		if req.PricePerNight < 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "price_per_night must not be negative")
			return
		}
		if req.Amenities == nil {
			req.Amenities = []string{}
		}

		villa := &models.Villa{
			OwnerID:       req.OwnerID,
			Name:          req.Name,
			Location:      req.Location,
			PricePerNight: req.PricePerNight,
			Amenities:     req.Amenities,
		}
		if err := villas.Create(r.Context(), villa); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create villa")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(villa)
	}
}

// GetVilla returns a single villa by ID.
func GetVilla(villas *storage.VillaRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		villa, err := villas.GetByID(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query villa")
			return
		}
		if villa == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Villa not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(villa)
	}
}

// UpdateVilla modifies an existing villa.
func UpdateVilla(villas *storage.VillaRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var req VillaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if req.Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "name is required")
			return
		}
		if req.Amenities == nil {
			req.Amenities = []string{}
		}

		villa := &models.Villa{
			ID:            id,
			Name:          req.Name,
			Location:      req.Location,
			PricePerNight: req.PricePerNight,
			Amenities:     req.Amenities,
		}
		found, err := villas.Update(r.Context(), villa)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update villa")
			return
		}
		if !found {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Villa not found")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteVilla removes a villa and its bookings and integrations.
func DeleteVilla(villas *storage.VillaRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found, err := villas.Delete(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete villa")
			return
		}
		if !found {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Villa not found")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
