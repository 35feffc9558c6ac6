package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/villa-sync-manager/backend/internal/api/middleware"
	"github.com/villa-sync-manager/backend/internal/platform"
	"github.com/villa-sync-manager/backend/internal/storage"
	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// IntegrationRequest is the create/update payload for a platform integration.
type IntegrationRequest struct {
	Platform        string `json:"platform"`
	CredentialRef   string `json:"credential_ref"`
	SyncIntervalMin int    `json:"sync_interval_min"`
	AutoSync        bool   `json:"auto_sync"`
	Status          string `json:"status,omitempty"`
}

// ListIntegrations returns all integrations for a villa, disabled included.
func ListIntegrations(integrations *storage.IntegrationRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := integrations.List(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query integrations")
			return
		}
		if list == nil {
			list = []models.PlatformIntegration{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(list)
	}
}

// CreateIntegration connects a villa to a platform. At most one non-disabled
// integration may exist per (villa, platform) pair.
func CreateIntegration(
	integrations *storage.IntegrationRepository,
	villas *storage.VillaRepository,
	credentials *storage.CredentialRepository,
	adapters *platform.Registry,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		villaID := mux.Vars(r)["id"]
		ctx := r.Context()

		var req IntegrationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if _, ok := adapters.Get(req.Platform); !ok {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Unknown platform")
			return
		}
		if req.CredentialRef == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "credential_ref is required")
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

		creds, err := credentials.GetByID(ctx, req.CredentialRef)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query credentials")
			return
		}
		if creds == nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "credential_ref does not exist")
			return
		}
		if creds.Platform != req.Platform {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Credential set belongs to a different platform")
			return
		}

		existing, err := integrations.GetActive(ctx, villaID, req.Platform)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query integrations")
			return
		}
		if existing != nil {
			middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, "Villa is already connected to this platform")
			return
		}

		integ := &models.PlatformIntegration{
			OwnerID:         villa.OwnerID,
			VillaID:         villaID,
			Platform:        req.Platform,
			CredentialRef:   req.CredentialRef,
			SyncIntervalMin: req.SyncIntervalMin,
			AutoSync:        req.AutoSync,
		}
		if err := integrations.Create(ctx, integ); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create integration")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(integ)
	}
}

// UpdateIntegration modifies an integration's settings. Setting status back
// to active clears an auth-failure flag after the owner rotates credentials.
func UpdateIntegration(integrations *storage.IntegrationRepository, credentials *storage.CredentialRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		ctx := r.Context()

		var req IntegrationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		integ, err := integrations.GetByID(ctx, id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query integration")
			return
		}
		if integ == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Integration not found")
			return
		}

		if req.CredentialRef != "" && req.CredentialRef != integ.CredentialRef {
			creds, err := credentials.GetByID(ctx, req.CredentialRef)
			if err != nil {
				middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query credentials")
				return
			}
			if creds == nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "credential_ref does not exist")
				return
			}
			if creds.Platform != integ.Platform {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Credential set belongs to a different platform")
				return
			}
			integ.CredentialRef = req.CredentialRef
		}

		if req.SyncIntervalMin > 0 {
			integ.SyncIntervalMin = req.SyncIntervalMin
		}
		integ.AutoSync = req.AutoSync
		if req.Status != "" {
			switch req.Status {
			case models.IntegrationStatusActive, models.IntegrationStatusDisabled:
				integ.Status = req.Status
			default:
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "status must be active or disabled")
				return
			}
		}

		found, err := integrations.Update(ctx, integ)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update integration")
			return
		}
		if !found {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Integration not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(integ)
	}
}

// DisableIntegration disconnects a villa from a platform. Synced bookings
// and sync history are kept.
func DisableIntegration(integrations *storage.IntegrationRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found, err := integrations.Disable(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to disable integration")
			return
		}
		if !found {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Integration not found")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
