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

// CredentialRequest is the create/update payload for a credential set.
// Secret values are write-only: responses always mask them.
type CredentialRequest struct {
	OwnerID  string            `json:"owner_id"`
	Platform string            `json:"platform"`
	Name     string            `json:"name"`
	Secrets  map[string]string `json:"secrets"`
}

// ListCredentials returns an owner's credential sets with secrets masked.
func ListCredentials(credentials *storage.CredentialRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.URL.Query().Get("owner_id")
		if ownerID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "owner_id query parameter is required")
			return
		}

		sets, err := credentials.ListByOwner(r.Context(), ownerID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query credentials")
			return
		}

		masked := make([]*models.CredentialSet, 0, len(sets))
		for i := range sets {
			masked = append(masked, sets[i].Masked())
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(masked)
	}
}

// CreateCredential stores a new credential set.
func CreateCredential(credentials *storage.CredentialRepository, adapters *platform.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CredentialRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if req.OwnerID == "" || req.Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "owner_id and name are required")
			return
		}
		if _, ok := adapters.Get(req.Platform); !ok {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Unknown platform")
			return
		}
		if len(req.Secrets) == 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "secrets must not be empty")
			return
		}

		creds := &models.CredentialSet{
			OwnerID:  req.OwnerID,
			Platform: req.Platform,
			Name:     req.Name,
			Secrets:  req.Secrets,
		}
		if err := credentials.Create(r.Context(), creds); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to store credentials")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(creds.Masked())
	}
}

// GetCredential returns a credential set with secrets masked.
func GetCredential(credentials *storage.CredentialRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, err := credentials.GetByID(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query credentials")
			return
		}
		if creds == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Credential set not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(creds.Masked())
	}
}

// UpdateCredential rotates a credential set's secrets. Integrations keep
// their reference, so the next sync picks the new values up automatically.
func UpdateCredential(credentials *storage.CredentialRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		ctx := r.Context()

		var req CredentialRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		creds, err := credentials.GetByID(ctx, id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query credentials")
			return
		}
		if creds == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Credential set not found")
			return
		}

		if req.Name != "" {
			creds.Name = req.Name
		}
		if len(req.Secrets) > 0 {
			creds.Secrets = req.Secrets
		}

		found, err := credentials.Update(ctx, creds)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update credentials")
			return
		}
		if !found {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Credential set not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(creds.Masked())
	}
}

// DeleteCredential removes a credential set. Integrations still referencing
// it will fail their next sync with a dangling-ref error.
func DeleteCredential(credentials *storage.CredentialRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found, err := credentials.Delete(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete credentials")
			return
		}
		if !found {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Credential set not found")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
