package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/villa-sync-manager/backend/internal/api/middleware"
	"github.com/villa-sync-manager/backend/internal/storage/models"
	"github.com/villa-sync-manager/backend/internal/syncer"
	"github.com/villa-sync-manager/backend/internal/websocket"
)

// SyncPlatform triggers a synchronous sync run for one (villa, platform)
// pair and returns its result. A pair already mid-sync answers 409 rather
// than queueing a second run.
func SyncPlatform(orch *syncer.Orchestrator, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		villaID, platformName := vars["id"], vars["platform"]

		if broadcaster != nil {
			broadcaster.BroadcastSyncStarted(villaID, platformName)
		}

		result, err := orch.SyncPlatform(r.Context(), villaID, platformName)
		switch {
		case syncer.IsNotConnected(err):
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotConnected, "Villa is not connected to this platform")
			return
		case syncer.IsAlreadySyncing(err):
			middleware.WriteError(w, http.StatusConflict, middleware.ErrAlreadySyncing, "A sync for this villa and platform is already running")
			return
		case result == nil:
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Sync failed to start")
			return
		}

		if broadcaster != nil {
			broadcaster.BroadcastSyncCompleted(result)
		}

		w.Header().Set("Content-Type", "application/json")
		if result.Status == models.SyncStatusFailed {
			w.WriteHeader(http.StatusBadGateway)
		}
		json.NewEncoder(w).Encode(result)
	}
}

// SyncAll triggers sync runs across every active integration of an owner's
// villas and returns the aggregated outcome.
func SyncAll(orch *syncer.Orchestrator, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.URL.Query().Get("owner_id")
		if ownerID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "owner_id query parameter is required")
			return
		}

		agg, err := orch.SyncAll(r.Context(), ownerID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to run sync")
			return
		}

		if broadcaster != nil {
			for _, result := range agg.Results {
				broadcaster.BroadcastSyncCompleted(result)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(agg)
	}
}
