package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/villa-sync-manager/backend/internal/api/middleware"
	"github.com/villa-sync-manager/backend/internal/storage"
	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// SyncHistory returns sync log entries, newest first. Supports villa_id,
// platform, status, from, to, and limit query parameters.
func SyncHistory(syncLog *storage.SyncLogRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := models.SyncLogFilter{
			VillaID:  q.Get("villa_id"),
			Platform: q.Get("platform"),
			Status:   q.Get("status"),
		}
		if from, err := time.Parse(dateLayout, q.Get("from")); err == nil {
			filter.From = from
		}
		if to, err := time.Parse(dateLayout, q.Get("to")); err == nil {
			filter.To = to
		}
		if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
			filter.Limit = limit
		}

		entries, err := syncLog.List(r.Context(), filter)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query sync history")
			return
		}
		if entries == nil {
			entries = []models.SyncLogEntry{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}
}

// SyncStatistics aggregates sync outcomes, optionally scoped to a villa via
// the villa_id query parameter.
func SyncStatistics(syncLog *storage.SyncLogRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := syncLog.Statistics(r.Context(), r.URL.Query().Get("villa_id"))
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query sync statistics")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}
