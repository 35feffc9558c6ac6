package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/villa-sync-manager/backend/internal/storage"
	"github.com/villa-sync-manager/backend/internal/storage/models"
	"github.com/villa-sync-manager/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.Ping() == nil

		status := "healthy"
		if !dbConnected {
			status = "degraded"
		}

		response := HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		}

		w.Header().Set("Content-Type", "application/json")
		if status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(response)
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	VillasCount        int    `json:"villas_count"`
	ConfirmedBookings  int    `json:"confirmed_bookings"`
	ActiveIntegrations int    `json:"active_integrations"`
	ErroredIntegrations int   `json:"errored_integrations"`
	SyncRuns24h        int    `json:"sync_runs_24h"`
	LastSyncAt         string `json:"last_sync_at,omitempty"`
	ConnectedClients   int    `json:"connected_clients"`
}

// Status returns a handler that provides system status information.
func Status(db *storage.DB, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var response StatusResponse

		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM villas").Scan(&response.VillasCount)
		db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM bookings WHERE status = ?", models.BookingStatusConfirmed,
		).Scan(&response.ConfirmedBookings)
		db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM platform_integrations WHERE status = ?", models.IntegrationStatusActive,
		).Scan(&response.ActiveIntegrations)
		db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM platform_integrations WHERE status = ?", models.IntegrationStatusError,
		).Scan(&response.ErroredIntegrations)
		db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sync_log_entries WHERE started_at >= datetime('now', '-1 day')",
		).Scan(&response.SyncRuns24h)

		var lastSync *string
		db.QueryRowContext(ctx, "SELECT MAX(started_at) FROM sync_log_entries").Scan(&lastSync)
		if lastSync != nil {
			response.LastSyncAt = *lastSync
		}

		if hub != nil {
			response.ConnectedClients = hub.ClientCount()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}
