// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/villa-sync-manager/backend/internal/api/handlers"
	"github.com/villa-sync-manager/backend/internal/api/middleware"
	"github.com/villa-sync-manager/backend/internal/calendar"
	"github.com/villa-sync-manager/backend/internal/platform"
	"github.com/villa-sync-manager/backend/internal/storage"
	"github.com/villa-sync-manager/backend/internal/syncer"
	"github.com/villa-sync-manager/backend/internal/websocket"
	"github.com/villa-sync-manager/backend/pkg/logger"
)

// Deps bundles everything the router's handlers need.
type Deps struct {
	DB           *storage.DB
	Villas       *storage.VillaRepository
	Bookings     *storage.BookingRepository
	Integrations *storage.IntegrationRepository
	Credentials  *storage.CredentialRepository
	SyncLog      *storage.SyncLogRepository
	Adapters     *platform.Registry
	Orchestrator *syncer.Orchestrator
	Parser       *calendar.Parser
	Hub          *websocket.Hub
	Log          logger.Logger
	StaticDir    string
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging(d.Log))
	r.Use(middleware.ErrorRecovery(d.Log))

	var broadcaster *websocket.EventBroadcaster
	if d.Hub != nil {
		broadcaster = websocket.NewEventBroadcaster(d.Hub, d.Log)
	}

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API subrouter
	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(d.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(d.DB, d.Hub)).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(d.Hub, d.Log)).Methods("GET")

	// Villa endpoints
	api.HandleFunc("/villas", handlers.ListVillas(d.Villas)).Methods("GET")
	api.HandleFunc("/villas", handlers.CreateVilla(d.Villas)).Methods("POST")
	api.HandleFunc("/villas/{id}", handlers.GetVilla(d.Villas)).Methods("GET")
	api.HandleFunc("/villas/{id}", handlers.UpdateVilla(d.Villas)).Methods("PUT")
	api.HandleFunc("/villas/{id}", handlers.DeleteVilla(d.Villas)).Methods("DELETE")

	// Booking endpoints
	api.HandleFunc("/villas/{id}/bookings", handlers.ListBookings(d.Bookings, d.Villas)).Methods("GET")
	api.HandleFunc("/villas/{id}/bookings", handlers.CreateBooking(d.Bookings, d.Villas, broadcaster)).Methods("POST")
	api.HandleFunc("/bookings/{id}", handlers.GetBooking(d.Bookings)).Methods("GET")
	api.HandleFunc("/bookings/{id}", handlers.CancelBooking(d.Bookings, broadcaster)).Methods("DELETE")

	// Integration endpoints
	api.HandleFunc("/villas/{id}/integrations", handlers.ListIntegrations(d.Integrations)).Methods("GET")
	api.HandleFunc("/villas/{id}/integrations", handlers.CreateIntegration(d.Integrations, d.Villas, d.Credentials, d.Adapters)).Methods("POST")
	api.HandleFunc("/integrations/{id}", handlers.UpdateIntegration(d.Integrations, d.Credentials)).Methods("PUT")
	api.HandleFunc("/integrations/{id}", handlers.DisableIntegration(d.Integrations)).Methods("DELETE")

	// Credential endpoints (secrets are masked in every response)
	api.HandleFunc("/credentials", handlers.ListCredentials(d.Credentials)).Methods("GET")
	api.HandleFunc("/credentials", handlers.CreateCredential(d.Credentials, d.Adapters)).Methods("POST")
	api.HandleFunc("/credentials/{id}", handlers.GetCredential(d.Credentials)).Methods("GET")
	api.HandleFunc("/credentials/{id}", handlers.UpdateCredential(d.Credentials)).Methods("PUT")
	api.HandleFunc("/credentials/{id}", handlers.DeleteCredential(d.Credentials)).Methods("DELETE")

	// Sync endpoints
	api.HandleFunc("/villas/{id}/platforms/{platform}/sync", handlers.SyncPlatform(d.Orchestrator, broadcaster)).Methods("POST")
	api.HandleFunc("/sync-all", handlers.SyncAll(d.Orchestrator, broadcaster)).Methods("POST")
	api.HandleFunc("/sync/history", handlers.SyncHistory(d.SyncLog)).Methods("GET")
	api.HandleFunc("/sync/statistics", handlers.SyncStatistics(d.SyncLog)).Methods("GET")

	// Calendar export/import
	api.HandleFunc("/villas/{id}/calendar.ics", handlers.ExportCalendar(d.Villas, d.Bookings)).Methods("GET")
	api.HandleFunc("/villas/{id}/calendar/import", handlers.ImportCalendar(d.Villas, d.Bookings, d.Parser)).Methods("POST")

	// Serve static frontend files
	if d.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(d.StaticDir)))
	}

	return r
}
