// Package main is the entry point for the villa sync manager server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/villa-sync-manager/backend/internal/api"
	"github.com/villa-sync-manager/backend/internal/calendar"
	"github.com/villa-sync-manager/backend/internal/config"
	"github.com/villa-sync-manager/backend/internal/platform"
	"github.com/villa-sync-manager/backend/internal/scheduler"
	"github.com/villa-sync-manager/backend/internal/storage"
	"github.com/villa-sync-manager/backend/internal/syncer"
	"github.com/villa-sync-manager/backend/internal/vault"
	"github.com/villa-sync-manager/backend/internal/websocket"
	"github.com/villa-sync-manager/backend/pkg/logger"
	"github.com/villa-sync-manager/backend/pkg/metrics"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	cfg := config.Load()

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.Addr); err != nil {
			os.Stderr.WriteString("health check failed: " + err.Error() + "\n")
			os.Exit(1)
		}
		os.Exit(0)
	}

	log := logger.NewLogger(cfg.LogLevel)

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}
	log.Info("starting villa sync manager", "version", version)

	// Initialize database
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal("creating data directory", "dir", cfg.DataDir, "error", err)
	}
	db, err := storage.NewDB(cfg.DataDir + "/villa-sync-manager.db")
	if err != nil {
		log.Fatal("opening database", "error", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(db); err != nil {
		log.Fatal("running migrations", "error", err)
	}
	log.Info("database migrations complete")

	// Initialize WebSocket hub
	hub := websocket.NewHub(log)
	go hub.Run()

	// Initialize repositories
	villaRepo := storage.NewVillaRepository(db)
	bookingRepo := storage.NewBookingRepository(db)
	integrationRepo := storage.NewIntegrationRepository(db)
	credentialRepo := storage.NewCredentialRepository(db)
	syncLogRepo := storage.NewSyncLogRepository(db)

	// Initialize sync services
	credVault := vault.New(credentialRepo)
	registry := platform.NewRegistry(cfg.AdapterTimeout)
	m := metrics.NewMetrics("villa_sync")

	recorder := syncer.NewRecorder(syncLogRepo, log)
	recorder.Start()

	orchestrator := syncer.NewOrchestrator(
		bookingRepo, integrationRepo, credVault, registry, recorder, m, log,
		syncer.Options{
			GraceDays:      cfg.GraceDays,
			HorizonDays:    cfg.HorizonDays,
			MaxAttempts:    cfg.RetryAttempts,
			AdapterTimeout: cfg.AdapterTimeout,
			Parallelism:    cfg.SyncAllParallelism,
		},
	)

	syncScheduler := scheduler.New(integrationRepo, orchestrator, log)
	syncScheduler.Start()

	// Initialize HTTP router
	router := api.NewRouter(api.Deps{
		DB:           db,
		Villas:       villaRepo,
		Bookings:     bookingRepo,
		Integrations: integrationRepo,
		Credentials:  credentialRepo,
		SyncLog:      syncLogRepo,
		Adapters:     registry,
		Orchestrator: orchestrator,
		Parser:       calendar.NewParser(cfg.AdapterTimeout),
		Hub:          hub,
		Log:          log,
		StaticDir:    cfg.StaticDir,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal("server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	syncScheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	// Flush queued sync log entries before exit.
	recorder.Close()

	log.Info("server stopped")
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return http.ErrAbortHandler
	}
	return nil
}
