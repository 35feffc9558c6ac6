// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Addr         string
	DataDir      string
	StaticDir    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Sync policy
	GraceDays          int
	HorizonDays        int
	RetryAttempts      int
	AdapterTimeout     time.Duration
	SyncAllParallelism int
	DefaultIntervalMin int

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables, with a .env file as
// an optional source for local development.
func Load() *Config {
	godotenv.Load()

	return &Config{
		Addr:         getEnv("ADDR", ":8099"),
		DataDir:      getEnv("DATA_DIR", "/data"),
		StaticDir:    getEnv("STATIC_DIR", "./static"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 15)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 15)) * time.Second,

		GraceDays:          getEnvAsInt("SYNC_GRACE_DAYS", 30),
		HorizonDays:        getEnvAsInt("SYNC_HORIZON_DAYS", 365),
		RetryAttempts:      getEnvAsInt("SYNC_RETRY_ATTEMPTS", 3),
		AdapterTimeout:     time.Duration(getEnvAsInt("ADAPTER_TIMEOUT", 30)) * time.Second,
		SyncAllParallelism: getEnvAsInt("SYNC_ALL_PARALLELISM", 4),
		DefaultIntervalMin: getEnvAsInt("DEFAULT_SYNC_INTERVAL_MIN", 15),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
