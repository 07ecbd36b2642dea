package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with environment variables, loading a .env file
// from the working directory first when one exists.
//
// Recognized variables:
//
//	ZENOTE_DB_DIR          database directory
//	ZENOTE_REMOTE_DSN      remote PostgreSQL DSN
//	ZENOTE_SYNC_INTERVAL   duration, e.g. "30s"
//	ZENOTE_HYDRATION_TIMEOUT duration, e.g. "15s"
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("ZENOTE_DB_DIR"); v != "" {
		cfg.DatabaseDir = v
	}
	if v := os.Getenv("ZENOTE_REMOTE_DSN"); v != "" {
		cfg.RemoteDSN = v
	}
	if v := os.Getenv("ZENOTE_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SyncInterval = d
		}
	}
	if v := os.Getenv("ZENOTE_HYDRATION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HydrationTimeout = d
		}
	}
}
