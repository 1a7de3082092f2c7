package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig carries all process configuration. It is loaded once in main
// and handed to constructors; core packages never read the environment.
type AppConfig struct {
	// AEMETAPIKey authenticates against the AEMET OpenData API.
	AEMETAPIKey string

	// DatabasePath is the SQLite database file (":memory:" for ephemeral).
	DatabasePath string

	// HTTPTimeout bounds every outbound AEMET call.
	HTTPTimeout time.Duration

	// Upstream identifiers for the two Antarctic stations.
	GabrielStationID string
	JuanStationID    string

	// CacheFreshness is how long a fetched window stays fresh.
	CacheFreshness time.Duration

	// WarmInterval enables the periodic cache warmer when > 0.
	// WarmWindow is the trailing window the warmer refreshes.
	WarmInterval time.Duration
	WarmWindow   time.Duration

	Port string
}

// Load reads configuration from the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}
	cfg.AEMETAPIKey = os.Getenv("AEMET_API_KEY")
	cfg.DatabasePath = getenvDefault("DATABASE_PATH", "aemet_cache.db")
	cfg.GabrielStationID = getenvDefault("AEMET_GABRIEL_STATION_ID", "89064")
	cfg.JuanStationID = getenvDefault("AEMET_JUAN_STATION_ID", "89070")
	cfg.Port = getenvDefault("PORT", "8080")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("REQUEST_TIMEOUT", "20s"); err != nil {
		return nil, err
	}
	if cfg.CacheFreshness, err = getenvDuration("CACHE_FRESHNESS", "3h"); err != nil {
		return nil, err
	}
	if cfg.WarmInterval, err = getenvDuration("WARM_INTERVAL", "0s"); err != nil {
		return nil, err
	}
	if cfg.WarmWindow, err = getenvDuration("WARM_WINDOW", "24h"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	raw := getenvDefault(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
