package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// AppConfig holds the process configuration, read from the environment.
type AppConfig struct {
	// WeatherAPIKey is the provider credential. Required: a missing or empty
	// key is a configuration error surfaced once at startup, not per-request.
	WeatherAPIKey string

	// PollInterval controls how often subscribed keys are refreshed.
	PollInterval time.Duration

	// FreshnessWindow is how long a cached forecast is served without refetching.
	FreshnessWindow time.Duration

	// FetchTimeout bounds a single outbound forecast call.
	FetchTimeout time.Duration

	// SearchDebounce is the quiet period before a search lookup is dispatched.
	SearchDebounce time.Duration

	// ForecastDays is the number of days requested per forecast fetch.
	ForecastDays int

	// RedisAddr selects the redis favorites store; empty falls back to the
	// JSON file store at FavoritesFile.
	RedisAddr     string
	FavoritesFile string

	HTTPTimeout time.Duration
	Port        string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHERAPI_API_KEY is required")
	}

	var err error
	if cfg.PollInterval, err = getenvDuration("POLL_INTERVAL", "60s"); err != nil {
		return nil, err
	}
	if cfg.FreshnessWindow, err = getenvDuration("FRESHNESS_WINDOW", "60s"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.SearchDebounce, err = getenvDuration("SEARCH_DEBOUNCE", "300ms"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}

	cfg.ForecastDays = getenvInt("FORECAST_DAYS", 7)
	if cfg.ForecastDays < 1 || cfg.ForecastDays > 14 {
		return nil, fmt.Errorf("FORECAST_DAYS must be between 1 and 14, got %d", cfg.ForecastDays)
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.FavoritesFile = getenvDefault("FAVORITES_FILE", "favorites.json")
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
