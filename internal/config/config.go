// Package config reads the replanner's runtime configuration from
// environment variables, following the same os.Getenv-with-default
// pattern the rest of this codebase uses for its connection strings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every environment-derived setting the replanner needs
// to start: its own HTTP listener, its Postgres and Redis connections,
// the external services it calls out to, and the business parameters
// that shape a replan run.
type Config struct {
	Env        string
	ServerAddr string

	DatabaseURL string
	RedisAddr   string

	OptimizerBaseURL      string
	OptimizerAPIKey       string
	DistanceMatrixBaseURL string
	DistanceMatrixAPIKey  string
	DeviceLocationBaseURL string
	DeviceLocationAPIKey  string

	HTTPClientTimeout time.Duration

	BusinessTimezone  string
	DepotLat          float64
	DepotLng          float64
	OverflowMaxPasses int
	PredictiveHourUTC int

	MetricsAddr string
}

// Load reads Config from the environment, applying the same defaults
// a developer running this locally would expect.
func Load() (*Config, error) {
	cfg := &Config{
		Env:        getenv("APP_ENV", "production"),
		ServerAddr: getenv("SERVER_ADDR", ":8080"),

		DatabaseURL: getenv("DATABASE_URL", "postgres://localhost:5432/replanner?sslmode=disable"),
		RedisAddr:   getenv("REDIS_ADDR", "localhost:6379"),

		OptimizerBaseURL:      getenv("OPTIMIZER_BASE_URL", ""),
		OptimizerAPIKey:       getenv("OPTIMIZER_API_KEY", ""),
		DistanceMatrixBaseURL: getenv("DISTANCE_MATRIX_BASE_URL", ""),
		DistanceMatrixAPIKey:  getenv("DISTANCE_MATRIX_API_KEY", ""),
		DeviceLocationBaseURL: getenv("DEVICE_LOCATION_BASE_URL", ""),
		DeviceLocationAPIKey:  getenv("DEVICE_LOCATION_API_KEY", ""),

		BusinessTimezone: getenv("BUSINESS_TIMEZONE", "America/Edmonton"),
		MetricsAddr:      getenv("METRICS_ADDR", ":9090"),
	}

	var err error
	if cfg.HTTPClientTimeout, err = getenvDuration("HTTP_CLIENT_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.DepotLat, err = getenvFloat("DEPOT_LAT", 0); err != nil {
		return nil, err
	}
	if cfg.DepotLng, err = getenvFloat("DEPOT_LNG", 0); err != nil {
		return nil, err
	}
	if cfg.OverflowMaxPasses, err = getenvInt("OVERFLOW_MAX_PASSES", 3); err != nil {
		return nil, err
	}
	if cfg.PredictiveHourUTC, err = getenvInt("PREDICTIVE_HOUR_UTC", 15); err != nil {
		return nil, err
	}

	if cfg.OptimizerBaseURL == "" {
		return nil, fmt.Errorf("OPTIMIZER_BASE_URL must be set")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
