package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-poller/internal/weather"
	"github.com/i474232898/weather-poller/internal/weather/providers"
)

type AppConfig struct {
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string

	// PollInterval is the spacing between ingestion cycles.
	PollInterval time.Duration
	HTTPTimeout  time.Duration

	// DatabaseURL selects the Postgres store; empty means in-memory.
	DatabaseURL string

	Port               string
	LogLevel           string
	LogFormat          string
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins string

	// Locations to poll, in order. Entries may lack coordinates when a
	// geocoder key is configured.
	Locations      []weather.Location
	LocationsFile  string
	GeocoderAPIKey string
}

// locationsFile is the YAML layout of LOCATIONS_FILE.
type locationsFile struct {
	Locations []weather.Location `yaml:"locations"`
}

// Load reads configuration from the environment (and an optional .env file)
// with sensible defaults.
func Load() (*AppConfig, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := &AppConfig{
		OpenWeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherBaseURL: getenvDefault("OPENWEATHER_BASE_URL", providers.DefaultOpenWeatherURL),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		Port:               getenvDefault("PORT", "8080"),
		LogLevel:           getenvDefault("LOG_LEVEL", "info"),
		LogFormat:          getenvDefault("LOG_FORMAT", "json"),
		CORSAllowedOrigins: getenvDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		LocationsFile:      os.Getenv("LOCATIONS_FILE"),
		GeocoderAPIKey:     os.Getenv("GEOCODER_API_KEY"),
	}

	var err error
	if cfg.PollInterval, err = getenvDuration("POLL_INTERVAL", "1m"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT %q: %w", cfg.Port, err)
	}

	locs, err := loadLocations(cfg.LocationsFile)
	if err != nil {
		return nil, err
	}
	cfg.Locations = locs

	for _, loc := range cfg.Locations {
		if !loc.HasCoordinates() && cfg.GeocoderAPIKey == "" {
			return nil, fmt.Errorf("location %s has no coordinates and GEOCODER_API_KEY is not set", loc.Key())
		}
	}

	return cfg, nil
}

// RequireProvider reports whether the provider settings needed for polling are present.
func (c *AppConfig) RequireProvider() error {
	if c.OpenWeatherAPIKey == "" {
		return errors.New("OPENWEATHER_API_KEY is required")
	}
	return nil
}

func loadLocations(path string) ([]weather.Location, error) {
	if path == "" {
		return weather.DefaultLocations(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read LOCATIONS_FILE: %w", err)
	}

	var file locationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse LOCATIONS_FILE: %w", err)
	}
	if len(file.Locations) == 0 {
		return nil, fmt.Errorf("LOCATIONS_FILE %s defines no locations", path)
	}
	return file.Locations, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
