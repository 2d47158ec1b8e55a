package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/i474232898/weather-poller/internal/config"
	"github.com/i474232898/weather-poller/internal/geocode"
	"github.com/i474232898/weather-poller/internal/observability"
	"github.com/i474232898/weather-poller/internal/store"
	"github.com/i474232898/weather-poller/internal/weather"
	"github.com/i474232898/weather-poller/internal/weather/providers"
)

// errNoSharedStore is returned by read-only commands when records would come
// from a fresh in-memory store that no poller ever wrote to.
var errNoSharedStore = errors.New("DATABASE_URL is required: the in-memory store is not shared between processes")

// components is everything the commands share, built once at startup.
type components struct {
	cfg      *config.AppConfig
	logger   *slog.Logger
	metrics  *observability.Metrics
	registry *weather.Registry
	store    weather.Store
	pipeline *weather.Pipeline
	close    func()
}

// buildComponents wires config, logging, metrics and the record store. With
// polling set it also resolves locations and builds the provider pipeline;
// without it the store must be Postgres.
func buildComponents(ctx context.Context, polling bool) (*components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if polling {
		if err := cfg.RequireProvider(); err != nil {
			return nil, err
		}
	} else if cfg.DatabaseURL == "" {
		return nil, errNoSharedStore
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	c := &components{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		close:   func() {},
	}

	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		c.store = pg
		c.close = func() {
			if err := pg.Close(); err != nil {
				logger.Warn("close postgres", "error", err)
			}
		}
		logger.Info("using postgres record store")
	} else {
		c.store = store.NewMemoryStore()
		logger.Info("using in-memory record store")
	}

	if !polling {
		return c, nil
	}

	locations := cfg.Locations
	if cfg.GeocoderAPIKey != "" {
		locations, err = geocode.NewGoogleResolver(cfg.GeocoderAPIKey, logger).Resolve(ctx, locations)
		if err != nil {
			c.close()
			return nil, err
		}
	}
	c.registry, err = weather.NewRegistry(locations...)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("build location registry: %w", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	fetcher := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, providers.DefaultBreakerConfig())

	c.pipeline = weather.NewPipeline(fetcher, c.store, nil, logger, c.metrics)
	return c, nil
}
