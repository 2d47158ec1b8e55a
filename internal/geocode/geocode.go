package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-poller/internal/weather"
)

// LookupFunc resolves a city/country pair to coordinates.
type LookupFunc func(city, country string) (lat, lon float64, err error)

// Resolver fills in missing coordinates before the location registry is built.
type Resolver struct {
	lookup LookupFunc
	logger *slog.Logger
}

var apiKeyMu sync.Mutex

// NewGoogleResolver returns a Resolver backed by the Google Geocoding API.
func NewGoogleResolver(apiKey string, logger *slog.Logger) *Resolver {
	return NewResolver(func(city, country string) (float64, float64, error) {
		// geocoder reads its key from a package variable.
		apiKeyMu.Lock()
		defer apiKeyMu.Unlock()
		geocoder.ApiKey = apiKey

		loc, err := geocoder.Geocoding(geocoder.Address{
			City:    city,
			Country: country,
		})
		if err != nil {
			return 0, 0, err
		}
		return loc.Latitude, loc.Longitude, nil
	}, logger)
}

// NewResolver creates a Resolver around an arbitrary lookup.
func NewResolver(lookup LookupFunc, logger *slog.Logger) *Resolver {
	return &Resolver{lookup: lookup, logger: logger}
}

// Resolve returns a copy of locs where every entry has coordinates. Entries
// that already have both coordinates are left untouched.
func (r *Resolver) Resolve(ctx context.Context, locs []weather.Location) ([]weather.Location, error) {
	out := make([]weather.Location, 0, len(locs))
	for _, loc := range locs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if loc.HasCoordinates() {
			out = append(out, loc)
			continue
		}

		lat, lon, err := r.lookup(loc.City, loc.Country)
		if err != nil {
			return nil, fmt.Errorf("geocode %s: %w", loc.Key(), err)
		}
		r.logger.Info("resolved location coordinates",
			"country", loc.Country,
			"city", loc.City,
			"lat", lat,
			"lon", lon,
		)
		out = append(out, weather.NewLocation(loc.Country, loc.City, lat, lon))
	}
	return out, nil
}
