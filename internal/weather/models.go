package weather

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Location represents a geographic polling target.
// Country/City must be provided; coordinates are checked for presence only.
type Location struct {
	Country string   `json:"country" yaml:"country" validate:"required,max=100"`
	City    string   `json:"city" yaml:"city" validate:"required"`
	Lat     *float64 `json:"lat,omitempty" yaml:"lat" validate:"required"`
	Lon     *float64 `json:"lon,omitempty" yaml:"lon" validate:"required"`
}

// NewLocation builds a Location with both coordinates set.
func NewLocation(country, city string, lat, lon float64) Location {
	return Location{
		Country: country,
		City:    city,
		Lat:     &lat,
		Lon:     &lon,
	}
}

// Key returns a canonical string key for logging and metric labels.
func (l Location) Key() string {
	return l.City + ":" + l.Country
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// clone returns a copy that shares no coordinate pointers with l.
func (l Location) clone() Location {
	if l.Lat != nil {
		lat := *l.Lat
		l.Lat = &lat
	}
	if l.Lon != nil {
		lon := *l.Lon
		l.Lon = &lon
	}
	return l
}

// Readings holds the core values every stored record needs.
type Readings struct {
	TempMin  float64
	TempMax  float64
	Temp     float64
	Humidity int
}

// Observation is the normalized result of one provider fetch. Readings is nil
// when the provider response did not carry a complete readings section.
type Observation struct {
	Name       string
	ObservedAt time.Time
	Condition  string
	Readings   *Readings
}

// Validate returns ErrMissingReadings when the observation cannot be stored.
func (o Observation) Validate() error {
	if o.Readings == nil {
		return ErrMissingReadings
	}
	return nil
}

// Record is the persisted, immutable weather entry for one location at one
// point in time. Temperatures are Kelvin, as returned by the provider.
type Record struct {
	ID          uuid.UUID `json:"id"`
	Country     string    `json:"country" validate:"required,max=100"`
	City        string    `json:"city" validate:"required"`
	MinTemp     float64   `json:"minTemp"`
	MaxTemp     float64   `json:"maxTemp"`
	CurrentTemp float64   `json:"currentTemp"`
	Humidity    int       `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"` // always UTC
}

// NewRecord maps a validated observation for loc into a record stamped at now.
func NewRecord(loc Location, obs Observation, now time.Time) (Record, error) {
	if err := obs.Validate(); err != nil {
		return Record{}, err
	}
	rec := Record{
		ID:          uuid.New(),
		Country:     loc.Country,
		City:        loc.City,
		MinTemp:     obs.Readings.TempMin,
		MaxTemp:     obs.Readings.TempMax,
		CurrentTemp: obs.Readings.Temp,
		Humidity:    obs.Readings.Humidity,
		Timestamp:   now.UTC(),
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Validate checks the field constraints of a record.
func (r Record) Validate() error {
	if r.ID == uuid.Nil {
		return fmt.Errorf("invalid record: missing id")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("invalid record: missing timestamp")
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	return nil
}
