package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by the query path when no records are stored.
	ErrNotFound = errors.New("no weather data found")

	// ErrMissingReadings marks a provider response without a usable readings section.
	ErrMissingReadings = errors.New("weather data is missing the main section")

	// ErrMissingCoordinates is returned when a location has no latitude/longitude.
	ErrMissingCoordinates = errors.New("location requires latitude and longitude")
)

// ProviderError is a non-success HTTP status from the weather provider.
type ProviderError struct {
	Provider   string
	StatusCode int
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: unexpected status code %d", e.Provider, e.StatusCode)
}

// MalformedResponseError is a provider body that could not be decoded.
type MalformedResponseError struct {
	Provider string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Provider, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// TransportError is a network-level failure (including timeouts) reaching the provider.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StorageError is an append or query failure from a record store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrorKind classifies err for logs and metric labels.
func ErrorKind(err error) string {
	var (
		provErr      *ProviderError
		malformedErr *MalformedResponseError
		transportErr *TransportError
		storageErr   *StorageError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &provErr):
		return "provider"
	case errors.As(err, &malformedErr):
		return "malformed"
	case errors.Is(err, ErrMissingReadings):
		return "missing_readings"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &storageErr):
		return "storage"
	default:
		return "other"
	}
}
