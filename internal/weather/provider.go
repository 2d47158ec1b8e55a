package weather

import (
	"context"
)

// Fetcher retrieves the current observation for a location from a weather provider.
// Implementations perform exactly one outbound request per call.
type Fetcher interface {
	Fetch(ctx context.Context, loc Location) (Observation, error)
}

// Store is the append-only persistence contract for weather records.
type Store interface {
	// Append persists one record or returns a *StorageError.
	Append(ctx context.Context, rec Record) error
	// LatestN returns up to n records ordered by timestamp, newest first.
	LatestN(ctx context.Context, n int) ([]Record, error)
}
