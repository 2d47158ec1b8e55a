package weather

import (
	"context"
	"errors"
)

// DefaultLatestCount is how many records the read path returns by default.
const DefaultLatestCount = 6

// Service is the read path over the record store.
type Service struct {
	store Store
}

// NewService creates a new Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// GetLatest returns up to n of the most recent records, newest first.
// It returns ErrNotFound when nothing has been stored yet and a *StorageError
// when the store fails.
func (s *Service) GetLatest(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		n = DefaultLatestCount
	}

	records, err := s.store.LatestN(ctx, n)
	if err != nil {
		var storageErr *StorageError
		if !errors.As(err, &storageErr) {
			err = &StorageError{Op: "latest", Err: err}
		}
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}
