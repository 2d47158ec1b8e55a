package store

import (
	"context"
	"sort"
	"sync"

	"github.com/i474232898/weather-poller/internal/weather"
)

var _ weather.Store = (*MemoryStore)(nil)

// MemoryStore is a concurrency-safe, append-only in-memory record store.
type MemoryStore struct {
	mu sync.RWMutex

	// records in insertion order
	records []weather.Record
	ids     map[string]struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ids: make(map[string]struct{}),
	}
}

// Append stores rec. Invalid records and duplicate ids are rejected.
func (s *MemoryStore) Append(ctx context.Context, rec weather.Record) error {
	if err := ctx.Err(); err != nil {
		return &weather.StorageError{Op: "append", Err: err}
	}
	if err := rec.Validate(); err != nil {
		return &weather.StorageError{Op: "append", Err: err}
	}

	key := rec.ID.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[key]; exists {
		return &weather.StorageError{Op: "append", Err: ErrDuplicateID}
	}
	s.ids[key] = struct{}{}
	s.records = append(s.records, rec)
	return nil
}

// LatestN returns up to n records, newest timestamp first. Records sharing a
// timestamp are returned most recently appended first.
func (s *MemoryStore) LatestN(ctx context.Context, n int) ([]weather.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &weather.StorageError{Op: "latest", Err: err}
	}
	if n <= 0 {
		return []weather.Record{}, nil
	}

	s.mu.RLock()
	result := make([]weather.Record, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		result = append(result, s.records[i])
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if len(result) > n {
		result = result[:n]
	}
	return result, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
