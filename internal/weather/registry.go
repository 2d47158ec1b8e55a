package weather

import "fmt"

// Registry is the fixed, ordered set of locations polled every cycle.
type Registry struct {
	locations []Location
}

// NewRegistry validates locs and returns an immutable registry preserving their order.
func NewRegistry(locs ...Location) (*Registry, error) {
	copied := make([]Location, 0, len(locs))
	for i, loc := range locs {
		if err := validate.Struct(loc); err != nil {
			return nil, fmt.Errorf("location %d (%s): %w", i, loc.Key(), err)
		}
		copied = append(copied, loc.clone())
	}
	return &Registry{locations: copied}, nil
}

// Locations returns a copy of the registered locations in registry order.
func (r *Registry) Locations() []Location {
	out := make([]Location, 0, len(r.locations))
	for _, loc := range r.locations {
		out = append(out, loc.clone())
	}
	return out
}

// Len returns the number of registered locations.
func (r *Registry) Len() int {
	return len(r.locations)
}

// DefaultLocations returns the built-in polling targets.
func DefaultLocations() []Location {
	return []Location{
		NewLocation("US", "New York", 40.7128, -74.0060),
		NewLocation("US", "Los Angeles", 34.0522, -118.2437),
		NewLocation("FR", "Paris", 48.8566, 2.3522),
		NewLocation("FR", "Marseille", 43.2965, 5.3698),
		NewLocation("GB", "London", 51.5074, -0.1278),
		NewLocation("GB", "Manchester", 53.4808, -2.2426),
	}
}
