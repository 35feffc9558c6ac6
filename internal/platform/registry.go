package platform

import (
	"time"
)

// Registry dispatches platform names to adapters. Adapters are plain values
// selected by tag; there is no inheritance hierarchy.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates a registry containing the standard four adapters.
func NewRegistry(httpTimeout time.Duration) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	r.Register(NewAirbnbAdapter(httpTimeout))
	r.Register(NewVRBOAdapter(httpTimeout))
	r.Register(NewBookingComAdapter(httpTimeout))
	r.Register(NewExpediaAdapter(httpTimeout))
	return r
}

// Register adds or replaces an adapter under its own name.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Get returns the adapter for a platform name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the registered platform names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
