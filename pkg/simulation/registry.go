package simulation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned for unregistered scenario names
var ErrNotFound = errors.New("simulation not found")

// Factory builds a fresh scenario instance
type Factory func() Simulation

// Registry manages available scenarios
type Registry struct {
	mu          sync.RWMutex
	simulations map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		simulations: make(map[string]Factory),
	}
}

// Register adds a scenario under name
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("simulation needs a name and a factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.simulations[name]; exists {
		return fmt.Errorf("simulation %s already registered", name)
	}
	r.simulations[name] = factory
	return nil
}

// Get returns a new instance of the named scenario
func (r *Registry) Get(name string) (Simulation, error) {
	r.mu.RLock()
	factory, exists := r.simulations[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return factory(), nil
}

// List returns every registered name in order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.simulations))
	for name := range r.simulations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global scenario registry
var DefaultRegistry = NewRegistry()
