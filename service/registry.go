// Package service provides service registration and management
package service

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry maps service names to their constructors. Services register
// at startup (see RegisterAll) and the Manager instantiates them from
// platform configuration.
type Registry struct {
	constructors map[string]Constructor
	mu           sync.RWMutex
}

// NewServiceRegistry creates an empty service registry.
func NewServiceRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
	}
}

// Register adds a constructor under the given name. Duplicate names are
// rejected so two services cannot silently shadow each other.
func (r *Registry) Register(name string, constructor Constructor) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if constructor == nil {
		return fmt.Errorf("constructor cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}

	r.constructors[name] = constructor
	return nil
}

// Constructor returns the constructor registered under name.
func (r *Registry) Constructor(name string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	constructor, exists := r.constructors[name]
	return constructor, exists
}

// Services returns all registered service names in sorted order.
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.constructors))
}

// Constructors returns a copy of the name-to-constructor map.
func (r *Registry) Constructors() map[string]Constructor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := make(map[string]Constructor, len(r.constructors))
	maps.Copy(c, r.constructors)
	return c
}
