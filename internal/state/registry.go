package state

import (
	"sync"

	"configurablestub/internal/models"
)

// RouteRegistry maps route keys to the configured response behaviour.
// All methods are safe for concurrent use.
type RouteRegistry struct {
	mu     sync.RWMutex
	routes map[models.RouteKey]models.RouteConfig
}

// NewRouteRegistry creates an empty registry
func NewRouteRegistry() *RouteRegistry {
	return &RouteRegistry{
		routes: make(map[models.RouteKey]models.RouteConfig),
	}
}

// Put stores config under key, overwriting any previous entry
func (r *RouteRegistry) Put(key models.RouteKey, config models.RouteConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[key] = config
}

// Get returns the configuration stored under key
func (r *RouteRegistry) Get(key models.RouteKey) (models.RouteConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.routes[key]
	return config, ok
}

// ResetAll swaps the backing map for an empty one
func (r *RouteRegistry) ResetAll() {
	fresh := make(map[models.RouteKey]models.RouteConfig)

	r.mu.Lock()
	r.routes = fresh
	r.mu.Unlock()
}

// Len returns the number of configured routes
func (r *RouteRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}
