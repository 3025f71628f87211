package safety

import "sync"

// Registry owns a set of named circuit breakers. It is constructed
// explicitly and passed by reference to whoever needs it; there is no
// process-wide instance.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	config   Config
	callback StateChangeCallback
}

// NewRegistry creates a registry whose breakers share the given config
// and state-change callback.
func NewRegistry(config Config, callback StateChangeCallback) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
		callback: callback,
	}
}

// GetOrCreate returns the breaker for the named operation, creating it
// on first use. Creation errors surface misconfiguration immediately.
func (r *Registry) GetOrCreate(name string) (*CircuitBreaker, error) {
	r.mu.RLock()
	if cb, exists := r.breakers[name]; exists {
		r.mu.RUnlock()
		return cb, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, exists := r.breakers[name]; exists {
		return cb, nil
	}

	cb, err := NewCircuitBreaker(name, r.config)
	if err != nil {
		return nil, err
	}
	if r.callback != nil {
		cb.SetStateChangeCallback(r.callback)
	}
	r.breakers[name] = cb
	return cb, nil
}

// Get returns an existing breaker.
func (r *Registry) Get(name string) (*CircuitBreaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, exists := r.breakers[name]
	return cb, exists
}

// GetStatistics returns snapshots for every registered breaker.
func (r *Registry) GetStatistics() []Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]Stats, 0, len(r.breakers))
	for _, cb := range r.breakers {
		stats = append(stats, cb.GetStatistics())
	}
	return stats
}

// HasOpenBreakers reports whether any breaker is currently open.
func (r *Registry) HasOpenBreakers() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cb := range r.breakers {
		if cb.GetState() == StateOpen {
			return true
		}
	}
	return false
}
