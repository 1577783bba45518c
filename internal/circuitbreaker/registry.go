package circuitbreaker

import (
	"sync"
)

// Registry owns one breaker per named dependency. It is the only mutator of
// its map; breakers live for the process lifetime.
type Registry struct {
	mutex         sync.RWMutex
	breakers      map[string]*CircuitBreaker
	config        Config
	onStateChange StateChangeFunc
}

func NewRegistry(cfg Config, onStateChange StateChangeFunc) *Registry {
	return &Registry{
		breakers:      make(map[string]*CircuitBreaker),
		config:        cfg,
		onStateChange: onStateChange,
	}
}

func (r *Registry) GetBreaker(name string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[name]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	cb = NewCircuitBreaker(name, r.config, r.onStateChange)
	r.breakers[name] = cb
	return cb
}

// Reset forces every registered breaker CLOSED.
func (r *Registry) Reset() {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}
}

func (r *Registry) Stats() map[string]Stats {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]Stats, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.Stats()
	}
	return stats
}
