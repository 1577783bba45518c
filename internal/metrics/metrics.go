package metrics

import (
	"sync"
	"time"
)

// Metrics is the thread-safe store behind the Collector. The Collector
// goroutine is its only writer.
type Metrics struct {
	mutex         sync.RWMutex
	totalRequests int64
	cacheHits     int64
	cacheMisses   int64
	rateLimited   int64
	attempts      map[string]int64
	successes     map[string]int64
	failures      map[string]int64
	totalLatency  map[string]time.Duration
	breakerStates map[string]string
	startTime     time.Time
}

// Snapshot is the JSON shape served by the metrics endpoint.
type Snapshot struct {
	TotalRequests int64                     `json:"total_requests"`
	CacheHits     int64                     `json:"cache_hits"`
	CacheMisses   int64                     `json:"cache_misses"`
	RateLimited   int64                     `json:"rate_limited"`
	Uptime        time.Duration             `json:"uptime"`
	Backends      map[string]BackendMetrics `json:"backends"`
}

type BackendMetrics struct {
	Attempts     int64         `json:"attempts"`
	Successes    int64         `json:"successes"`
	Failures     int64         `json:"failures"`
	AvgLatency   time.Duration `json:"avg_latency"`
	BreakerState string        `json:"breaker_state,omitempty"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		attempts:      make(map[string]int64),
		successes:     make(map[string]int64),
		failures:      make(map[string]int64),
		totalLatency:  make(map[string]time.Duration),
		breakerStates: make(map[string]string),
		startTime:     time.Now(),
	}
}

func (m *Metrics) IncrementRequests() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.totalRequests++
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if hit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
}

func (m *Metrics) IncrementRateLimited() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rateLimited++
}

func (m *Metrics) RecordAttempt(backend string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.attempts[backend]++
}

func (m *Metrics) RecordCompletion(backend string, duration time.Duration, success bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if success {
		m.successes[backend]++
	} else {
		m.failures[backend]++
	}
	m.totalLatency[backend] += duration
}

func (m *Metrics) UpdateBreakerState(backend, state string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.breakerStates[backend] = state
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		TotalRequests: m.totalRequests,
		CacheHits:     m.cacheHits,
		CacheMisses:   m.cacheMisses,
		RateLimited:   m.rateLimited,
		Uptime:        time.Since(m.startTime),
		Backends:      make(map[string]BackendMetrics),
	}

	allBackends := make(map[string]bool)
	for b := range m.attempts {
		allBackends[b] = true
	}
	for b := range m.breakerStates {
		allBackends[b] = true
	}

	for b := range allBackends {
		bm := BackendMetrics{
			Attempts:     m.attempts[b],
			Successes:    m.successes[b],
			Failures:     m.failures[b],
			BreakerState: m.breakerStates[b],
		}

		if completed := bm.Successes + bm.Failures; completed > 0 {
			bm.AvgLatency = m.totalLatency[b] / time.Duration(completed)
		}

		snap.Backends[b] = bm
	}

	return snap
}
