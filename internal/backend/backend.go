package backend

import (
	"net/url"
	"sync"
	"time"
)

// Backend represents one candidate generative-model backend with its declared
// capabilities and live performance metrics.
type Backend struct {
	name             string
	baseURL          *url.URL
	model            string
	priority         float64
	maxContextTokens int

	mutex         sync.Mutex
	isHealthy     bool
	totalRequests int64
	successCount  int64
	avgLatency    time.Duration
	lastUsed      time.Time
}

// Metrics is a point-in-time snapshot of a backend's rolling metrics.
type Metrics struct {
	Name          string        `json:"name"`
	Healthy       bool          `json:"healthy"`
	TotalRequests int64         `json:"total_requests"`
	SuccessRate   float64       `json:"success_rate"`
	AvgLatency    time.Duration `json:"avg_latency"`
	LastUsed      time.Time     `json:"last_used"`
}

// New creates a Backend. It starts healthy; the health monitor flips the flag
// as probes run.
func New(name string, baseURL *url.URL, model string, priority float64, maxContextTokens int) *Backend {
	return &Backend{
		name:             name,
		baseURL:          baseURL,
		model:            model,
		priority:         priority,
		maxContextTokens: maxContextTokens,
		isHealthy:        true,
	}
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) BaseURL() *url.URL { return b.baseURL }

// Model returns the model this backend serves.
func (b *Backend) Model() string { return b.model }

// Priority returns the statically configured preference weight.
func (b *Backend) Priority() float64 { return b.priority }

// MaxContextTokens returns the declared context-size capability, or 0 when
// unlimited.
func (b *Backend) MaxContextTokens() int { return b.maxContextTokens }

func (b *Backend) IsHealthy() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.isHealthy
}

// SetHealthy updates the backend's health status.
// Returns true if the status changed, false if it was already in that state.
func (b *Backend) SetHealthy(healthy bool) (changed bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.isHealthy == healthy {
		return false
	}

	b.isHealthy = healthy
	return true
}

// RecordSuccess folds one successful call into the rolling metrics.
// The average is the weighted running mean newAvg = (oldAvg*n + latest)/(n+1),
// which keeps memory O(1) per backend without a history buffer.
func (b *Backend) RecordSuccess(latency time.Duration) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.recordLatency(latency)
	b.successCount++
	b.totalRequests++
	b.lastUsed = time.Now()
}

// RecordFailure folds one failed call into the rolling metrics. The latency
// still counts so a slow-then-failing backend scores worse.
func (b *Backend) RecordFailure(latency time.Duration) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.recordLatency(latency)
	b.totalRequests++
	b.lastUsed = time.Now()
}

// recordLatency must be called with the lock held.
func (b *Backend) recordLatency(latency time.Duration) {
	n := b.totalRequests
	b.avgLatency = time.Duration((int64(b.avgLatency)*n + int64(latency)) / (n + 1))
}

// SuccessRate reports successes over completed calls, in [0,1].
// A backend with no history reports 1 so it isn't penalized before its
// first real call.
func (b *Backend) SuccessRate() float64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.totalRequests == 0 {
		return 1
	}

	return float64(b.successCount) / float64(b.totalRequests)
}

// AvgLatency returns the weighted running average latency, 0 before any call.
func (b *Backend) AvgLatency() time.Duration {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.avgLatency
}

func (b *Backend) Metrics() Metrics {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	rate := float64(1)
	if b.totalRequests > 0 {
		rate = float64(b.successCount) / float64(b.totalRequests)
	}

	return Metrics{
		Name:          b.name,
		Healthy:       b.isHealthy,
		TotalRequests: b.totalRequests,
		SuccessRate:   rate,
		AvgLatency:    b.avgLatency,
		LastUsed:      b.lastUsed,
	}
}
