package circuitbreaker

import (
	"sync"
	"time"

	"github.com/slidewise/modelgate/internal/aierrors"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Blocking requests
	StateHalfOpen              // Probing with limited requests
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// StateChangeFunc is invoked on every transition so callers can hook alerting.
// It runs on its own goroutine, outside the breaker lock.
type StateChangeFunc func(name string, from, to State)

type Config struct {
	// FailureThreshold failures within MonitoringPeriod open the circuit.
	FailureThreshold int
	// SuccessThreshold consecutive successes while HALF_OPEN close it.
	SuccessThreshold int
	// Timeout is how long the circuit stays OPEN before the next probe.
	Timeout time.Duration
	// MonitoringPeriod is the trailing window for counting failures.
	MonitoringPeriod time.Duration
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		MonitoringPeriod: time.Minute,
	}
}

// CircuitBreaker guards one named dependency. State transitions happen only
// inside Execute and Reset, under the breaker's mutex; the OPEN to HALF_OPEN
// transition is lazy, taken on the first Execute after nextAttemptAt.
type CircuitBreaker struct {
	name          string
	config        Config
	onStateChange StateChangeFunc

	mutex         sync.Mutex
	state         State
	failureTimes  []time.Time
	successCount  int
	nextAttemptAt time.Time
}

// Stats is a read-only snapshot for diagnostics.
type Stats struct {
	Name          string    `json:"name"`
	State         string    `json:"state"`
	Failures      int       `json:"failures"`
	Successes     int       `json:"successes"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
}

func NewCircuitBreaker(name string, cfg Config, onStateChange StateChangeFunc) *CircuitBreaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 1
	}

	return &CircuitBreaker{
		name:          name,
		config:        cfg,
		onStateChange: onStateChange,
		state:         StateClosed,
	}
}

// Execute runs op through the breaker. While OPEN and before nextAttemptAt it
// fails fast with *aierrors.CircuitOpenError without invoking op. The op's own
// error is always returned unmodified after counters are updated.
func (cb *CircuitBreaker) Execute(op func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := op()
	cb.afterCall(err == nil)

	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mutex.Lock()

	if cb.state == StateOpen {
		if time.Now().Before(cb.nextAttemptAt) {
			err := &aierrors.CircuitOpenError{Dependency: cb.name, NextAttempt: cb.nextAttemptAt}
			cb.mutex.Unlock()
			return err
		}

		cb.transition(StateHalfOpen)
		cb.successCount = 0
	}

	cb.mutex.Unlock()
	return nil
}

func (cb *CircuitBreaker) afterCall(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if success {
		cb.onSuccess()
	} else {
		cb.onFailure()
	}
}

// onSuccess must be called with the lock held.
func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.transition(StateClosed)
			cb.failureTimes = nil
			cb.successCount = 0
		}
	case StateClosed:
		cb.failureTimes = nil
	}
}

// onFailure must be called with the lock held.
func (cb *CircuitBreaker) onFailure() {
	now := time.Now()

	switch cb.state {
	case StateHalfOpen:
		// A single probe failure reopens immediately.
		cb.transition(StateOpen)
		cb.nextAttemptAt = now.Add(cb.config.Timeout)
		cb.failureTimes = nil
		cb.successCount = 0

	case StateClosed:
		cb.failureTimes = append(cb.failureTimes, now)
		cb.pruneFailures(now)

		if len(cb.failureTimes) >= cb.config.FailureThreshold {
			cb.transition(StateOpen)
			cb.nextAttemptAt = now.Add(cb.config.Timeout)
		}
	}
}

// pruneFailures drops timestamps older than the monitoring window.
// Must be called with the lock held.
func (cb *CircuitBreaker) pruneFailures(now time.Time) {
	cutoff := now.Add(-cb.config.MonitoringPeriod)

	kept := cb.failureTimes[:0]
	for _, t := range cb.failureTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	cb.failureTimes = kept
}

// transition must be called with the lock held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}

	cb.state = to

	if cb.onStateChange != nil {
		go cb.onStateChange(cb.name, from, to)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Stats() Stats {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return Stats{
		Name:          cb.name,
		State:         cb.state.String(),
		Failures:      len(cb.failureTimes),
		Successes:     cb.successCount,
		NextAttemptAt: cb.nextAttemptAt,
	}
}

// Reset forces the breaker CLOSED and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.transition(StateClosed)
	cb.failureTimes = nil
	cb.successCount = 0
	cb.nextAttemptAt = time.Time{}
}
