package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ProbeFunc checks one dependency. A false return, an error, or a timeout
// all mean unhealthy.
type ProbeFunc func(ctx context.Context) (bool, error)

// Check is the last-recorded result of one named probe. Overwritten on every
// run; no history is kept.
type Check struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Report is the aggregated system-wide view.
type Report struct {
	Status Status           `json:"status"`
	Checks map[string]Check `json:"checks"`
}

const probeTimeout = 5 * time.Second

// Monitor runs named probes with a fixed timeout and aggregates a system-wide
// status.
type Monitor struct {
	mutex  sync.RWMutex
	checks map[string]Check
	probes map[string]ProbeFunc
	logger *slog.Logger
}

func NewMonitor(logger *slog.Logger) *Monitor {
	return &Monitor{
		checks: make(map[string]Check),
		probes: make(map[string]ProbeFunc),
		logger: logger,
	}
}

// Register adds a named probe for RunAll sweeps.
func (m *Monitor) Register(name string, probe ProbeFunc) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.probes[name] = probe
}

// CheckHealth runs one probe, bounded by the fixed timeout, and records the
// result under name.
func (m *Monitor) CheckHealth(ctx context.Context, name string, probe ProbeFunc) Check {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()

	type outcome struct {
		ok  bool
		err error
	}

	done := make(chan outcome, 1)
	go func() {
		ok, err := probe(probeCtx)
		done <- outcome{ok: ok, err: err}
	}()

	check := Check{Name: name, Timestamp: start}

	select {
	case <-probeCtx.Done():
		check.Status = StatusUnhealthy
		check.Error = fmt.Sprintf("probe timed out after %s", probeTimeout)

	case result := <-done:
		switch {
		case result.err != nil:
			check.Status = StatusUnhealthy
			check.Error = result.err.Error()
		case !result.ok:
			check.Status = StatusUnhealthy
			check.Error = "probe reported not ok"
		default:
			check.Status = StatusHealthy
		}
	}

	check.Latency = time.Since(start)

	if check.Status != StatusHealthy && m.logger != nil {
		m.logger.Warn("Health probe failed",
			slog.String("probe", name),
			slog.String("error", check.Error))
	}

	m.mutex.Lock()
	m.checks[name] = check
	m.mutex.Unlock()

	return check
}

// RunAll executes every registered probe concurrently and waits for the
// sweep to finish.
func (m *Monitor) RunAll(ctx context.Context) {
	m.mutex.RLock()
	names := make([]string, 0, len(m.probes))
	probes := make([]ProbeFunc, 0, len(m.probes))
	for name, probe := range m.probes {
		names = append(names, name)
		probes = append(probes, probe)
	}
	m.mutex.RUnlock()

	g, groupCtx := errgroup.WithContext(ctx)
	for i := range names {
		name, probe := names[i], probes[i]
		g.Go(func() error {
			m.CheckHealth(groupCtx, name, probe)
			return nil
		})
	}
	g.Wait()
}

// Record stores an externally observed status, for subsystems that
// self-report degradation instead of exposing a boolean probe.
func (m *Monitor) Record(check Check) {
	if check.Timestamp.IsZero() {
		check.Timestamp = time.Now()
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.checks[check.Name] = check
}

// OverallHealth aggregates all last-recorded checks: any unhealthy makes the
// system unhealthy, else any degraded makes it degraded.
func (m *Monitor) OverallHealth() Report {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	report := Report{
		Status: StatusHealthy,
		Checks: make(map[string]Check, len(m.checks)),
	}

	for name, check := range m.checks {
		report.Checks[name] = check

		switch check.Status {
		case StatusUnhealthy:
			report.Status = StatusUnhealthy
		case StatusDegraded:
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}
	}

	return report
}

// Start sweeps all registered probes on the given interval until ctx is
// cancelled.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				if m.logger != nil {
					m.logger.Info("Health monitor stopped")
				}
				return
			case <-ticker.C:
				m.RunAll(ctx)
			}
		}
	}()
}
