package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/slidewise/modelgate/internal/aierrors"
	"github.com/slidewise/modelgate/internal/backend"
	"github.com/slidewise/modelgate/internal/circuitbreaker"
	"github.com/slidewise/modelgate/internal/metrics"
	"github.com/slidewise/modelgate/internal/provider"
	"github.com/slidewise/modelgate/internal/retry"
)

type Config struct {
	// AttemptTimeout bounds every single backend invocation. Retries re-issue
	// a fresh timeout rather than extending the original.
	AttemptTimeout time.Duration
	// ProbeTimeout bounds the pre-dispatch capability probe.
	ProbeTimeout time.Duration
	// RetryPolicy wraps the invocation inside each backend's breaker.
	RetryPolicy retry.Policy
	// SuccessWeight scales the live success rate in the candidate score.
	SuccessWeight float64
	// LatencyPenaltyWeight caps the score penalty for a slow backend.
	LatencyPenaltyWeight float64
	// LatencyReference is the latency that earns the full penalty.
	LatencyReference time.Duration
}

func DefaultConfig() Config {
	return Config{
		AttemptTimeout:       60 * time.Second,
		ProbeTimeout:         3 * time.Second,
		RetryPolicy:          retry.DefaultPolicy(),
		SuccessWeight:        20,
		LatencyPenaltyWeight: 10,
		LatencyReference:     5 * time.Second,
	}
}

// GenerateOptions selects and parameterizes one generation.
type GenerateOptions struct {
	provider.Options
	// Preferred names a backend to try first, if healthy.
	Preferred string
}

// Result is a completed generation plus the diagnostics the surrounding
// application surfaces to operators.
type Result struct {
	RequestID         string          `json:"request_id"`
	Response          provider.Result `json:"response"`
	BackendUsed       string          `json:"backend_used"`
	Model             string          `json:"model"`
	Latency           time.Duration   `json:"latency"`
	AttemptedBackends []string        `json:"attempted_backends"`
}

// Orchestrator walks the candidate backend list, protecting each real call
// with that backend's circuit breaker and the retry executor, and keeps the
// per-backend rolling metrics current.
type Orchestrator struct {
	backends  []*backend.Backend
	invoker   provider.Invoker
	breakers  *circuitbreaker.Registry
	config    Config
	logger    *slog.Logger
	collector *metrics.Collector
}

func New(
	backends []*backend.Backend,
	invoker provider.Invoker,
	breakers *circuitbreaker.Registry,
	cfg Config,
	logger *slog.Logger,
	collector *metrics.Collector,
) *Orchestrator {
	return &Orchestrator{
		backends:  backends,
		invoker:   invoker,
		breakers:  breakers,
		config:    cfg,
		logger:    logger,
		collector: collector,
	}
}

// Backends returns the configured candidates for diagnostics endpoints.
func (o *Orchestrator) Backends() []*backend.Backend {
	return o.backends
}

// GenerateWithFallback tries candidate backends in priority order until one
// succeeds. On total exhaustion it fails with *ExhaustedError naming every
// backend tried.
func (o *Orchestrator) GenerateWithFallback(ctx context.Context, prompt string, opts GenerateOptions) (*Result, error) {
	if prompt == "" {
		return nil, aierrors.NewValidation("prompt must not be empty")
	}

	requestID := uuid.NewString()
	start := time.Now()

	candidates := o.candidates(opts.Preferred)

	attempted := make([]string, 0, len(candidates))
	errs := make([]error, 0, len(candidates))

	for _, b := range candidates {
		attempted = append(attempted, b.Name())

		if err := o.probe(ctx, b); err != nil {
			// Capability absence is a configuration signal, not a transient
			// fault: skip without touching the breaker or the metrics.
			o.logger.Warn("Skipping backend, capability probe failed",
				slog.String("request_id", requestID),
				slog.String("backend", b.Name()),
				slog.Any("err", err))
			errs = append(errs, err)
			continue
		}

		o.emit(metrics.Event{Type: metrics.EventBackendAttempted, Timestamp: time.Now(), Backend: b.Name()})

		response, err := o.invokeProtected(ctx, b, prompt, opts.Options)
		if err != nil {
			o.logger.Warn("Backend failed, falling back",
				slog.String("request_id", requestID),
				slog.String("backend", b.Name()),
				slog.Any("err", err))
			errs = append(errs, err)
			continue
		}

		o.logger.Info("Generation complete",
			slog.String("request_id", requestID),
			slog.String("backend", b.Name()),
			slog.Duration("latency", time.Since(start)),
			slog.Int("attempts", len(attempted)))

		return &Result{
			RequestID:         requestID,
			Response:          *response,
			BackendUsed:       b.Name(),
			Model:             b.Model(),
			Latency:           time.Since(start),
			AttemptedBackends: attempted,
		}, nil
	}

	return nil, &ExhaustedError{Attempted: attempted, Errs: errs}
}

// invokeProtected wraps the real call with the backend's breaker, then the
// retry executor inside it. The breaker sees one outcome per retry sequence.
func (o *Orchestrator) invokeProtected(ctx context.Context, b *backend.Backend, prompt string, opts provider.Options) (*provider.Result, error) {
	var response *provider.Result

	callStart := time.Now()
	err := o.breakers.GetBreaker(b.Name()).Execute(func() error {
		result, err := retry.Do(ctx, o.config.RetryPolicy, func() (*provider.Result, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, o.config.AttemptTimeout)
			defer cancel()

			return o.invoker.Invoke(attemptCtx, b, prompt, opts)
		})
		if err != nil {
			return err
		}

		response = result
		return nil
	})

	elapsed := time.Since(callStart)

	if err != nil {
		// A fast-failed open circuit never ran a real call, so the rolling
		// metrics stay untouched.
		if aierrors.KindOf(err) != aierrors.KindCircuitOpen {
			b.RecordFailure(elapsed)
			o.emit(metrics.Event{
				Type:      metrics.EventBackendCompleted,
				Timestamp: time.Now(),
				Backend:   b.Name(),
				Duration:  elapsed,
			})
		}
		return nil, err
	}

	b.RecordSuccess(elapsed)
	o.emit(metrics.Event{
		Type:      metrics.EventBackendCompleted,
		Timestamp: time.Now(),
		Backend:   b.Name(),
		Duration:  elapsed,
		Success:   true,
	})

	return response, nil
}

func (o *Orchestrator) probe(ctx context.Context, b *backend.Backend) error {
	probeTimeout := o.config.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	return o.invoker.Probe(probeCtx, b)
}

func (o *Orchestrator) emit(event metrics.Event) {
	o.collector.Emit(event)
}
