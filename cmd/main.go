package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slidewise/modelgate/config"
	"github.com/slidewise/modelgate/internal/backend"
	"github.com/slidewise/modelgate/internal/cache"
	"github.com/slidewise/modelgate/internal/circuitbreaker"
	"github.com/slidewise/modelgate/internal/handler"
	"github.com/slidewise/modelgate/internal/health"
	"github.com/slidewise/modelgate/internal/httpserver"
	"github.com/slidewise/modelgate/internal/metrics"
	"github.com/slidewise/modelgate/internal/orchestrator"
	"github.com/slidewise/modelgate/internal/provider"
	"github.com/slidewise/modelgate/internal/ratelimit"
	"github.com/slidewise/modelgate/internal/retry"
	"github.com/slidewise/modelgate/pkg/logger"
)

const metricsBufferSize = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(metricsBufferSize, log)
	collector.Start(ctx)

	breakers := circuitbreaker.NewRegistry(breakerConfig(cfg), func(name string, from, to circuitbreaker.State) {
		log.Warn("Circuit breaker state changed",
			slog.String("dependency", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()))
		collector.Emit(metrics.Event{
			Type:         metrics.EventBreakerChanged,
			Timestamp:    time.Now(),
			Backend:      name,
			BreakerState: to.String(),
		})
	})

	backends, err := initializeBackends(cfg, log)
	if err != nil {
		log.Error("Failed to initialize backends", slog.Any("err", err))
		os.Exit(1)
	}

	invoker := provider.NewHTTPInvoker(mustDuration(cfg.Orchestrator.AttemptTimeout))

	orch := orchestrator.New(backends, invoker, breakers, orchestratorConfig(cfg), log, collector)

	limiter := ratelimit.NewLimiter(rateLimitConfig(cfg), log)
	limiter.Start(ctx)

	responseCache := cache.New(mustDuration(cfg.Cache.TTL))
	responseCache.Start(ctx, mustDuration(cfg.Cache.CleanupInterval))

	monitor := health.NewMonitor(log)
	for _, b := range backends {
		b := b
		monitor.Register(b.Name(), func(probeCtx context.Context) (bool, error) {
			if err := invoker.Probe(probeCtx, b); err != nil {
				b.SetHealthy(false)
				return false, err
			}
			if b.SetHealthy(true) {
				log.Info("Backend recovered", slog.String("backend", b.Name()))
			}
			return true, nil
		})
	}
	monitor.RunAll(ctx)
	monitor.Start(ctx, mustDuration(cfg.HealthCheck.Interval))

	generate := handler.NewGenerateHandler(log, orch, limiter, responseCache, mustDuration(cfg.Cache.TTL), collector)

	srv, err := httpserver.New(cfg.Server.Address, newRouter(generate, monitor, collector))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Gateway listening",
		slog.String("address", cfg.Server.Address),
		slog.Int("backends", len(backends)))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func initializeBackends(cfg *config.Config, log *slog.Logger) ([]*backend.Backend, error) {
	var backends []*backend.Backend

	for _, bc := range cfg.Backends {
		u, err := url.Parse(bc.URL)
		if err != nil {
			log.Error("Failed to parse backend URL",
				slog.String("backend", bc.Name),
				slog.String("url", bc.URL),
				slog.String("error", err.Error()))
			continue
		}

		backends = append(backends, backend.New(bc.Name, u, bc.Model, bc.Priority, bc.MaxContextTokens))
	}

	if len(backends) == 0 {
		return nil, os.ErrInvalid
	}

	return backends, nil
}

func breakerConfig(cfg *config.Config) circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
		Timeout:          mustDuration(cfg.CircuitBreaker.Timeout),
		MonitoringPeriod: mustDuration(cfg.CircuitBreaker.MonitoringPeriod),
	}
}

func rateLimitConfig(cfg *config.Config) ratelimit.Config {
	return ratelimit.Config{
		Max:             cfg.RateLimit.Max,
		Window:          mustDuration(cfg.RateLimit.Window),
		CleanupInterval: mustDuration(cfg.RateLimit.CleanupInterval),
	}
}

func orchestratorConfig(cfg *config.Config) orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	oc.AttemptTimeout = mustDuration(cfg.Orchestrator.AttemptTimeout)
	oc.ProbeTimeout = mustDuration(cfg.Orchestrator.ProbeTimeout)
	oc.RetryPolicy = retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   mustDuration(cfg.Retry.BaseDelay),
		Multiplier:  cfg.Retry.Multiplier,
		MaxDelay:    mustDuration(cfg.Retry.MaxDelay),
	}
	return oc
}

// mustDuration parses a duration field that config validation already
// accepted.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}
