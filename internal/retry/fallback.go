package retry

import (
	"context"
	"log/slog"

	"github.com/slidewise/modelgate/internal/aierrors"
)

// FallbackOptions configures WithFallback. Exactly one of FallbackValue or
// FallbackFn should be set; with neither, a failure becomes a NoFallback
// error wrapping the cause.
type FallbackOptions[T any] struct {
	FallbackValue  *T
	FallbackFn     func(ctx context.Context) (T, error)
	ShouldFallback func(error) bool
	OnFallback     func(err error)
}

// WithFallback runs op and, if it fails and ShouldFallback approves (default:
// always), returns the configured fallback instead of the error.
func WithFallback[T any](ctx context.Context, op func() (T, error), opts FallbackOptions[T]) (T, error) {
	result, err := op()
	if err == nil {
		return result, nil
	}

	if opts.ShouldFallback != nil && !opts.ShouldFallback(err) {
		return result, err
	}

	if opts.OnFallback != nil {
		opts.OnFallback(err)
	}

	switch {
	case opts.FallbackFn != nil:
		return opts.FallbackFn(ctx)
	case opts.FallbackValue != nil:
		return *opts.FallbackValue, nil
	default:
		var zero T
		return zero, aierrors.NewNoFallback(err)
	}
}

// GracefulDegradation tries each operation in order and returns the first
// success. Failures are logged and skipped; if every operation fails, the
// fallback value is returned and no error is reported.
func GracefulDegradation[T any](ctx context.Context, logger *slog.Logger, ops []func(ctx context.Context) (T, error), fallback T) T {
	for i, op := range ops {
		result, err := op(ctx)
		if err == nil {
			return result
		}

		if logger != nil {
			logger.Warn("Degradation step failed, trying next",
				slog.Int("step", i),
				slog.Any("err", err))
		}
	}

	return fallback
}
