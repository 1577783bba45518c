package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Config struct {
	// Max requests admitted per identifier within Window.
	Max int
	// Window is the trailing span in which requests are counted.
	Window time.Duration
	// CleanupInterval controls the background sweep of idle identifiers.
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Max:             60,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// Result reports an admission decision.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

type record struct {
	timestamps   []time.Time
	blockedUntil time.Time
}

// Limiter is a sliding-window admission controller keyed by caller identity.
// Once an identifier exhausts its quota it stays blocked until the window
// that filled up has fully passed, so a burst doesn't get re-admitted one
// request at a time as old timestamps age out.
type Limiter struct {
	mutex   sync.Mutex
	records map[string]*record
	config  Config
	logger  *slog.Logger
}

func NewLimiter(cfg Config, logger *slog.Logger) *Limiter {
	if cfg.Max < 1 {
		cfg.Max = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return &Limiter{
		records: make(map[string]*record),
		config:  cfg,
		logger:  logger,
	}
}

// Check admits or denies one request for identifier. Two identifiers never
// share quota.
func (l *Limiter) Check(identifier string) Result {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := time.Now()

	rec, exists := l.records[identifier]
	if !exists {
		rec = &record{}
		l.records[identifier] = rec
	}

	if !rec.blockedUntil.IsZero() {
		if now.Before(rec.blockedUntil) {
			return Result{Allowed: false, Remaining: 0, ResetTime: rec.blockedUntil}
		}

		rec.blockedUntil = time.Time{}
		rec.timestamps = nil
	}

	rec.expire(now, l.config.Window)

	if len(rec.timestamps) >= l.config.Max {
		rec.blockedUntil = rec.timestamps[0].Add(l.config.Window)

		if l.logger != nil {
			l.logger.Warn("Rate limit exceeded",
				slog.String("identifier", identifier),
				slog.Time("blocked_until", rec.blockedUntil))
		}

		return Result{Allowed: false, Remaining: 0, ResetTime: rec.blockedUntil}
	}

	rec.timestamps = append(rec.timestamps, now)

	return Result{
		Allowed:   true,
		Remaining: l.config.Max - len(rec.timestamps),
		ResetTime: rec.timestamps[0].Add(l.config.Window),
	}
}

// expire drops timestamps older than the trailing window.
func (r *record) expire(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)

	kept := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.timestamps = kept
}

// Cleanup removes identifiers whose window and block have fully expired,
// bounding memory. Returns how many records were swept.
func (l *Limiter) Cleanup() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := time.Now()
	swept := 0

	for id, rec := range l.records {
		rec.expire(now, l.config.Window)

		if len(rec.timestamps) == 0 && now.After(rec.blockedUntil) {
			delete(l.records, id)
			swept++
		}
	}

	return swept
}

// Start runs the periodic cleanup sweep until ctx is cancelled.
func (l *Limiter) Start(ctx context.Context) {
	interval := l.config.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}
