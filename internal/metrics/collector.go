package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRequestReceived  EventType = "request_received"
	EventCacheLookup      EventType = "cache_lookup"
	EventRateLimited      EventType = "rate_limited"
	EventBackendAttempted EventType = "backend_attempted"
	EventBackendCompleted EventType = "backend_completed"
	EventBreakerChanged   EventType = "breaker_changed"
)

type Event struct {
	Type         EventType
	Timestamp    time.Time
	Backend      string
	Duration     time.Duration
	Success      bool
	CacheHit     bool
	BreakerState string
}

// Collector consumes pipeline events off a buffered channel so metric
// bookkeeping never blocks the request path.
type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// Emit enqueues an event, dropping it when the buffer is full.
func (c *Collector) Emit(event Event) {
	if c == nil {
		return
	}

	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventRequestReceived:
		c.metrics.IncrementRequests()

	case EventCacheLookup:
		c.metrics.RecordCacheLookup(event.CacheHit)

	case EventRateLimited:
		c.metrics.IncrementRateLimited()

	case EventBackendAttempted:
		c.metrics.RecordAttempt(event.Backend)

	case EventBackendCompleted:
		c.metrics.RecordCompletion(event.Backend, event.Duration, event.Success)

	case EventBreakerChanged:
		c.metrics.UpdateBreakerState(event.Backend, event.BreakerState)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
