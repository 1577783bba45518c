package metrics_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/slidewise/modelgate/internal/metrics"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics Suite")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		collector = metrics.NewCollector(64, discardLogger())
		ctx, cancel = context.WithCancel(context.Background())
		collector.Start(ctx)
	})

	AfterEach(func() {
		cancel()
	})

	It("should count received requests", func() {
		collector.Emit(metrics.Event{Type: metrics.EventRequestReceived})
		collector.Emit(metrics.Event{Type: metrics.EventRequestReceived})

		Eventually(func() int64 {
			return collector.Snapshot().TotalRequests
		}).Should(Equal(int64(2)))
	})

	It("should split cache lookups into hits and misses", func() {
		collector.Emit(metrics.Event{Type: metrics.EventCacheLookup, CacheHit: true})
		collector.Emit(metrics.Event{Type: metrics.EventCacheLookup, CacheHit: false})
		collector.Emit(metrics.Event{Type: metrics.EventCacheLookup, CacheHit: false})

		Eventually(func() int64 {
			return collector.Snapshot().CacheMisses
		}).Should(Equal(int64(2)))
		Expect(collector.Snapshot().CacheHits).To(Equal(int64(1)))
	})

	It("should count rate limited requests", func() {
		collector.Emit(metrics.Event{Type: metrics.EventRateLimited})

		Eventually(func() int64 {
			return collector.Snapshot().RateLimited
		}).Should(Equal(int64(1)))
	})

	It("should track per-backend attempts and completions", func() {
		collector.Emit(metrics.Event{Type: metrics.EventBackendAttempted, Backend: "ollama"})
		collector.Emit(metrics.Event{
			Type:     metrics.EventBackendCompleted,
			Backend:  "ollama",
			Duration: 100 * time.Millisecond,
			Success:  true,
		})
		collector.Emit(metrics.Event{
			Type:     metrics.EventBackendCompleted,
			Backend:  "ollama",
			Duration: 300 * time.Millisecond,
			Success:  false,
		})

		Eventually(func() int64 {
			return collector.Snapshot().Backends["ollama"].Failures
		}).Should(Equal(int64(1)))

		backend := collector.Snapshot().Backends["ollama"]
		Expect(backend.Attempts).To(Equal(int64(1)))
		Expect(backend.Successes).To(Equal(int64(1)))
		Expect(backend.AvgLatency).To(Equal(200 * time.Millisecond))
	})

	It("should expose breaker state changes", func() {
		collector.Emit(metrics.Event{
			Type:         metrics.EventBreakerChanged,
			Backend:      "openai",
			BreakerState: "OPEN",
		})

		Eventually(func() string {
			return collector.Snapshot().Backends["openai"].BreakerState
		}).Should(Equal("OPEN"))
	})

	It("should isolate metrics per backend", func() {
		collector.Emit(metrics.Event{Type: metrics.EventBackendAttempted, Backend: "a"})
		collector.Emit(metrics.Event{Type: metrics.EventBackendAttempted, Backend: "b"})
		collector.Emit(metrics.Event{Type: metrics.EventBackendAttempted, Backend: "b"})

		Eventually(func() int64 {
			return collector.Snapshot().Backends["b"].Attempts
		}).Should(Equal(int64(2)))
		Expect(collector.Snapshot().Backends["a"].Attempts).To(Equal(int64(1)))
	})

	It("should not block the caller when the buffer is full", func() {
		small := metrics.NewCollector(1, discardLogger())

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 100; i++ {
				small.Emit(metrics.Event{Type: metrics.EventRequestReceived})
			}
		}()

		Eventually(done).Should(BeClosed())
	})

	It("should tolerate a nil collector", func() {
		var nilCollector *metrics.Collector

		Expect(func() {
			nilCollector.Emit(metrics.Event{Type: metrics.EventRequestReceived})
		}).NotTo(Panic())
	})

	Describe("Handler", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Emit(metrics.Event{Type: metrics.EventRequestReceived})

			Eventually(func() int64 {
				return collector.Snapshot().TotalRequests
			}).Should(Equal(int64(1)))

			recorder := httptest.NewRecorder()
			request := httptest.NewRequest("GET", "/metrics", nil)
			collector.Handler()(recorder, request)

			Expect(recorder.Code).To(Equal(200))
			Expect(recorder.Header().Get("Content-Type")).To(Equal("application/json"))

			var snap metrics.Snapshot
			Expect(json.Unmarshal(recorder.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.TotalRequests).To(Equal(int64(1)))
		})
	})
})
