package circuitbreaker_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/slidewise/modelgate/internal/aierrors"
	"github.com/slidewise/modelgate/internal/circuitbreaker"
)

func TestCircuitBreaker(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "CircuitBreaker Suite")
}

var errBackendDown = errors.New("backend down")

func failingOp() error { return errBackendDown }
func succeedingOp() error { return nil }

var _ = Describe("CircuitBreaker", func() {
	var cb *circuitbreaker.CircuitBreaker

	newBreaker := func(cfg circuitbreaker.Config) *circuitbreaker.CircuitBreaker {
		return circuitbreaker.NewCircuitBreaker("ollama", cfg, nil)
	}

	Describe("NewCircuitBreaker", func() {
		It("should create a circuit breaker in closed state", func() {
			cb = newBreaker(circuitbreaker.DefaultConfig())
			Expect(cb).NotTo(BeNil())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("State transitions", func() {
		BeforeEach(func() {
			cb = newBreaker(circuitbreaker.Config{
				FailureThreshold: 3,
				SuccessThreshold: 2,
				Timeout:          100 * time.Millisecond,
				MonitoringPeriod: time.Minute,
			})
		})

		Context("when in CLOSED state", func() {
			It("should pass the operation's result through", func() {
				Expect(cb.Execute(succeedingOp)).To(Succeed())
			})

			It("should re-return the operation's error unmodified", func() {
				err := cb.Execute(failingOp)
				Expect(err).To(MatchError(errBackendDown))
			})

			It("should remain closed after failures below threshold", func() {
				cb.Execute(failingOp)
				cb.Execute(failingOp)
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			})

			It("should transition to OPEN after reaching failure threshold", func() {
				cb.Execute(failingOp)
				cb.Execute(failingOp)
				cb.Execute(failingOp)
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should reset the failure window on any success", func() {
				cb.Execute(failingOp)
				cb.Execute(failingOp)
				cb.Execute(succeedingOp)
				cb.Execute(failingOp)
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			})
		})

		Context("when in OPEN state", func() {
			BeforeEach(func() {
				// Trip the circuit
				cb.Execute(failingOp)
				cb.Execute(failingOp)
				cb.Execute(failingOp)
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})

			It("should fail fast with CircuitOpenError without invoking the operation", func() {
				invoked := false
				err := cb.Execute(func() error {
					invoked = true
					return nil
				})

				Expect(invoked).To(BeFalse())

				var coe *aierrors.CircuitOpenError
				Expect(errors.As(err, &coe)).To(BeTrue())
				Expect(coe.Dependency).To(Equal("ollama"))
			})

			It("should transition to HALF_OPEN after the timeout, on the next call", func() {
				time.Sleep(150 * time.Millisecond)
				Expect(cb.Execute(succeedingOp)).To(Succeed())
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
			})

			It("should remain OPEN before the timeout expires", func() {
				time.Sleep(20 * time.Millisecond)
				err := cb.Execute(succeedingOp)
				Expect(err).To(HaveOccurred())
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			})
		})

		Context("when in HALF_OPEN state", func() {
			BeforeEach(func() {
				cb.Execute(failingOp)
				cb.Execute(failingOp)
				cb.Execute(failingOp)
				time.Sleep(150 * time.Millisecond)
				cb.Execute(succeedingOp) // first probe
				Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
			})

			It("should close after SuccessThreshold consecutive successes", func() {
				cb.Execute(succeedingOp) // second probe
				Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			})

			It("should reopen immediately on a single failure", func() {
				cb.Execute(failingOp)
				Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

				// The reopen reschedules the next attempt.
				invoked := false
				cb.Execute(func() error { invoked = true; return nil })
				Expect(invoked).To(BeFalse())
			})
		})
	})

	Describe("Monitoring window", func() {
		It("should not count failures older than the monitoring period", func() {
			cb = newBreaker(circuitbreaker.Config{
				FailureThreshold: 3,
				SuccessThreshold: 1,
				Timeout:          time.Second,
				MonitoringPeriod: 50 * time.Millisecond,
			})

			cb.Execute(failingOp)
			cb.Execute(failingOp)
			time.Sleep(80 * time.Millisecond)
			cb.Execute(failingOp)
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("Stats", func() {
		It("should report a read-only snapshot", func() {
			cb = newBreaker(circuitbreaker.DefaultConfig())
			cb.Execute(failingOp)

			stats := cb.Stats()
			Expect(stats.Name).To(Equal("ollama"))
			Expect(stats.State).To(Equal("CLOSED"))
			Expect(stats.Failures).To(Equal(1))
		})
	})

	Describe("Reset", func() {
		It("should force CLOSED and clear counters", func() {
			cb = newBreaker(circuitbreaker.Config{
				FailureThreshold: 1,
				SuccessThreshold: 1,
				Timeout:          time.Hour,
				MonitoringPeriod: time.Minute,
			})

			cb.Execute(failingOp)
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			cb.Reset()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Execute(succeedingOp)).To(Succeed())
		})
	})

	Describe("State change callback", func() {
		It("should observe CLOSED to OPEN", func() {
			transitions := make(chan string, 4)
			cb = circuitbreaker.NewCircuitBreaker("openai", circuitbreaker.Config{
				FailureThreshold: 1,
				SuccessThreshold: 1,
				Timeout:          time.Hour,
				MonitoringPeriod: time.Minute,
			}, func(name string, from, to circuitbreaker.State) {
				transitions <- name + ":" + from.String() + "->" + to.String()
			})

			cb.Execute(failingOp)
			Eventually(transitions).Should(Receive(Equal("openai:CLOSED->OPEN")))
		})
	})

	Describe("State.String", func() {
		It("should return correct string representation", func() {
			Expect(circuitbreaker.StateClosed.String()).To(Equal("CLOSED"))
			Expect(circuitbreaker.StateOpen.String()).To(Equal("OPEN"))
			Expect(circuitbreaker.StateHalfOpen.String()).To(Equal("HALF_OPEN"))
		})
	})
})

var _ = Describe("Registry", func() {
	var registry *circuitbreaker.Registry

	BeforeEach(func() {
		registry = circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig(), nil)
	})

	It("should return the same breaker for the same name", func() {
		first := registry.GetBreaker("ollama")
		second := registry.GetBreaker("ollama")
		Expect(first).To(BeIdenticalTo(second))
	})

	It("should isolate breakers by name", func() {
		a := registry.GetBreaker("ollama")
		b := registry.GetBreaker("openai")
		Expect(a).NotTo(BeIdenticalTo(b))

		a.Execute(failingOp)
		Expect(registry.Stats()["ollama"].Failures).To(Equal(1))
		Expect(registry.Stats()["openai"].Failures).To(BeZero())
	})

	It("should reset all breakers", func() {
		cb := circuitbreaker.NewRegistry(circuitbreaker.Config{
			FailureThreshold: 1,
			SuccessThreshold: 1,
			Timeout:          time.Hour,
			MonitoringPeriod: time.Minute,
		}, nil)

		cb.GetBreaker("ollama").Execute(failingOp)
		Expect(cb.GetBreaker("ollama").State()).To(Equal(circuitbreaker.StateOpen))

		cb.Reset()
		Expect(cb.GetBreaker("ollama").State()).To(Equal(circuitbreaker.StateClosed))
	})
})
