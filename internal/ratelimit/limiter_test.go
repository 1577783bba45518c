package ratelimit_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/slidewise/modelgate/internal/ratelimit"
)

func TestRateLimit(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "RateLimit Suite")
}

var _ = Describe("Limiter", func() {
	var limiter *ratelimit.Limiter

	BeforeEach(func() {
		limiter = ratelimit.NewLimiter(ratelimit.Config{
			Max:    5,
			Window: time.Minute,
		}, nil)
	})

	Describe("Check", func() {
		It("should admit up to Max requests with strictly decreasing remaining", func() {
			var remaining []int
			for i := 0; i < 5; i++ {
				res := limiter.Check("u1")
				Expect(res.Allowed).To(BeTrue())
				remaining = append(remaining, res.Remaining)
			}

			Expect(remaining).To(Equal([]int{4, 3, 2, 1, 0}))
		})

		It("should deny the request after the quota is exhausted", func() {
			for i := 0; i < 5; i++ {
				limiter.Check("u1")
			}

			res := limiter.Check("u1")
			Expect(res.Allowed).To(BeFalse())
			Expect(res.Remaining).To(BeZero())
			Expect(res.ResetTime).To(BeTemporally(">", time.Now()))
		})

		It("should isolate identifiers exactly", func() {
			for i := 0; i < 6; i++ {
				limiter.Check("u1")
			}

			res := limiter.Check("u2")
			Expect(res.Allowed).To(BeTrue())
			Expect(res.Remaining).To(Equal(4))
		})

		It("should keep an exhausted identifier blocked until the window resets", func() {
			short := ratelimit.NewLimiter(ratelimit.Config{
				Max:    2,
				Window: 100 * time.Millisecond,
			}, nil)

			short.Check("u1")
			short.Check("u1")
			Expect(short.Check("u1").Allowed).To(BeFalse())

			// Still blocked inside the window even as timestamps age.
			time.Sleep(30 * time.Millisecond)
			Expect(short.Check("u1").Allowed).To(BeFalse())

			// Once the original window has fully passed the block clears.
			time.Sleep(120 * time.Millisecond)
			res := short.Check("u1")
			Expect(res.Allowed).To(BeTrue())
			Expect(res.Remaining).To(Equal(1))
		})

		It("should let old timestamps age out before the quota fills", func() {
			short := ratelimit.NewLimiter(ratelimit.Config{
				Max:    2,
				Window: 50 * time.Millisecond,
			}, nil)

			Expect(short.Check("u1").Allowed).To(BeTrue())
			time.Sleep(70 * time.Millisecond)
			Expect(short.Check("u1").Allowed).To(BeTrue())
			Expect(short.Check("u1").Allowed).To(BeTrue())
		})
	})

	Describe("Cleanup", func() {
		It("should sweep identifiers whose window has fully expired", func() {
			short := ratelimit.NewLimiter(ratelimit.Config{
				Max:    5,
				Window: 20 * time.Millisecond,
			}, nil)

			short.Check("u1")
			short.Check("u2")
			Expect(short.Cleanup()).To(BeZero())

			time.Sleep(40 * time.Millisecond)
			Expect(short.Cleanup()).To(Equal(2))
		})

		It("should not sweep identifiers that are still blocked", func() {
			short := ratelimit.NewLimiter(ratelimit.Config{
				Max:    1,
				Window: time.Minute,
			}, nil)

			short.Check("u1")
			short.Check("u1") // blocks u1 for the rest of the window
			Expect(short.Cleanup()).To(BeZero())
		})
	})
})
