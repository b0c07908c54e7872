package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/Suhaibinator/monty/pkg/app"
	"github.com/Suhaibinator/monty/pkg/middleware"
)

var _ = Describe("UberRateLimiter", func() {
	var (
		clock   *fakeClock
		limiter *middleware.UberRateLimiter
	)

	BeforeEach(func() {
		clock = newFakeClock()
		limiter = middleware.NewUberRateLimiterWithClock(clock)
	})

	It("allows up to the limit within a window", func() {
		for i := 0; i < 3; i++ {
			allowed, remaining, _ := limiter.Allow("k", 3, time.Minute)
			Expect(allowed).To(BeTrue())
			Expect(remaining).To(Equal(2 - i))
		}

		allowed, remaining, reset := limiter.Allow("k", 3, time.Minute)
		Expect(allowed).To(BeFalse())
		Expect(remaining).To(Equal(0))
		Expect(reset).To(Equal(time.Minute))
	})

	It("starts a new window once the old one ends", func() {
		limiter.Allow("k", 1, time.Second)
		allowed, _, _ := limiter.Allow("k", 1, time.Second)
		Expect(allowed).To(BeFalse())

		clock.Add(time.Second)
		allowed, _, _ = limiter.Allow("k", 1, time.Second)
		Expect(allowed).To(BeTrue())
	})

	It("keeps keys apart", func() {
		allowed, _, _ := limiter.Allow("a", 1, time.Minute)
		Expect(allowed).To(BeTrue())
		allowed, _, _ = limiter.Allow("b", 1, time.Minute)
		Expect(allowed).To(BeTrue())
	})

	It("paces requests evenly over the window", func() {
		first := limiter.Take("k", 2, time.Second)
		second := limiter.Take("k", 2, time.Second)
		Expect(second.Sub(first)).To(Equal(500 * time.Millisecond))
	})
})

var _ = Describe("RateLimit", func() {
	config := &middleware.RateLimitConfig{
		BucketName: "api",
		Limit:      1,
		Window:     time.Minute,
		Strategy:   middleware.StrategyIP,
	}

	dispatch := func(limiter middleware.RateLimiter, cfg *middleware.RateLimitConfig, setup func(r *http.Request)) (app.Outcome, error, *capture) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		if setup != nil {
			setup(r)
		}
		c := &capture{}
		a := app.New(app.NewRequest(r), c, app.Config{Logger: zap.NewNop()})
		a.Before(middleware.RateLimit(cfg, limiter, zap.NewNop()))
		outcome, err := a.Get("/", app.HandlerFunc(func(_ *app.Request, res *app.Response, _ ...string) (any, error) {
			res.SetBody("ok")
			return res, nil
		}))
		return outcome, err, c
	}

	It("adds rate limit headers and then rejects with 429", func() {
		limiter := middleware.NewUberRateLimiterWithClock(newFakeClock())

		outcome, err, c := dispatch(limiter, config, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(app.Sent))
		Expect(c.responses[0].Header().Get("X-RateLimit-Limit")).To(Equal("1"))
		Expect(c.responses[0].Header().Get("X-RateLimit-Remaining")).To(Equal("0"))

		outcome, err, _ = dispatch(limiter, config, nil)
		var httpErr *app.HTTPError
		Expect(errors.As(err, &httpErr)).To(BeTrue())
		Expect(httpErr.StatusCode).To(Equal(http.StatusTooManyRequests))
		Expect(httpErr.Header.Get("Retry-After")).To(Equal("60"))
		Expect(httpErr.Header.Get("X-RateLimit-Remaining")).To(Equal("0"))
		Expect(outcome).To(Equal(app.Failed))
	})

	It("copies the headers onto a response the route created", func() {
		limiter := middleware.NewUberRateLimiterWithClock(newFakeClock())
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		c := &capture{}
		a := app.New(app.NewRequest(r), c, app.Config{Logger: zap.NewNop()})
		a.Before(middleware.RateLimit(config, limiter, zap.NewNop()))
		a.After(middleware.RateLimitHeaders())

		outcome, err := a.Get("/", app.HandlerFunc(func(*app.Request, *app.Response, ...string) (any, error) {
			return app.Text(http.StatusOK, "fresh"), nil
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(app.Sent))
		Expect(c.responses).To(HaveLen(1))
		Expect(string(c.responses[0].Body())).To(Equal("fresh"))
		Expect(c.responses[0].Header().Get("X-RateLimit-Limit")).To(Equal("1"))
		Expect(c.responses[0].Header().Get("X-RateLimit-Remaining")).To(Equal("0"))
		Expect(c.responses[0].Header().Get("X-RateLimit-Reset")).NotTo(BeEmpty())
	})

	It("leaves responses alone when no limit was applied", func() {
		a, c := newApp(http.MethodGet, "/")
		a.After(middleware.RateLimitHeaders())

		_, err := a.Get("/", ok("plain"))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.responses[0].Header().Get("X-RateLimit-Limit")).To(BeEmpty())
	})

	It("limits clients by IP independently", func() {
		limiter := middleware.NewUberRateLimiterWithClock(newFakeClock())

		_, err, _ := dispatch(limiter, config, nil)
		Expect(err).NotTo(HaveOccurred())
		_, err, _ = dispatch(limiter, config, func(r *http.Request) { r.RemoteAddr = "10.0.0.2:1234" })
		Expect(err).NotTo(HaveOccurred())
	})

	It("keys by JWT subject with the user strategy", func() {
		limiter := middleware.NewUberRateLimiterWithClock(newFakeClock())
		userConfig := &middleware.RateLimitConfig{BucketName: "users", Limit: 1, Window: time.Minute, Strategy: middleware.StrategyUser}

		withSubject := func(sub string) func(*http.Request) {
			return func(r *http.Request) {
				*r = *r.WithContext(middleware.WithJWTClaims(r.Context(), jwt.MapClaims{"sub": sub}))
			}
		}

		_, err, _ := dispatch(limiter, userConfig, withSubject("alice"))
		Expect(err).NotTo(HaveOccurred())
		_, err, _ = dispatch(limiter, userConfig, withSubject("bob"))
		Expect(err).NotTo(HaveOccurred())
		_, err, _ = dispatch(limiter, userConfig, withSubject("alice"))
		Expect(err).To(HaveOccurred())
	})

	It("fails the chain when the custom key cannot be extracted", func() {
		boom := errors.New("no key")
		customConfig := &middleware.RateLimitConfig{
			Limit:        1,
			Window:       time.Minute,
			Strategy:     middleware.StrategyCustom,
			KeyExtractor: func(*app.Request) (string, error) { return "", boom },
		}

		outcome, err, _ := dispatch(middleware.NewUberRateLimiter(), customConfig, nil)
		Expect(errors.Is(err, boom)).To(BeTrue())
		Expect(outcome).To(Equal(app.Failed))
	})

	It("does nothing without a config", func() {
		outcome, err, _ := dispatch(middleware.NewUberRateLimiter(), nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(app.Sent))
	})
})
