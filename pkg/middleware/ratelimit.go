package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Suhaibinator/monty/pkg/app"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// RateLimitStrategy selects how clients are told apart
type RateLimitStrategy string

const (
	// StrategyIP keys clients by IP (see ClientIP)
	StrategyIP RateLimitStrategy = "ip"

	// StrategyUser keys clients by the JWT "sub" claim, falling back to IP
	StrategyUser RateLimitStrategy = "user"

	// StrategyCustom keys clients with RateLimitConfig.KeyExtractor
	StrategyCustom RateLimitStrategy = "custom"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// BucketName identifies the bucket. Handlers sharing a name share limits.
	BucketName string

	// Limit is the number of requests allowed per Window
	Limit int

	// Window is the length of the counting window
	Window time.Duration

	// Strategy for identifying clients, StrategyIP when empty
	Strategy RateLimitStrategy

	// KeyExtractor is used with StrategyCustom
	KeyExtractor func(*app.Request) (string, error)

	// Pace spaces admitted requests evenly over the window, blocking as needed.
	// It requires a limiter implementing Pacer.
	Pace bool
}

// RateLimiter decides whether a request is allowed
type RateLimiter interface {
	// Allow records a request for key and reports whether it is allowed,
	// how many requests remain and how long until the window resets.
	Allow(key string, limit int, window time.Duration) (bool, int, time.Duration)
}

// Pacer spaces requests out in time
type Pacer interface {
	// Take blocks until key may proceed and returns the time it was let through.
	Take(key string, limit int, window time.Duration) time.Time
}

// maxWindows is the number of tracked keys above which expired windows are evicted
const maxWindows = 4096

type fixedWindow struct {
	start  time.Time
	length time.Duration
	count  int
}

// UberRateLimiter counts requests in fixed windows and paces them with
// Uber's ratelimit library.
type UberRateLimiter struct {
	clock   ratelimit.Clock
	mu      sync.Mutex
	windows map[string]*fixedWindow
	pacers  sync.Map // map[string]ratelimit.Limiter
}

// NewUberRateLimiter creates a rate limiter using the system clock
func NewUberRateLimiter() *UberRateLimiter {
	return NewUberRateLimiterWithClock(nil)
}

// NewUberRateLimiterWithClock creates a rate limiter reading time from clock.
// A nil clock means the system clock.
func NewUberRateLimiterWithClock(clock ratelimit.Clock) *UberRateLimiter {
	return &UberRateLimiter{
		clock:   clock,
		windows: make(map[string]*fixedWindow),
	}
}

func (u *UberRateLimiter) now() time.Time {
	if u.clock != nil {
		return u.clock.Now()
	}
	return time.Now()
}

// Allow implements RateLimiter
func (u *UberRateLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Duration) {
	limit, window = normalizeLimit(limit, window)
	now := u.now()

	u.mu.Lock()
	defer u.mu.Unlock()

	w, ok := u.windows[key]
	if !ok || now.Sub(w.start) >= w.length {
		if !ok && len(u.windows) >= maxWindows {
			u.evictExpired(now)
		}
		w = &fixedWindow{start: now, length: window}
		u.windows[key] = w
	}

	reset := w.start.Add(w.length).Sub(now)
	if w.count >= limit {
		return false, 0, reset
	}
	w.count++
	return true, limit - w.count, reset
}

// evictExpired drops windows that have ended. Callers hold u.mu.
func (u *UberRateLimiter) evictExpired(now time.Time) {
	for key, w := range u.windows {
		if now.Sub(w.start) >= w.length {
			delete(u.windows, key)
		}
	}
}

// Take implements Pacer
func (u *UberRateLimiter) Take(key string, limit int, window time.Duration) time.Time {
	limit, window = normalizeLimit(limit, window)
	pacerKey := fmt.Sprintf("%s|%d|%s", key, limit, window)

	if l, ok := u.pacers.Load(pacerKey); ok {
		return l.(ratelimit.Limiter).Take()
	}

	opts := []ratelimit.Option{ratelimit.Per(window), ratelimit.WithoutSlack}
	if u.clock != nil {
		opts = append(opts, ratelimit.WithClock(u.clock))
	}
	l, _ := u.pacers.LoadOrStore(pacerKey, ratelimit.New(limit, opts...))
	return l.(ratelimit.Limiter).Take()
}

// normalizeLimit treats a non-positive limit as 1 and a non-positive window as one second
func normalizeLimit(limit int, window time.Duration) (int, time.Duration) {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return limit, window
}

// RateLimit returns a handler that enforces config with limiter.
// Rejected requests stop the chain with a 429 *app.HTTPError. For allowed
// requests the X-RateLimit-* headers are set on the response the handler
// receives and stored in the request context; register RateLimitHeaders in
// After to copy them onto the committed response.
func RateLimit(config *RateLimitConfig, limiter RateLimiter, logger *zap.Logger) app.Handler {
	return app.HandlerFunc(func(req *app.Request, res *app.Response, _ ...string) (any, error) {
		// Skip rate limiting if config is nil
		if config == nil {
			return req.PreviousReturn(), nil
		}

		key, err := rateLimitKey(req, config)
		if err != nil {
			logger.Error("Failed to extract rate limit key",
				zap.Error(err),
				zap.String("method", req.Method()),
				zap.String("path", req.Path()),
			)
			return nil, fmt.Errorf("rate limit key: %w", err)
		}

		bucketKey := config.BucketName + ":" + key
		allowed, remaining, reset := limiter.Allow(bucketKey, config.Limit, config.Window)

		headers := http.Header{}
		headers.Set("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))

		if !allowed {
			headers.Set("Retry-After", strconv.FormatInt(int64(math.Ceil(reset.Seconds())), 10))

			logger.Warn("Rate limit exceeded",
				zap.String("method", req.Method()),
				zap.String("path", req.Path()),
				zap.String("key", key),
				zap.Int("limit", config.Limit),
			)

			rejected := app.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
			rejected.Header = headers
			return nil, rejected
		}

		copyHeaders(res.Header(), headers)
		req.SetContext(context.WithValue(req.Context(), rateLimitHeadersKey{}, headers))

		if config.Pace {
			if p, ok := limiter.(Pacer); ok {
				p.Take(bucketKey, config.Limit, config.Window)
			}
		}

		return req.PreviousReturn(), nil
	})
}

type rateLimitHeadersKey struct{}

// RateLimitHeaders returns a handler that sets the X-RateLimit-* headers
// recorded by RateLimit on the response it receives.
func RateLimitHeaders() app.Handler {
	return app.HandlerFunc(func(req *app.Request, res *app.Response, _ ...string) (any, error) {
		if headers, ok := req.Context().Value(rateLimitHeadersKey{}).(http.Header); ok {
			copyHeaders(res.Header(), headers)
		}
		return req.PreviousReturn(), nil
	})
}

func copyHeaders(dst, src http.Header) {
	for k, v := range src {
		dst[k] = append([]string(nil), v...)
	}
}

func rateLimitKey(req *app.Request, config *RateLimitConfig) (string, error) {
	switch config.Strategy {
	case StrategyUser:
		if claims, ok := JWTClaims(req.Context()); ok {
			if sub, err := claims.GetSubject(); err == nil && sub != "" {
				return sub, nil
			}
		}
	case StrategyCustom:
		if config.KeyExtractor != nil {
			return config.KeyExtractor(req)
		}
	}
	return GetClientIP(req), nil
}
