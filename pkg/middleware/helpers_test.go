package middleware_test

import (
	"net/http/httptest"
	"sync"
	"time"

	"github.com/Suhaibinator/monty/pkg/app"
	"go.uber.org/zap"
)

// capture records the responses an application sends
type capture struct {
	responses []*app.Response
}

func (c *capture) WriteResponse(res *app.Response) error {
	c.responses = append(c.responses, res)
	return nil
}

func newApp(method, target string) (*app.Application, *capture) {
	c := &capture{}
	req := app.NewRequest(httptest.NewRequest(method, target, nil))
	return app.New(req, c, app.Config{Logger: zap.NewNop()}), c
}

func ok(body string) app.Handler {
	return app.HandlerFunc(func(*app.Request, *app.Response, ...string) (any, error) {
		return app.NewResponse(body), nil
	})
}

// fakeClock satisfies ratelimit.Clock; Sleep advances time instead of blocking
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.Add(d)
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
