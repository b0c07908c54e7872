package main

import (
	"net/http"
	"time"

	"github.com/Suhaibinator/monty/pkg/app"
)

// Routes served by the demo program
const (
	healthRoute = "/health"
	helloRoute  = "/hello[/:name]"
	echoRoute   = "/echo"
)

type echoRequest struct {
	Message string `json:"message"`
}

type echoResponse struct {
	Message  string    `json:"message"`
	Received time.Time `json:"received"`
}

// program returns the demo application. A non-nil metrics handler is served
// at metricsPath and a non-nil preflight handler answers OPTIONS on any path.
func program(metricsPath string, metrics http.Handler, preflight app.Handler) func(a *app.Application) error {
	return func(a *app.Application) error {
		if _, err := a.Get(healthRoute, app.HandlerFunc(health)); err != nil {
			return err
		}
		if _, err := a.Get(helloRoute, app.HandlerFunc(hello)); err != nil {
			return err
		}
		if _, err := a.Post(echoRoute, app.HandlerFunc(echo)); err != nil {
			return err
		}
		if metrics != nil {
			if _, err := a.Get(metricsPath, app.HandlerFunc(func(req *app.Request, res *app.Response, _ ...string) (any, error) {
				metrics.ServeHTTP(res, req.HTTP())
				return res, nil
			})); err != nil {
				return err
			}
		}
		if preflight != nil {
			if _, err := a.Options(app.CatchAll, preflight); err != nil {
				return err
			}
		}
		return nil
	}
}

// demoPatterns lists every route the program declares
func demoPatterns(metricsPath string, withMetrics bool) []string {
	patterns := []string{healthRoute, helloRoute, echoRoute}
	if withMetrics {
		patterns = append(patterns, metricsPath)
	}
	return patterns
}

func health(*app.Request, *app.Response, ...string) (any, error) {
	return app.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
}

func hello(_ *app.Request, _ *app.Response, params ...string) (any, error) {
	name := "world"
	if len(params) > 0 {
		name = params[0]
	}
	return app.Text(http.StatusOK, "Hello, "+name+"!"), nil
}

func echo(req *app.Request, _ *app.Response, _ ...string) (any, error) {
	body, err := app.DecodeJSON[echoRequest](req)
	if err != nil {
		return nil, err
	}
	return app.JSON(http.StatusOK, echoResponse{Message: body.Message, Received: time.Now().UTC()})
}
