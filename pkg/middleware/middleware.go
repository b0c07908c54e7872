// Package middleware provides ready-made handlers for monty applications.
//
// Each constructor returns an app.Handler meant to be registered with
// Application.Before or Application.After. Handlers that only decorate the
// response they receive should run After, where they see the committed
// response. Handlers that reject a request (JWTAuth, RateLimit) return an
// *app.HTTPError, which stops the chain.
package middleware

import (
	"net/http"

	"github.com/Suhaibinator/monty/pkg/app"
	"go.uber.org/zap"
)

// Logging returns a handler that logs the request and the status of the
// response it receives. Register it with After.
func Logging(logger *zap.Logger) app.Handler {
	return app.HandlerFunc(func(req *app.Request, res *app.Response, _ ...string) (any, error) {
		fields := []zap.Field{
			zap.String("method", req.Method()),
			zap.String("path", req.Path()),
			zap.Int("status", res.Status()),
			zap.Int("bytes", len(res.Body())),
		}

		// Add trace ID if present
		if traceID := GetTraceID(req); traceID != "" {
			fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
		}

		switch {
		case !res.Committed():
			logger.Debug("No response committed", fields...)
		case res.Status() >= 500:
			logger.Error("Server error", fields...)
		case res.Status() >= 400:
			logger.Warn("Client error", fields...)
		default:
			logger.Debug("Request", fields...)
		}

		return req.PreviousReturn(), nil
	})
}

// MaxBodySize returns a handler that limits the size of the request body.
// Reads past maxSize fail; app.DecodeJSON reports them as 413.
// A maxSize of 0 or less disables the limit.
func MaxBodySize(maxSize int64) app.Handler {
	return app.HandlerFunc(func(req *app.Request, res *app.Response, _ ...string) (any, error) {
		r := req.HTTP()
		if maxSize > 0 && r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(res, r.Body, maxSize)
		}
		return req.PreviousReturn(), nil
	})
}
