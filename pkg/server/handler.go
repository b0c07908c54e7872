// Package server runs monty applications behind a transport.
// A Handler builds one Application per exchange, runs a Program on it and
// turns whatever the program left unanswered into an HTTP response.
package server

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Suhaibinator/monty/pkg/app"
	"github.com/Suhaibinator/monty/pkg/metrics"
	"github.com/Suhaibinator/monty/pkg/middleware"
	"github.com/Suhaibinator/monty/pkg/route"
	"go.uber.org/zap"
)

// Program declares the routes of an application.
// It is run once per exchange; the error it returns is answered by the Handler.
type Program func(a *app.Application) error

// Config configures a Handler
type Config struct {
	Logger        *zap.Logger        // Logger for applications and access logs
	RouteHandler  route.RouteHandler // Shared route compiler, route.NewCompiler() when nil
	Recorder      metrics.Recorder   // Dispatch and exchange metrics, no-op when nil
	Registry      *app.Registry      // Named handlers shared by every exchange
	MaxBodySize   int64              // Request body limit in bytes, 0 for none
	EnableTraceID bool               // Tag requests, logs and responses with a trace ID
	SlowRequest   time.Duration      // Exchanges slower than this are logged at Warn, 0 disables
	Before        []app.Handler      // Prepended to every application
	After         []app.Handler      // Appended to every application
}

// Handler serves exchanges by running a Program.
// It implements http.Handler and, through FastHTTP, fasthttp.RequestHandler.
type Handler struct {
	config     Config
	program    Program
	logger     *zap.Logger
	routes     route.RouteHandler
	recorder   metrics.Recorder
	registry   *app.Registry
	wg         sync.WaitGroup
	shutdown   bool
	shutdownMu sync.RWMutex
}

// NewHandler creates a Handler running program with config.
func NewHandler(config Config, program Program) *Handler {
	logger := config.Logger
	if logger == nil {
		// Create a default logger if none is provided
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	routes := config.RouteHandler
	if routes == nil {
		routes = route.NewCompiler()
	}

	recorder := config.Recorder
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}

	registry := config.Registry
	if registry == nil {
		registry = app.NewRegistry()
	}

	return &Handler{
		config:   config,
		program:  program,
		logger:   logger,
		routes:   routes,
		recorder: recorder,
		registry: registry,
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.serve(r, app.NewHTTPWriter(w))
}

// serve runs one exchange, writing the response with w
func (h *Handler) serve(r *http.Request, w app.Writer) {
	start := time.Now()
	rw := &exchangeWriter{Writer: w}
	req := app.NewRequest(r)
	if h.config.EnableTraceID {
		middleware.AssignTraceID(req)
	}

	defer func() {
		duration := time.Since(start)
		h.recorder.ObserveExchange(metrics.Exchange{
			Method:   req.Method(),
			Status:   rw.status,
			Bytes:    rw.bytes,
			Duration: duration,
		})
		h.logExchange(req, rw, duration)
	}()

	h.shutdownMu.RLock()
	if h.shutdown {
		h.shutdownMu.RUnlock()
		h.writeError(req, rw, app.NewHTTPError(http.StatusServiceUnavailable, "Service Unavailable"))
		return
	}
	h.wg.Add(1)
	h.shutdownMu.RUnlock()
	defer h.wg.Done()

	a := app.New(req, rw, app.Config{
		Logger:       h.logger,
		RouteHandler: h.routes,
		Recorder:     h.recorder,
		Registry:     h.registry,
	})

	if h.config.MaxBodySize > 0 {
		a.Before(middleware.MaxBodySize(h.config.MaxBodySize))
	}
	a.Before(h.config.Before...)
	a.After(h.config.After...)
	if h.config.EnableTraceID {
		a.After(middleware.Trace())
	}

	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("Panic recovered", append(h.fields(req),
				zap.Any("panic", rec),
				zap.String("stack", string(debug.Stack())),
			)...)
			if !a.Sent() {
				h.writeError(req, rw, app.NewHTTPError(http.StatusInternalServerError, "Internal Server Error"))
			}
		}
	}()

	err := h.program(a)
	switch {
	case a.Sent():
		if err != nil {
			h.logger.Error("Program failed after responding", append(h.fields(req), zap.Error(err))...)
		}
	case err != nil:
		h.handleError(req, rw, err)
	default:
		h.writeError(req, rw, app.NewHTTPError(http.StatusNotFound, "Not Found"))
	}
}

// handleError logs err and answers with the status it maps to.
// An *app.HTTPError keeps its status and message; anything else is a 500.
func (h *Handler) handleError(req *app.Request, w app.Writer, err error) {
	var httpErr *app.HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = app.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
	}

	fields := append(h.fields(req), zap.Error(err), zap.Int("status", httpErr.StatusCode))
	switch {
	case errors.Is(err, app.ErrUnhandledRequest):
		h.logger.Error("Unhandled request", fields...)
	case httpErr.StatusCode >= 500:
		h.logger.Error("Request failed", fields...)
	default:
		h.logger.Debug("Request rejected", fields...)
	}

	h.writeError(req, w, httpErr)
}

// writeError sends a plain text response for httpErr
func (h *Handler) writeError(req *app.Request, w app.Writer, httpErr *app.HTTPError) {
	res := app.Text(httpErr.StatusCode, httpErr.Message+"\n")
	for k, v := range httpErr.Header {
		res.Header()[k] = v
	}
	if traceID := middleware.GetTraceID(req); traceID != "" {
		res.Header().Set(middleware.TraceIDHeader, traceID)
	}
	if err := res.Send(w); err != nil {
		h.logger.Error("Failed to write error response", append(h.fields(req), zap.Error(err))...)
	}
}

func (h *Handler) logExchange(req *app.Request, rw *exchangeWriter, duration time.Duration) {
	fields := append(h.fields(req),
		zap.Int("status", rw.status),
		zap.Int64("bytes", rw.bytes),
		zap.Duration("duration", duration),
	)

	switch {
	case rw.status >= 500:
		h.logger.Error("Server error", fields...)
	case h.config.SlowRequest > 0 && duration > h.config.SlowRequest:
		h.logger.Warn("Slow request", fields...)
	default:
		h.logger.Debug("Request metrics", fields...)
	}
}

func (h *Handler) fields(req *app.Request) []zap.Field {
	fields := []zap.Field{
		zap.String("method", req.Method()),
		zap.String("path", req.Path()),
	}

	// Add trace ID if present
	if traceID := middleware.GetTraceID(req); traceID != "" {
		fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
	}
	return fields
}

// Shutdown stops accepting exchanges and waits for the running ones to finish.
// Exchanges arriving after Shutdown are answered with 503.
// If ctx is done first, its error is returned.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.shutdownMu.Lock()
	h.shutdown = true
	h.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// exchangeWriter records the status and size of the response it writes
type exchangeWriter struct {
	app.Writer
	status int
	bytes  int64
}

func (w *exchangeWriter) WriteResponse(res *app.Response) error {
	w.status = res.Status()
	w.bytes = int64(len(res.Body()))
	return w.Writer.WriteResponse(res)
}
