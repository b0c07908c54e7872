// Package app implements the dispatch core: a request and response wrapper
// and an Application that runs chains of handlers for the routes a request
// matches.
package app

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/Suhaibinator/monty/pkg/common"
	"github.com/Suhaibinator/monty/pkg/metrics"
	"github.com/Suhaibinator/monty/pkg/route"
	"go.uber.org/zap"
)

// CatchAll is the pattern that matches every path.
// A catch-all route that produces no response is not an error.
const CatchAll = ""

// MethodPurge is the non-standard cache purge method.
const MethodPurge = "PURGE"

// AllMethods is the method set used by All.
var AllMethods = []string{
	http.MethodHead,
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	MethodPurge,
	http.MethodOptions,
	http.MethodTrace,
	http.MethodConnect,
}

// Outcome describes what a Handle call did.
type Outcome int

const (
	// NotHandled means the method or the route did not match, or the exchange
	// was already answered. No handler ran.
	NotHandled Outcome = iota
	// Passed means a catch-all chain ran without committing a response.
	Passed
	// Sent means a response was committed and sent.
	Sent
	// Matched means a concrete route matched but no handler answered.
	// Handle returns an *UnhandledRequestError with it.
	Matched
	// Failed means a handler returned an error, or sending failed.
	Failed
)

// String returns the outcome name used in logs and metric labels.
func (o Outcome) String() string {
	switch o {
	case NotHandled:
		return "not_handled"
	case Passed:
		return "passed"
	case Sent:
		return "sent"
	case Matched:
		return "matched"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Config holds the collaborators of an Application. Nil fields get defaults.
type Config struct {
	Logger       *zap.Logger        // Defaults to a production logger
	RouteHandler route.RouteHandler // Defaults to route.NewCompiler()
	Recorder     metrics.Recorder   // Defaults to metrics.NopRecorder
	Registry     *Registry          // Resolves Named handlers; defaults to an empty registry
	Response     *Response          // Response handed to handlers until one commits; defaults to an empty 200
}

// Application dispatches one request/response exchange.
// It is used by a single goroutine and is discarded after the exchange.
type Application struct {
	request  *Request
	response *Response
	writer   Writer
	routes   route.RouteHandler
	logger   *zap.Logger
	recorder metrics.Recorder
	registry *Registry
	prepend  common.Chain[Handler]
	append   common.Chain[Handler]
	sent     bool
}

// New creates an Application for req. Committed responses are sent with w.
func New(req *Request, w Writer, cfg Config) *Application {
	logger := cfg.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	routes := cfg.RouteHandler
	if routes == nil {
		routes = route.NewCompiler()
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	res := cfg.Response
	if res == nil {
		res = NewResponse("")
	}

	return &Application{
		request:  req,
		response: res,
		writer:   w,
		routes:   routes,
		logger:   logger,
		recorder: recorder,
		registry: registry,
	}
}

// Request returns the request being dispatched.
func (a *Application) Request() *Request { return a.request }

// Response returns the current response: the committed one once a handler
// answered, the initial one before that.
func (a *Application) Response() *Response { return a.response }

// Logger returns the application's logger.
func (a *Application) Logger() *zap.Logger { return a.logger }

// Sent reports whether the exchange has been answered.
func (a *Application) Sent() bool { return a.sent }

// Register makes factory available to Named(name) handlers.
func (a *Application) Register(name string, factory func() Handler) {
	a.registry.Register(name, factory)
}

// Middleware adds handlers to the list selected by placement.
// Prepended handlers run before every route's own handlers, appended ones after.
// An unknown placement fails with ErrHandlerCouldNotBeIntegrated and changes nothing.
func (a *Application) Middleware(placement common.Placement, handlers ...Handler) error {
	switch placement {
	case common.Prepend:
		a.prepend = a.prepend.Append(handlers...)
	case common.Append:
		a.append = a.append.Append(handlers...)
	default:
		return fmt.Errorf("%w: unknown placement %s", ErrHandlerCouldNotBeIntegrated, placement)
	}
	return nil
}

// Before prepends handlers to every route.
func (a *Application) Before(handlers ...Handler) *Application {
	_ = a.Middleware(common.Prepend, handlers...)
	return a
}

// After appends handlers to every route.
func (a *Application) After(handlers ...Handler) *Application {
	_ = a.Middleware(common.Append, handlers...)
	return a
}

// All handles pattern for every method in AllMethods.
func (a *Application) All(pattern string, handlers ...Handler) (Outcome, error) {
	return a.Handle(AllMethods, pattern, handlers...)
}

// Get handles GET requests for pattern.
func (a *Application) Get(pattern string, handlers ...Handler) (Outcome, error) {
	return a.Handle([]string{http.MethodGet}, pattern, handlers...)
}

// Post handles POST requests for pattern.
func (a *Application) Post(pattern string, handlers ...Handler) (Outcome, error) {
	return a.Handle([]string{http.MethodPost}, pattern, handlers...)
}

// Put handles PUT requests for pattern.
func (a *Application) Put(pattern string, handlers ...Handler) (Outcome, error) {
	return a.Handle([]string{http.MethodPut}, pattern, handlers...)
}

// Patch handles PATCH requests for pattern.
func (a *Application) Patch(pattern string, handlers ...Handler) (Outcome, error) {
	return a.Handle([]string{http.MethodPatch}, pattern, handlers...)
}

// Delete handles DELETE requests for pattern.
func (a *Application) Delete(pattern string, handlers ...Handler) (Outcome, error) {
	return a.Handle([]string{http.MethodDelete}, pattern, handlers...)
}

// Options handles OPTIONS requests for pattern.
func (a *Application) Options(pattern string, handlers ...Handler) (Outcome, error) {
	return a.Handle([]string{http.MethodOptions}, pattern, handlers...)
}

// Head handles HEAD requests for pattern.
func (a *Application) Head(pattern string, handlers ...Handler) (Outcome, error) {
	return a.Handle([]string{http.MethodHead}, pattern, handlers...)
}

// Handle runs handlers for the request if its method is in methods and its
// path matches pattern.
//
// The chain is the prepended handlers, then handlers, then the appended ones.
// Each handler receives the captured parameters in order. The first *Response
// returned is committed and sent once the whole chain has run; later handlers
// still run and see the committed response. A handler error stops the chain
// and is returned as is. A concrete pattern whose chain commits nothing
// yields an *UnhandledRequestError; CatchAll never does.
func (a *Application) Handle(methods []string, pattern string, handlers ...Handler) (Outcome, error) {
	start := time.Now()
	outcome, invoked, err := a.dispatch(methods, pattern, handlers)

	a.recorder.ObserveDispatch(metrics.Dispatch{
		Method:   a.request.Method(),
		Pattern:  pattern,
		Outcome:  outcome.String(),
		Handlers: invoked,
		Duration: time.Since(start),
	})

	return outcome, err
}

func (a *Application) dispatch(methods []string, pattern string, handlers []Handler) (Outcome, int, error) {
	if a.sent {
		a.logger.Debug("Exchange already answered", a.fields(pattern)...)
		return NotHandled, 0, nil
	}

	if !slices.Contains(methods, a.request.Method()) {
		a.logger.Debug("Method not accepted by route", a.fields(pattern)...)
		return NotHandled, 0, nil
	}

	matchers, err := a.routes.ParseRoute(pattern)
	if err != nil {
		return NotHandled, 0, err
	}

	params, ok := match(matchers, a.request.Path())
	if !ok {
		a.logger.Debug("Route did not match", a.fields(pattern)...)
		return NotHandled, 0, nil
	}
	a.request.UpdateRouteParams(params)
	values := params.Values()

	chain := common.Concat(a.prepend, common.NewChain(handlers...), a.append)

	var committed *Response
	invoked := 0
	for _, entry := range chain {
		h := a.resolve(entry)
		if h == nil {
			continue
		}
		invoked++

		result, err := h.Handle(a.request, a.response, values...)
		if err != nil {
			a.logger.Debug("Handler failed", append(a.fields(pattern), zap.Error(err))...)
			return Failed, invoked, err
		}
		a.request.setPreviousReturn(result)

		if res, ok := result.(*Response); ok && res != nil && committed == nil {
			res.committed = true
			committed = res
			a.response = res
		}
	}

	if committed != nil {
		err := committed.Send(a.writer)
		a.sent = committed.Sent()
		if err != nil {
			return Failed, invoked, err
		}
		a.logger.Debug("Response sent", append(a.fields(pattern), zap.Int("status", committed.Status()))...)
		return Sent, invoked, nil
	}

	if pattern != CatchAll {
		a.logger.Warn("Unhandled request", a.fields(pattern)...)
		return Matched, invoked, &UnhandledRequestError{
			Method:  a.request.Method(),
			Path:    a.request.Path(),
			Pattern: pattern,
		}
	}

	return Passed, invoked, nil
}

// match tries each alternative in order; the first match wins.
func match(matchers []route.Matcher, path string) (route.Params, bool) {
	for _, m := range matchers {
		if params, ok := m.Match(path); ok {
			return params, true
		}
	}
	return nil, false
}

// resolve turns a chain entry into something callable, or nil to skip it.
func (a *Application) resolve(h Handler) Handler {
	switch v := h.(type) {
	case nil:
		return nil
	case HandlerFunc:
		if v == nil {
			return nil
		}
	case Named:
		if factory, ok := a.registry.Lookup(string(v)); ok && factory != nil {
			if resolved := factory(); resolved != nil {
				return resolved
			}
		}
		a.logger.Debug("Skipping unresolved handler", zap.String("handler", string(v)))
		return nil
	}
	return h
}

func (a *Application) fields(pattern string) []zap.Field {
	fields := []zap.Field{
		zap.String("method", a.request.Method()),
		zap.String("path", a.request.Path()),
		zap.String("route", pattern),
	}

	// Add trace ID if present
	if traceID := common.TraceID(a.request.Context()); traceID != "" {
		fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
	}
	return fields
}
