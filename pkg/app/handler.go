package app

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnresolvedHandler is returned when a Named handler is invoked directly
// instead of being resolved by an Application.
var ErrUnresolvedHandler = errors.New("named handler invoked without resolution")

// Handler is one step of a dispatch chain.
//
// Handle receives the request, the response currently associated with the
// exchange and the captured route parameters in order. Returning a *Response
// offers it as the answer; any returned value becomes the request's
// PreviousReturn for the next handler. A non-nil error aborts the chain.
type Handler interface {
	Handle(req *Request, res *Response, params ...string) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(req *Request, res *Response, params ...string) (any, error)

// Handle calls f(req, res, params...).
func (f HandlerFunc) Handle(req *Request, res *Response, params ...string) (any, error) {
	return f(req, res, params...)
}

// Named refers to a handler by the name it was registered under.
// The Application resolves it when the chain runs; unknown names are skipped.
type Named string

// Handle fails: a Named handler only works inside an Application's chain.
func (n Named) Handle(*Request, *Response, ...string) (any, error) {
	return nil, fmt.Errorf("%w: %q", ErrUnresolvedHandler, string(n))
}

// Type returns a handler that builds a fresh zero T for every invocation and
// delegates to it. Per-invocation state in T is never shared.
func Type[T any, PT interface {
	*T
	Handler
}]() Handler {
	return typeHandler[T, PT]{}
}

type typeHandler[T any, PT interface {
	*T
	Handler
}] struct{}

func (typeHandler[T, PT]) Handle(req *Request, res *Response, params ...string) (any, error) {
	return PT(new(T)).Handle(req, res, params...)
}

// Guard wraps h so that it is skipped once a response has been committed.
// A skipped handler leaves PreviousReturn unchanged.
func Guard(h Handler) Handler {
	return HandlerFunc(func(req *Request, res *Response, params ...string) (any, error) {
		if res.Committed() {
			return req.PreviousReturn(), nil
		}
		return h.Handle(req, res, params...)
	})
}

// Registry maps handler names to factories.
// It is safe for concurrent use and can be shared by every exchange.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]func() Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() Handler)}
}

// Register stores factory under name, replacing any previous entry.
func (r *Registry) Register(name string, factory func() Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (func() Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}
