package app

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/Suhaibinator/monty/pkg/route"
)

// Property names accepted by Request.Set.
const (
	PropertyParams         = "params"
	PropertyPreviousReturn = "previousReturn"
)

// Request wraps an incoming *http.Request with the state the dispatcher
// carries between handlers: the route parameters of the last match and the
// value returned by the last handler.
type Request struct {
	http     *http.Request
	method   string
	path     string
	params   route.Params
	previous any
}

// NewRequest wraps r. The method and path are read once and never change.
func NewRequest(r *http.Request) *Request {
	return &Request{
		http:   r,
		method: r.Method,
		path:   r.URL.Path,
		params: route.Params{},
	}
}

// HTTP returns the wrapped request.
func (r *Request) HTTP() *http.Request { return r.http }

// Method returns the request method.
func (r *Request) Method() string { return r.method }

// Path returns the request path.
func (r *Request) Path() string { return r.path }

// Context returns the wrapped request's context.
func (r *Request) Context() context.Context { return r.http.Context() }

// SetContext replaces the wrapped request's context.
// Handlers use it to pass values to the handlers after them.
func (r *Request) SetContext(ctx context.Context) {
	r.http = r.http.WithContext(ctx)
}

// Params returns the parameters captured by the last matching route.
func (r *Request) Params() route.Params { return r.params }

// Param returns the named route parameter, or "" if it was not captured.
func (r *Request) Param(name string) string { return r.params.ByName(name) }

// UpdateRouteParams replaces the parameter bag. Parameters of earlier
// matches are dropped, not merged.
func (r *Request) UpdateRouteParams(params route.Params) {
	bag := make(route.Params, len(params))
	copy(bag, params)
	r.params = bag
}

// PreviousReturn returns what the most recently invoked handler returned.
func (r *Request) PreviousReturn() any { return r.previous }

func (r *Request) setPreviousReturn(v any) { r.previous = v }

// Set assigns one of the request's dispatch properties by name.
// "params" accepts route.Params or map[string]string; "previousReturn" accepts
// any value. Other properties, and values of the wrong type, fail with
// ErrPropertyCouldNotBeSet.
func (r *Request) Set(property string, value any) error {
	switch property {
	case PropertyParams:
		switch v := value.(type) {
		case route.Params:
			r.UpdateRouteParams(v)
			return nil
		case map[string]string:
			r.UpdateRouteParams(paramsFromMap(v))
			return nil
		}
	case PropertyPreviousReturn:
		r.setPreviousReturn(value)
		return nil
	}
	return fmt.Errorf("%w: %q (%T)", ErrPropertyCouldNotBeSet, property, value)
}

// paramsFromMap orders the map by key so the positional view is stable.
func paramsFromMap(m map[string]string) route.Params {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := make(route.Params, 0, len(keys))
	for _, k := range keys {
		params = append(params, route.Param{Key: k, Value: m[k]})
	}
	return params
}
