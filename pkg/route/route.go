// Package route compiles route patterns into matchers.
//
// A pattern is a path made of literal text and placeholders:
//
//	/users/:id          one path segment, captured as "id"
//	/files/*path        the rest of the path, captured as "path" (must be last)
//	/posts[/:slug]      an optional group, tried with and without its content
//
// Optional groups may nest. A pattern with optional groups expands into
// several alternatives, longest form first; a request path is tested against
// them in order and the first match wins.
package route

import (
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/multierr"
)

// ErrInvalidPattern is returned when a route pattern cannot be compiled.
// It is a configuration error and should surface when the application is set up.
var ErrInvalidPattern = errors.New("invalid route pattern")

// Params holds route parameters in the order they were captured.
// It shares its layout with httprouter.Params so both backends produce the same value.
type Params httprouter.Params

// ByName returns the value of the first parameter with the given name.
// An empty string is returned if no such parameter exists.
func (ps Params) ByName(name string) string {
	return httprouter.Params(ps).ByName(name)
}

// Values returns the parameter values in capture order.
func (ps Params) Values() []string {
	values := make([]string, len(ps))
	for i, p := range ps {
		values[i] = p.Value
	}
	return values
}

// Map returns the parameters as a map. Later duplicates win.
func (ps Params) Map() map[string]string {
	m := make(map[string]string, len(ps))
	for _, p := range ps {
		m[p.Key] = p.Value
	}
	return m
}

// Matcher tests a request path against one compiled alternative of a pattern.
type Matcher interface {
	// Match reports whether path matches and returns the captured parameters.
	Match(path string) (Params, bool)

	// String returns the compiled form of the alternative.
	String() string
}

// RouteHandler turns route patterns into matchers.
// Implementations must be safe for concurrent use: a single RouteHandler is
// shared by every exchange a server handles.
type RouteHandler interface {
	// ParseRoute compiles pattern into its alternatives, in the order they
	// must be tried. The empty pattern compiles to a single matcher that
	// accepts every path without capturing anything.
	ParseRoute(pattern string) ([]Matcher, error)
}

// Precompile compiles every pattern with h so that malformed patterns fail at
// setup time rather than on the first request. All failures are reported.
func Precompile(h RouteHandler, patterns ...string) error {
	var err error
	for _, p := range patterns {
		if _, perr := h.ParseRoute(p); perr != nil {
			err = multierr.Append(err, perr)
		}
	}
	return err
}

// MatchAll accepts every path and captures nothing.
var MatchAll Matcher = matchAll{}

type matchAll struct{}

func (matchAll) Match(string) (Params, bool) { return Params{}, true }

func (matchAll) String() string { return "*" }

// lookupMethod is the method tree routes are registered under in the tree backend.
// Method filtering happens before matching, so one tree is enough.
const lookupMethod = http.MethodGet
