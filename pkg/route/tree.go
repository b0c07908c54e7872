package route

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/julienschmidt/httprouter"
)

// Param is a single route parameter.
type Param = httprouter.Param

// TreeCompiler is a RouteHandler backed by httprouter's radix tree.
// Placeholders must span whole path segments and a catch-all must follow a
// '/'. Unlike the regex backend, a catch-all value keeps its leading slash.
type TreeCompiler struct {
	cache sync.Map // map[string]compiled
}

// NewTreeCompiler creates a new httprouter-backed RouteHandler
func NewTreeCompiler() *TreeCompiler {
	return &TreeCompiler{}
}

// ParseRoute registers each alternative of pattern in its own tree.
func (c *TreeCompiler) ParseRoute(pattern string) ([]Matcher, error) {
	if pattern == "" {
		return []Matcher{MatchAll}, nil
	}

	if v, ok := c.cache.Load(pattern); ok {
		entry := v.(compiled)
		return entry.matchers, entry.err
	}

	matchers, err := compileTree(pattern)
	v, _ := c.cache.LoadOrStore(pattern, compiled{matchers: matchers, err: err})
	entry := v.(compiled)
	return entry.matchers, entry.err
}

func compileTree(pattern string) ([]Matcher, error) {
	alts, err := alternatives(pattern)
	if err != nil {
		return nil, err
	}

	matchers := make([]Matcher, 0, len(alts))
	for _, alt := range alts {
		path, err := treePath(pattern, alt)
		if err != nil {
			return nil, err
		}
		tree, err := register(path)
		if err != nil {
			return nil, invalid(pattern, "%v", err)
		}
		matchers = append(matchers, &TreeMatcher{tree: tree, path: path})
	}
	return matchers, nil
}

// treePath renders a flat alternative in httprouter syntax.
func treePath(pattern string, alt []token) (string, error) {
	var b strings.Builder
	for i, t := range alt {
		switch t.kind {
		case literalToken:
			b.WriteString(t.text)
		case paramToken:
			if i+1 < len(alt) && !strings.HasPrefix(alt[i+1].text, "/") {
				return "", invalid(pattern, "parameter %q must end at a '/'", t.text)
			}
			b.WriteString(":" + t.text)
		case splatToken:
			if !strings.HasSuffix(b.String(), "/") {
				return "", invalid(pattern, "catch-all %q must follow a '/'", t.text)
			}
			b.WriteString("*" + t.text)
		}
	}
	path := b.String()
	if !strings.HasPrefix(path, "/") {
		return "", invalid(pattern, "alternative %q must begin with '/'", path)
	}
	return path, nil
}

// register builds a single-route tree. httprouter reports bad paths by
// panicking, so the panic is turned into an error here.
func register(path string) (tree *httprouter.Router, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			tree = nil
			err = fmt.Errorf("%v", rec)
		}
	}()

	tree = httprouter.New()
	tree.Handle(lookupMethod, path, func(http.ResponseWriter, *http.Request, httprouter.Params) {})
	return tree, nil
}

// TreeMatcher matches paths against one registered alternative.
type TreeMatcher struct {
	tree *httprouter.Router
	path string
}

// Match reports whether path resolves to the registered route.
func (m *TreeMatcher) Match(path string) (Params, bool) {
	handle, ps, _ := m.tree.Lookup(lookupMethod, path)
	if handle == nil {
		return nil, false
	}
	if ps == nil {
		return Params{}, true
	}
	return Params(ps), true
}

func (m *TreeMatcher) String() string {
	return m.path
}
