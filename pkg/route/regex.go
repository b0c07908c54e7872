package route

import (
	"regexp"
	"strings"
	"sync"
)

// Compiler is the default RouteHandler. Every alternative of a pattern is
// compiled into an anchored regular expression with one named group per
// placeholder. Compiled patterns are cached.
type Compiler struct {
	cache sync.Map // map[string]compiled
}

// compiled is a cache entry: either the matchers or the compile error.
type compiled struct {
	matchers []Matcher
	err      error
}

// NewCompiler creates a new regex-backed RouteHandler
func NewCompiler() *Compiler {
	return &Compiler{}
}

// ParseRoute compiles pattern into anchored regular expressions.
func (c *Compiler) ParseRoute(pattern string) ([]Matcher, error) {
	if pattern == "" {
		return []Matcher{MatchAll}, nil
	}

	if v, ok := c.cache.Load(pattern); ok {
		entry := v.(compiled)
		return entry.matchers, entry.err
	}

	matchers, err := compileRegex(pattern)
	v, _ := c.cache.LoadOrStore(pattern, compiled{matchers: matchers, err: err})
	entry := v.(compiled)
	return entry.matchers, entry.err
}

func compileRegex(pattern string) ([]Matcher, error) {
	alts, err := alternatives(pattern)
	if err != nil {
		return nil, err
	}

	matchers := make([]Matcher, 0, len(alts))
	for _, alt := range alts {
		re, err := regexp.Compile(expression(alt))
		if err != nil {
			return nil, invalid(pattern, "%v", err)
		}
		matchers = append(matchers, &RegexMatcher{re: re})
	}
	return matchers, nil
}

// expression renders a flat alternative as an anchored regular expression.
func expression(alt []token) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, t := range alt {
		switch t.kind {
		case literalToken:
			b.WriteString(regexp.QuoteMeta(t.text))
		case paramToken:
			b.WriteString("(?P<" + t.text + ">[^/]+)")
		case splatToken:
			b.WriteString("(?P<" + t.text + ">.*)")
		}
	}
	b.WriteByte('$')
	return b.String()
}

// RegexMatcher matches paths against one compiled alternative.
type RegexMatcher struct {
	re *regexp.Regexp
}

// Regexp returns the compiled expression.
func (m *RegexMatcher) Regexp() *regexp.Regexp {
	return m.re
}

// Match reports whether path matches. Only named groups become parameters.
func (m *RegexMatcher) Match(path string) (Params, bool) {
	sub := m.re.FindStringSubmatch(path)
	if sub == nil {
		return nil, false
	}

	params := make(Params, 0, len(sub)-1)
	for i, name := range m.re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		params = append(params, Param{Key: name, Value: sub[i]})
	}
	return params, true
}

func (m *RegexMatcher) String() string {
	return m.re.String()
}
