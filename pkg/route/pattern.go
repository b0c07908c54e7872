package route

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	literalToken tokenKind = iota
	paramToken
	splatToken
	optionalToken
)

// token is one piece of a parsed pattern.
type token struct {
	kind     tokenKind
	text     string  // literal text or placeholder name
	children []token // content of an optional group
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameByte(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

func invalid(pattern, format string, args ...any) error {
	return fmt.Errorf("%w %q: %s", ErrInvalidPattern, pattern, fmt.Sprintf(format, args...))
}

// parsePattern splits a pattern into tokens. A ':' or '*' that is not
// followed by a name is kept as literal text.
func parsePattern(pattern string) ([]token, error) {
	stack := [][]token{nil}
	var lit strings.Builder

	flush := func() {
		if lit.Len() == 0 {
			return
		}
		top := len(stack) - 1
		stack[top] = append(stack[top], token{kind: literalToken, text: lit.String()})
		lit.Reset()
	}

	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch {
		case c == '[':
			flush()
			stack = append(stack, nil)
			i++
		case c == ']':
			flush()
			if len(stack) == 1 {
				return nil, invalid(pattern, "unexpected ']' at offset %d", i)
			}
			group := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(group) == 0 {
				return nil, invalid(pattern, "empty optional group at offset %d", i)
			}
			top := len(stack) - 1
			stack[top] = append(stack[top], token{kind: optionalToken, children: group})
			i++
		case (c == ':' || c == '*') && i+1 < len(pattern) && isNameStart(pattern[i+1]):
			flush()
			j := i + 1
			for j < len(pattern) && isNameByte(pattern[j]) {
				j++
			}
			kind := paramToken
			if c == '*' {
				kind = splatToken
			}
			top := len(stack) - 1
			stack[top] = append(stack[top], token{kind: kind, text: pattern[i+1 : j]})
			i = j
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()

	if len(stack) != 1 {
		return nil, invalid(pattern, "unclosed '['")
	}
	return stack[0], nil
}

// expand resolves optional groups into flat alternatives.
// Alternatives that include a group come before those that omit it.
func expand(tokens []token) [][]token {
	alts := [][]token{nil}
	for _, t := range tokens {
		var options [][]token
		if t.kind == optionalToken {
			options = append(expand(t.children), nil)
		} else {
			options = [][]token{{t}}
		}

		next := make([][]token, 0, len(alts)*len(options))
		for _, a := range alts {
			for _, o := range options {
				combined := make([]token, 0, len(a)+len(o))
				combined = append(combined, a...)
				combined = append(combined, o...)
				next = append(next, combined)
			}
		}
		alts = next
	}
	return alts
}

// validate checks the rules every flat alternative must satisfy.
func validate(pattern string, alt []token) error {
	seen := make(map[string]bool)
	for i, t := range alt {
		if t.kind == literalToken {
			continue
		}
		if seen[t.text] {
			return invalid(pattern, "duplicate parameter %q", t.text)
		}
		seen[t.text] = true
		if t.kind == splatToken && i != len(alt)-1 {
			return invalid(pattern, "catch-all parameter %q must be last", t.text)
		}
	}
	return nil
}

// alternatives parses, expands and validates a pattern.
func alternatives(pattern string) ([][]token, error) {
	tokens, err := parsePattern(pattern)
	if err != nil {
		return nil, err
	}
	alts := expand(tokens)
	for _, alt := range alts {
		if err := validate(pattern, alt); err != nil {
			return nil, err
		}
	}
	return alts, nil
}
