package common

// Chain is an ordered list of handlers.
// Chains are values: Append, Prepend and Concat never modify the receiver's backing array.
type Chain[H any] []H

// NewChain creates a new chain holding a copy of the given handlers
func NewChain[H any](handlers ...H) Chain[H] {
	c := make(Chain[H], len(handlers))
	copy(c, handlers)
	return c
}

// Append adds handlers to the end of the chain
func (c Chain[H]) Append(handlers ...H) Chain[H] {
	result := make(Chain[H], 0, len(c)+len(handlers))
	result = append(result, c...)
	return append(result, handlers...)
}

// Prepend adds handlers to the beginning of the chain
func (c Chain[H]) Prepend(handlers ...H) Chain[H] {
	result := make(Chain[H], len(handlers)+len(c))
	copy(result, handlers)
	copy(result[len(handlers):], c)
	return result
}

// Concat joins chains in order into a new chain.
func Concat[H any](chains ...Chain[H]) Chain[H] {
	n := 0
	for _, c := range chains {
		n += len(c)
	}
	result := make(Chain[H], 0, n)
	for _, c := range chains {
		result = append(result, c...)
	}
	return result
}

// Len returns the number of handlers in the chain
func (c Chain[H]) Len() int {
	return len(c)
}
