// Package common provides shared types and utilities used across the monty framework.
package common

import "fmt"

// Placement selects which middleware list a handler is registered into.
// It determines whether the handler runs before or after the route handlers.
type Placement int

const (
	// Prepend places handlers before the route handlers.
	Prepend Placement = iota

	// Append places handlers after the route handlers.
	Append
)

// Valid reports whether p is one of the known placements.
func (p Placement) Valid() bool {
	return p == Prepend || p == Append
}

// String returns the placement name, or its number when unknown.
func (p Placement) String() string {
	switch p {
	case Prepend:
		return "prepend"
	case Append:
		return "append"
	default:
		return fmt.Sprintf("placement(%d)", int(p))
	}
}
