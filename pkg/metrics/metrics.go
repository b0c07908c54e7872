// Package metrics records what the dispatcher and the transport do.
// It offers a no-op recorder and a Prometheus-backed one.
package metrics

import (
	"time"
)

// Dispatch describes one completed Handle call.
type Dispatch struct {
	Method   string        // Request method
	Pattern  string        // Route pattern passed to Handle ("" for catch-all)
	Outcome  string        // Outcome name (not_handled, passed, sent, matched, failed)
	Handlers int           // Number of handlers invoked
	Duration time.Duration // Time spent matching and running the chain
}

// Exchange describes one completed HTTP exchange served by the transport.
type Exchange struct {
	Method   string
	Status   int
	Bytes    int64
	Duration time.Duration
}

// Recorder receives dispatch and exchange observations.
// Implementations must be safe for concurrent use.
type Recorder interface {
	// ObserveDispatch records one Handle call.
	ObserveDispatch(d Dispatch)

	// ObserveExchange records one served request.
	ObserveExchange(e Exchange)
}

// NopRecorder discards every observation
type NopRecorder struct{}

// ObserveDispatch does nothing
func (NopRecorder) ObserveDispatch(Dispatch) {}

// ObserveExchange does nothing
func (NopRecorder) ObserveExchange(Exchange) {}
