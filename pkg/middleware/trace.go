package middleware

import (
	"github.com/Suhaibinator/monty/pkg/app"
	"github.com/Suhaibinator/monty/pkg/common"
	"github.com/google/uuid"
)

// TraceIDHeader is the response header carrying the trace ID.
const TraceIDHeader = "X-Trace-ID"

// Trace returns a handler that gives each request a unique trace ID.
// The ID is stored in the request context and set on the response the
// handler receives. A request that already has an ID keeps it, so the same
// handler can be registered Before (to tag logs) and After (to tag the
// committed response).
func Trace() app.Handler {
	return app.HandlerFunc(func(req *app.Request, res *app.Response, _ ...string) (any, error) {
		res.Header().Set(TraceIDHeader, AssignTraceID(req))
		return req.PreviousReturn(), nil
	})
}

// AssignTraceID returns the request's trace ID, generating and storing one
// first if the request has none.
func AssignTraceID(req *app.Request) string {
	traceID := GetTraceID(req)
	if traceID == "" {
		traceID = uuid.New().String()
		req.SetContext(common.WithTraceID(req.Context(), traceID))
	}
	return traceID
}

// GetTraceID returns the request's trace ID, or "" if none was assigned.
func GetTraceID(req *app.Request) string {
	return common.TraceID(req.Context())
}
