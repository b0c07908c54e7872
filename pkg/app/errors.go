package app

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnhandledRequest is reported when a concrete route matched the request
	// but no handler in its chain returned a response.
	ErrUnhandledRequest = errors.New("unhandled request")

	// ErrHandlerCouldNotBeIntegrated is returned by Middleware for an unknown placement.
	ErrHandlerCouldNotBeIntegrated = errors.New("handler could not be integrated")

	// ErrPropertyCouldNotBeSet is returned by Request.Set for an unknown property
	// or a value of the wrong type.
	ErrPropertyCouldNotBeSet = errors.New("property could not be set")

	// ErrResponseAlreadySent is returned when a response is sent a second time.
	ErrResponseAlreadySent = errors.New("response already sent")
)

// UnhandledRequestError carries the request and route that went unanswered.
// errors.Is(err, ErrUnhandledRequest) holds for it.
type UnhandledRequestError struct {
	Method  string
	Path    string
	Pattern string
}

// Error implements the error interface.
func (e *UnhandledRequestError) Error() string {
	return fmt.Sprintf("%s: %s %s matched route %q but no handler returned a response",
		ErrUnhandledRequest, e.Method, e.Path, e.Pattern)
}

// Is reports whether target is ErrUnhandledRequest.
func (e *UnhandledRequestError) Is(target error) bool {
	return target == ErrUnhandledRequest
}

// HTTPError represents an HTTP error with a status code and message.
// A handler returns it when the transport should answer with a specific status.
// Returning it from a handler aborts the chain like any other error.
type HTTPError struct {
	StatusCode int         // HTTP status code (e.g., 400, 404, 500)
	Message    string      // Error message to be sent in the response body
	Header     http.Header // Extra headers for the error response, may be nil
}

// Error returns the error in the format "status: message".
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// NewHTTPError creates a new HTTPError with the specified status code and message.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
	}
}
