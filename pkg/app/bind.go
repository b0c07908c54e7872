package app

import (
	"errors"
	"net/http"

	"github.com/Suhaibinator/monty/pkg/codec"
)

// DecodeJSON decodes the request body into a T.
// Malformed or missing bodies are reported as a 400 *HTTPError and bodies
// over the configured size limit as a 413.
func DecodeJSON[T any](req *Request) (T, error) {
	data, err := codec.NewJSONCodec[T, any]().Decode(req.HTTP())
	if err == nil {
		return data, nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return data, NewHTTPError(http.StatusRequestEntityTooLarge, "Request Entity Too Large")
	}
	return data, NewHTTPError(http.StatusBadRequest, err.Error())
}
