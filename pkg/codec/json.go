// Package codec provides encoding and decoding functionality for request and response bodies.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrEmptyBody is returned by Decode when the request carries no body.
var ErrEmptyBody = errors.New("request body is empty")

// Codec defines an interface for unmarshaling request data and marshaling response data.
// T is the request data type and U the response data type.
type Codec[T any, U any] interface {
	// Decode reads the request body and deserializes it into a value of type T.
	Decode(r *http.Request) (T, error)

	// Encode serializes resp and writes it, with its content type, to w.
	Encode(w http.ResponseWriter, resp U) error

	// ContentType returns the media type produced by Encode.
	ContentType() string
}

// JSONCodec is a codec that uses JSON for marshaling and unmarshaling.
type JSONCodec[T any, U any] struct {
	// DisallowUnknownFields rejects request bodies with fields T does not declare.
	DisallowUnknownFields bool
}

// NewJSONCodec creates a new JSONCodec instance for the specified types.
// T represents the request type and U represents the response type.
func NewJSONCodec[T any, U any]() *JSONCodec[T, U] {
	return &JSONCodec[T, U]{}
}

// Decode decodes the request body into a value of type T.
func (c *JSONCodec[T, U]) Decode(r *http.Request) (T, error) {
	var data T

	if r.Body == nil || r.Body == http.NoBody {
		return data, ErrEmptyBody
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if c.DisallowUnknownFields {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&data); err != nil {
		if errors.Is(err, io.EOF) {
			return data, ErrEmptyBody
		}
		return data, fmt.Errorf("decode json: %w", err)
	}

	return data, nil
}

// Encode encodes a value of type U into the response.
// It sets the content type before writing the body.
func (c *JSONCodec[T, U]) Encode(w http.ResponseWriter, resp U) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	w.Header().Set("Content-Type", c.ContentType())
	_, err = w.Write(body)
	return err
}

// ContentType returns the JSON media type
func (c *JSONCodec[T, U]) ContentType() string {
	return "application/json"
}
