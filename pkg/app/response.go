package app

import (
	"bytes"
	"net/http"

	"github.com/Suhaibinator/monty/pkg/codec"
)

// Response is a buffered outgoing response.
// It implements http.ResponseWriter so encoders and helpers such as
// http.Error can fill it; nothing reaches the client until Send.
type Response struct {
	status      int
	header      http.Header
	body        bytes.Buffer
	wroteHeader bool
	committed   bool
	sent        bool
}

// NewResponse creates a 200 response with the given body.
func NewResponse(body string) *Response {
	return NewResponseWithStatus(http.StatusOK, body)
}

// NewResponseWithStatus creates a response with the given status and body.
func NewResponseWithStatus(status int, body string) *Response {
	res := &Response{
		status: status,
		header: make(http.Header),
	}
	res.body.WriteString(body)
	return res
}

// Text creates a plain text response.
func Text(status int, body string) *Response {
	res := NewResponseWithStatus(status, body)
	res.header.Set("Content-Type", "text/plain; charset=utf-8")
	return res
}

// JSON creates a response whose body is v encoded as JSON.
func JSON(status int, v any) (*Response, error) {
	res := NewResponseWithStatus(status, "")
	if err := codec.NewJSONCodec[any, any]().Encode(res, v); err != nil {
		return nil, err
	}
	return res, nil
}

// Status returns the status code.
func (r *Response) Status() int { return r.status }

// SetStatus sets the status code.
func (r *Response) SetStatus(status int) { r.status = status }

// Header returns the response headers.
func (r *Response) Header() http.Header { return r.header }

// Body returns the buffered body.
func (r *Response) Body() []byte { return r.body.Bytes() }

// SetBody replaces the buffered body.
func (r *Response) SetBody(body string) {
	r.body.Reset()
	r.body.WriteString(body)
}

// Write appends b to the body.
func (r *Response) Write(b []byte) (int, error) {
	return r.body.Write(b)
}

// WriteHeader sets the status code. As with net/http, only the first call counts.
func (r *Response) WriteHeader(statusCode int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = statusCode
}

// Committed reports whether the dispatcher chose this response as the answer to the exchange.
func (r *Response) Committed() bool { return r.committed }

// Sent reports whether the response has been written to the client.
func (r *Response) Sent() bool { return r.sent }

// Send writes the response with w. A response can be sent only once.
func (r *Response) Send(w Writer) error {
	if r.sent {
		return ErrResponseAlreadySent
	}
	r.sent = true
	return w.WriteResponse(r)
}

// Writer delivers a response to the client.
type Writer interface {
	WriteResponse(res *Response) error
}

// HTTPWriter writes responses to a net/http ResponseWriter.
type HTTPWriter struct {
	w http.ResponseWriter
}

// NewHTTPWriter creates a Writer for w.
func NewHTTPWriter(w http.ResponseWriter) *HTTPWriter {
	return &HTTPWriter{w: w}
}

// WriteResponse copies the headers, status and body of res to the underlying writer.
func (hw *HTTPWriter) WriteResponse(res *Response) error {
	dst := hw.w.Header()
	for k, v := range res.Header() {
		dst[k] = append([]string(nil), v...)
	}
	hw.w.WriteHeader(res.Status())
	_, err := hw.w.Write(res.Body())
	return err
}
