package server

import (
	"net/http"

	"github.com/Suhaibinator/monty/pkg/app"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// FastHTTP serves an exchange received by a fasthttp server.
// Its signature matches fasthttp.RequestHandler.
func (h *Handler) FastHTTP(ctx *fasthttp.RequestCtx) {
	var r http.Request
	if err := fasthttpadaptor.ConvertRequest(ctx, &r, true); err != nil {
		h.logger.Error("Failed to convert fasthttp request", zap.Error(err))
		ctx.Error("Internal Server Error", fasthttp.StatusInternalServerError)
		return
	}

	h.serve(r.WithContext(ctx), NewFastHTTPWriter(ctx))
}

// FastHTTPWriter writes responses to a fasthttp request context
type FastHTTPWriter struct {
	ctx *fasthttp.RequestCtx
}

// NewFastHTTPWriter creates an app.Writer for ctx
func NewFastHTTPWriter(ctx *fasthttp.RequestCtx) *FastHTTPWriter {
	return &FastHTTPWriter{ctx: ctx}
}

// WriteResponse copies res into the fasthttp response
func (w *FastHTTPWriter) WriteResponse(res *app.Response) error {
	for k, values := range res.Header() {
		for i, v := range values {
			if i == 0 {
				w.ctx.Response.Header.Set(k, v)
			} else {
				w.ctx.Response.Header.Add(k, v)
			}
		}
	}
	w.ctx.SetStatusCode(res.Status())
	w.ctx.SetBody(res.Body())
	return nil
}

var _ app.Writer = (*FastHTTPWriter)(nil)
