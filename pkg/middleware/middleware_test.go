package middleware_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Suhaibinator/monty/pkg/app"
	"github.com/Suhaibinator/monty/pkg/middleware"
)

var _ = Describe("Logging", func() {
	It("logs the committed response at a level matching its status", func() {
		core, logs := observer.New(zapcore.DebugLevel)
		a, _ := newApp(http.MethodGet, "/boom")
		a.After(middleware.Logging(zap.New(core)))

		_, err := a.Get("/boom", app.HandlerFunc(func(*app.Request, *app.Response, ...string) (any, error) {
			return app.NewResponseWithStatus(http.StatusBadGateway, "upstream"), nil
		}))
		Expect(err).NotTo(HaveOccurred())

		entries := logs.FilterMessage("Server error").All()
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].ContextMap()).To(HaveKeyWithValue("status", int64(http.StatusBadGateway)))
		Expect(entries[0].ContextMap()).To(HaveKeyWithValue("path", "/boom"))
	})

	It("logs client errors as warnings and uncommitted exchanges at debug", func() {
		core, logs := observer.New(zapcore.DebugLevel)
		logger := zap.New(core)

		a, _ := newApp(http.MethodGet, "/")
		a.After(middleware.Logging(logger))
		_, _ = a.Get("/", app.HandlerFunc(func(*app.Request, *app.Response, ...string) (any, error) {
			return app.Text(http.StatusNotFound, "nope"), nil
		}))
		Expect(logs.FilterMessage("Client error").Len()).To(Equal(1))

		b, _ := newApp(http.MethodGet, "/")
		b.After(middleware.Logging(logger))
		_, _ = b.All(app.CatchAll)
		Expect(logs.FilterMessage("No response committed").Len()).To(Equal(1))
	})

	It("leaves the previous return untouched", func() {
		a, _ := newApp(http.MethodGet, "/")
		a.After(middleware.Logging(zap.NewNop()))
		_, _ = a.All(app.CatchAll, app.HandlerFunc(func(*app.Request, *app.Response, ...string) (any, error) {
			return "value", nil
		}))
		Expect(a.Request().PreviousReturn()).To(Equal("value"))
	})
})

var _ = Describe("MaxBodySize", func() {
	read := func(limit int64, body string) error {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req := app.NewRequest(r)
		_, err := middleware.MaxBodySize(limit).Handle(req, app.NewResponse(""))
		Expect(err).NotTo(HaveOccurred())
		_, err = io.ReadAll(req.HTTP().Body)
		return err
	}

	It("allows bodies within the limit", func() {
		Expect(read(16, "small")).To(Succeed())
	})

	It("fails reads past the limit", func() {
		err := read(4, "much too large")
		var tooLarge *http.MaxBytesError
		Expect(errors.As(err, &tooLarge)).To(BeTrue())
	})

	It("disables the limit when not positive", func() {
		Expect(read(0, "anything goes")).To(Succeed())
	})

	It("makes DecodeJSON answer 413", func() {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"far too long for the limit"}`))
		c := &capture{}
		a := app.New(app.NewRequest(r), c, app.Config{Logger: zap.NewNop()})
		a.Before(middleware.MaxBodySize(8))

		_, err := a.Post("/", app.HandlerFunc(func(req *app.Request, _ *app.Response, _ ...string) (any, error) {
			_, err := app.DecodeJSON[map[string]string](req)
			return nil, err
		}))

		var httpErr *app.HTTPError
		Expect(errors.As(err, &httpErr)).To(BeTrue())
		Expect(httpErr.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))
	})
})
