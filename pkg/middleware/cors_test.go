package middleware_test

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/Suhaibinator/monty/pkg/app"
	"github.com/Suhaibinator/monty/pkg/middleware"
)

var _ = Describe("CORS", func() {
	It("answers preflight requests with 204", func() {
		r := httptest.NewRequest(http.MethodOptions, "/items", nil)
		r.Header.Set("Origin", "https://example.com")
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
		c := &capture{}
		a := app.New(app.NewRequest(r), c, app.Config{Logger: zap.NewNop()})

		outcome, err := a.Options(app.CatchAll, middleware.CORS(middleware.DefaultCORSConfig()))
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(app.Sent))

		res := c.responses[0]
		Expect(res.Status()).To(Equal(http.StatusNoContent))
		Expect(res.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		Expect(res.Header().Get("Access-Control-Allow-Methods")).To(ContainSubstring(http.MethodPost))
		Expect(res.Header().Get("Access-Control-Max-Age")).To(Equal("86400"))
	})

	It("decorates the committed response when run after the route", func() {
		r := httptest.NewRequest(http.MethodGet, "/items", nil)
		r.Header.Set("Origin", "https://example.com")
		c := &capture{}
		a := app.New(app.NewRequest(r), c, app.Config{Logger: zap.NewNop()})

		cfg := middleware.DefaultCORSConfig()
		cfg.AllowOrigins = []string{"https://example.com"}
		cfg.AllowCredentials = true
		cfg.ExposeHeaders = []string{middleware.TraceIDHeader}
		a.After(middleware.CORS(cfg))

		_, err := a.Get("/items", ok("items"))
		Expect(err).NotTo(HaveOccurred())

		h := c.responses[0].Header()
		Expect(h.Get("Access-Control-Allow-Origin")).To(Equal("https://example.com"))
		Expect(h.Get("Access-Control-Allow-Credentials")).To(Equal("true"))
		Expect(h.Get("Access-Control-Expose-Headers")).To(Equal(middleware.TraceIDHeader))
		Expect(h.Values("Vary")).To(ContainElement("Origin"))
	})

	It("leaves disallowed origins alone", func() {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://evil.example")
		req := app.NewRequest(r)
		res := app.NewResponse("")

		cfg := middleware.DefaultCORSConfig()
		cfg.AllowOrigins = []string{"https://example.com"}
		_, err := middleware.CORS(cfg).Handle(req, res)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})
})
