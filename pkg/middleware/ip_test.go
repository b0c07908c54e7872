package middleware_test

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Suhaibinator/monty/pkg/app"
	"github.com/Suhaibinator/monty/pkg/middleware"
)

func clientIPOf(config *middleware.IPConfig, setup func(r *http.Request)) string {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	setup(r)
	req := app.NewRequest(r)

	_, err := middleware.ClientIP(config).Handle(req, app.NewResponse(""))
	Expect(err).NotTo(HaveOccurred())
	return middleware.GetClientIP(req)
}

var _ = Describe("ClientIP", func() {
	It("uses the leftmost X-Forwarded-For entry by default", func() {
		ip := clientIPOf(nil, func(r *http.Request) {
			r.Header.Set("X-Forwarded-For", "192.168.1.1, 10.0.0.2")
		})
		Expect(ip).To(Equal("192.168.1.1"))
	})

	It("falls back to RemoteAddr without the header", func() {
		ip := clientIPOf(nil, func(*http.Request) {})
		Expect(ip).To(Equal("10.0.0.1"))
	})

	It("reads X-Real-IP and custom headers", func() {
		ip := clientIPOf(&middleware.IPConfig{Source: middleware.IPSourceXRealIP, TrustProxy: true}, func(r *http.Request) {
			r.Header.Set("X-Real-IP", "172.16.0.9")
		})
		Expect(ip).To(Equal("172.16.0.9"))

		ip = clientIPOf(&middleware.IPConfig{Source: middleware.IPSourceCustomHeader, CustomHeader: "CF-Connecting-IP", TrustProxy: true}, func(r *http.Request) {
			r.Header.Set("CF-Connecting-IP", "203.0.113.7")
		})
		Expect(ip).To(Equal("203.0.113.7"))
	})

	It("ignores proxy headers when proxies are not trusted", func() {
		ip := clientIPOf(&middleware.IPConfig{Source: middleware.IPSourceXForwardedFor}, func(r *http.Request) {
			r.Header.Set("X-Forwarded-For", "192.168.1.1")
		})
		Expect(ip).To(Equal("10.0.0.1"))
	})

	It("strips ports and brackets from IPv6 addresses", func() {
		ip := clientIPOf(&middleware.IPConfig{Source: middleware.IPSourceRemoteAddr}, func(r *http.Request) {
			r.RemoteAddr = "[2001:db8::1]:8080"
		})
		Expect(ip).To(Equal("2001:db8::1"))
	})

	It("derives the IP from RemoteAddr when the handler did not run", func() {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "127.0.0.1:5555"
		Expect(middleware.GetClientIP(app.NewRequest(r))).To(Equal("127.0.0.1"))
	})
})
