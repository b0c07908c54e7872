package middleware_test

import (
	"net/http"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Suhaibinator/monty/pkg/app"
	"github.com/Suhaibinator/monty/pkg/middleware"
)

var _ = Describe("Trace", func() {
	It("assigns a trace ID and puts it on the committed response", func() {
		a, c := newApp(http.MethodGet, "/")
		a.Before(middleware.Trace()).After(middleware.Trace())

		var seen string
		outcome, err := a.Get("/", app.HandlerFunc(func(req *app.Request, _ *app.Response, _ ...string) (any, error) {
			seen = middleware.GetTraceID(req)
			return app.NewResponse("traced"), nil
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(app.Sent))

		_, perr := uuid.Parse(seen)
		Expect(perr).NotTo(HaveOccurred())
		Expect(c.responses).To(HaveLen(1))
		Expect(c.responses[0].Header().Get(middleware.TraceIDHeader)).To(Equal(seen))
	})

	It("keeps an existing trace ID", func() {
		a, _ := newApp(http.MethodGet, "/")
		h := middleware.Trace()
		res := app.NewResponse("")

		_, err := h.Handle(a.Request(), res)
		Expect(err).NotTo(HaveOccurred())
		first := middleware.GetTraceID(a.Request())

		_, err = h.Handle(a.Request(), res)
		Expect(err).NotTo(HaveOccurred())
		Expect(middleware.GetTraceID(a.Request())).To(Equal(first))
	})

	It("reports no trace ID when none was assigned", func() {
		a, _ := newApp(http.MethodGet, "/")
		Expect(middleware.GetTraceID(a.Request())).To(BeEmpty())
	})
})
