package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/Suhaibinator/monty/pkg/app"
	"github.com/Suhaibinator/monty/pkg/middleware"
)

var _ = Describe("JWTAuth", func() {
	secret := []byte("testsecret")
	keyfunc := func(*jwt.Token) (interface{}, error) { return secret, nil }

	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	dispatch := func(authorization string, cfg middleware.JWTConfig) (app.Outcome, error, string, *capture) {
		r := httptest.NewRequest(http.MethodGet, "/me", nil)
		if authorization != "" {
			r.Header.Set("Authorization", authorization)
		}
		c := &capture{}
		a := app.New(app.NewRequest(r), c, app.Config{Logger: zap.NewNop()})
		a.Before(middleware.JWTAuth(cfg))

		var sub string
		outcome, err := a.Get("/me", app.HandlerFunc(func(req *app.Request, _ *app.Response, _ ...string) (any, error) {
			if claims, ok := middleware.JWTClaims(req.Context()); ok {
				sub, _ = claims["sub"].(string)
			}
			return app.NewResponse("me"), nil
		}))
		return outcome, err, sub, c
	}

	It("accepts a valid token and exposes its claims", func() {
		token := sign(jwt.MapClaims{
			"iss": "monty",
			"sub": "user1",
			"exp": time.Now().Add(5 * time.Minute).Unix(),
		})

		outcome, err, sub, c := dispatch("Bearer "+token, middleware.JWTConfig{Keyfunc: keyfunc, Issuer: "monty"})
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(app.Sent))
		Expect(sub).To(Equal("user1"))
		Expect(c.responses).To(HaveLen(1))
	})

	It("rejects a missing token with 401 and stops the chain", func() {
		outcome, err, sub, c := dispatch("", middleware.JWTConfig{Keyfunc: keyfunc})

		var httpErr *app.HTTPError
		Expect(errors.As(err, &httpErr)).To(BeTrue())
		Expect(httpErr.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(httpErr.Header.Get("WWW-Authenticate")).To(ContainSubstring("missing Authorization header"))
		Expect(outcome).To(Equal(app.Failed))
		Expect(sub).To(BeEmpty())
		Expect(c.responses).To(BeEmpty())
	})

	It("lets CORS preflights through without a token", func() {
		r := httptest.NewRequest(http.MethodOptions, "/me", nil)
		r.Header.Set("Origin", "https://example.com")
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
		c := &capture{}
		a := app.New(app.NewRequest(r), c, app.Config{Logger: zap.NewNop()})
		a.Before(middleware.JWTAuth(middleware.JWTConfig{Keyfunc: keyfunc}))

		outcome, err := a.Options(app.CatchAll, ok("preflight"))
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(app.Sent))
		Expect(c.responses).To(HaveLen(1))
	})

	It("still checks plain OPTIONS requests", func() {
		r := httptest.NewRequest(http.MethodOptions, "/me", nil)
		a := app.New(app.NewRequest(r), &capture{}, app.Config{Logger: zap.NewNop()})
		a.Before(middleware.JWTAuth(middleware.JWTConfig{Keyfunc: keyfunc}))

		outcome, err := a.Options(app.CatchAll, ok("options"))
		Expect(err).To(HaveOccurred())
		Expect(outcome).To(Equal(app.Failed))
	})

	It("rejects other schemes, expired tokens and wrong issuers", func() {
		expired := sign(jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-time.Hour).Unix()})
		wrongIssuer := sign(jwt.MapClaims{"sub": "u", "iss": "other"})

		for _, authorization := range []string{"Basic abc", "Bearer " + expired, "Bearer " + wrongIssuer, "Bearer not.a.token"} {
			_, err, _, _ := dispatch(authorization, middleware.JWTConfig{Keyfunc: keyfunc, Issuer: "monty"})
			var httpErr *app.HTTPError
			Expect(errors.As(err, &httpErr)).To(BeTrue(), authorization)
			Expect(httpErr.StatusCode).To(Equal(http.StatusUnauthorized))
		}
	})

	It("lets anonymous requests through when optional", func() {
		outcome, err, sub, _ := dispatch("", middleware.JWTConfig{Keyfunc: keyfunc, Optional: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(app.Sent))
		Expect(sub).To(BeEmpty())
	})
})
