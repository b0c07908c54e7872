package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/Suhaibinator/monty/pkg/app"
)

// CORSConfig configures the CORS handler.
type CORSConfig struct {
	// AllowOrigins lists the permitted origins. ["*"] allows any origin.
	AllowOrigins []string

	// AllowMethods lists the methods allowed in cross-origin requests.
	AllowMethods []string

	// AllowHeaders lists the request headers allowed in cross-origin requests.
	AllowHeaders []string

	// ExposeHeaders lists the response headers browsers may read.
	ExposeHeaders []string

	// MaxAge is how long, in seconds, preflight results may be cached.
	MaxAge int

	// AllowCredentials permits credentials. With a wildcard origin the
	// request's Origin is echoed instead of "*".
	AllowCredentials bool
}

// DefaultCORSConfig returns a permissive configuration.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodHead,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			TraceIDHeader,
		},
		MaxAge: 86400,
	}
}

// CORS returns a handler for Cross-Origin Resource Sharing.
//
// Preflight requests are answered with a committed 204. For other requests the
// handler adds the CORS headers to the response it receives, so it belongs in
// After. Preflights only reach it on routes that accept OPTIONS; route them
// with Options(app.CatchAll, cors).
func CORS(cfg CORSConfig) app.Handler {
	allowMethods := strings.Join(cfg.AllowMethods, ", ")
	allowHeaders := strings.Join(cfg.AllowHeaders, ", ")
	exposeHeaders := strings.Join(cfg.ExposeHeaders, ", ")
	allowAll := slices.Contains(cfg.AllowOrigins, "*")

	return app.HandlerFunc(func(req *app.Request, res *app.Response, _ ...string) (any, error) {
		origin := req.HTTP().Header.Get("Origin")
		if origin == "" || (!allowAll && !slices.Contains(cfg.AllowOrigins, origin)) {
			return req.PreviousReturn(), nil
		}

		allowOrigin := "*"
		if cfg.AllowCredentials || !allowAll {
			allowOrigin = origin
		}

		// Preflight
		if isPreflight(req) {
			preflight := app.NewResponseWithStatus(http.StatusNoContent, "")
			h := preflight.Header()
			h.Set("Access-Control-Allow-Origin", allowOrigin)
			h.Set("Access-Control-Allow-Methods", allowMethods)
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			if cfg.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			h.Set("Vary", "Origin, Access-Control-Request-Method, Access-Control-Request-Headers")
			return preflight, nil
		}

		h := res.Header()
		h.Set("Access-Control-Allow-Origin", allowOrigin)
		if cfg.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		if exposeHeaders != "" {
			h.Set("Access-Control-Expose-Headers", exposeHeaders)
		}
		h.Add("Vary", "Origin")
		return req.PreviousReturn(), nil
	})
}

// isPreflight reports whether req is a CORS preflight request
func isPreflight(req *app.Request) bool {
	return req.Method() == http.MethodOptions && req.HTTP().Header.Get("Access-Control-Request-Method") != ""
}
