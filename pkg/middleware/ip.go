package middleware

import (
	"context"
	"net"
	"strings"

	"github.com/Suhaibinator/monty/pkg/app"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the X-Forwarded-For header
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header
	IPSourceXRealIP IPSourceType = "x_real_ip"

	// IPSourceCustomHeader uses a custom header specified in the configuration
	IPSourceCustomHeader IPSourceType = "custom_header"
)

// IPConfig defines configuration for IP extraction
type IPConfig struct {
	// Source specifies where to extract the client IP from
	Source IPSourceType

	// CustomHeader is the header read when Source is IPSourceCustomHeader
	CustomHeader string

	// TrustProxy allows proxy headers to be used.
	// When false, RemoteAddr is used whatever the Source.
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source:     IPSourceXForwardedFor,
		TrustProxy: true,
	}
}

type clientIPKey struct{}

// ClientIP returns a handler that stores the client IP in the request context.
func ClientIP(config *IPConfig) app.Handler {
	if config == nil {
		config = DefaultIPConfig()
	}

	return app.HandlerFunc(func(req *app.Request, _ *app.Response, _ ...string) (any, error) {
		ip := extractClientIP(req, config)
		req.SetContext(context.WithValue(req.Context(), clientIPKey{}, ip))
		return req.PreviousReturn(), nil
	})
}

// GetClientIP returns the IP stored by ClientIP, or the host part of
// RemoteAddr when ClientIP did not run.
func GetClientIP(req *app.Request) string {
	if ip, ok := req.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return cleanIP(req.HTTP().RemoteAddr)
}

// extractClientIP extracts the client IP from the request based on the configuration
func extractClientIP(req *app.Request, config *IPConfig) string {
	r := req.HTTP()

	var ip string
	if config.TrustProxy {
		switch config.Source {
		case IPSourceXRealIP:
			ip = r.Header.Get("X-Real-IP")
		case IPSourceCustomHeader:
			ip = r.Header.Get(config.CustomHeader)
		case IPSourceRemoteAddr:
			ip = r.RemoteAddr
		default:
			ip = firstForwardedFor(r.Header.Get("X-Forwarded-For"))
		}
	}

	// Fall back to RemoteAddr
	if ip == "" {
		ip = r.RemoteAddr
	}

	return cleanIP(strings.TrimSpace(ip))
}

// firstForwardedFor returns the leftmost entry of an X-Forwarded-For value
func firstForwardedFor(xff string) string {
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

// cleanIP removes the port and IPv6 brackets from an address
func cleanIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
}
