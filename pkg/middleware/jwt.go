package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Suhaibinator/monty/pkg/app"
	jwt "github.com/golang-jwt/jwt/v5"
)

type jwtClaimsKey struct{}

// WithJWTClaims stores JWT claims into a context.
func WithJWTClaims(ctx context.Context, claims jwt.MapClaims) context.Context {
	return context.WithValue(ctx, jwtClaimsKey{}, claims)
}

// JWTClaims retrieves JWT claims from context if present.
func JWTClaims(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(jwtClaimsKey{}).(jwt.MapClaims)
	return claims, ok
}

// JWTConfig configures the JWT handler.
// Keyfunc resolves the verification key and is required.
type JWTConfig struct {
	Keyfunc  jwt.Keyfunc
	Issuer   string        // Required "iss" when set
	Audience string        // Required "aud" when set
	Skew     time.Duration // Clock leeway, 30s when zero
	Optional bool          // Let requests without an Authorization header through
}

// JWTAuth returns a handler that validates Bearer tokens and stores their
// claims in the request context. A missing or invalid token stops the chain
// with a 401 *app.HTTPError carrying a WWW-Authenticate header.
// CORS preflight requests carry no credentials and pass unchecked.
func JWTAuth(cfg JWTConfig) app.Handler {
	if cfg.Skew == 0 {
		cfg.Skew = 30 * time.Second
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512", "RS256", "RS384", "RS512", "ES256", "EdDSA"}),
		jwt.WithLeeway(cfg.Skew),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)

	return app.HandlerFunc(func(req *app.Request, _ *app.Response, _ ...string) (any, error) {
		if isPreflight(req) {
			return req.PreviousReturn(), nil
		}

		authz := req.HTTP().Header.Get("Authorization")
		if authz == "" {
			if cfg.Optional {
				return req.PreviousReturn(), nil
			}
			return nil, unauthorized("missing Authorization header")
		}

		scheme, token, ok := strings.Cut(authz, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return nil, unauthorized("invalid Authorization scheme")
		}

		tok, err := parser.ParseWithClaims(token, jwt.MapClaims{}, cfg.Keyfunc)
		if err != nil {
			return nil, unauthorized(fmt.Sprintf("token parse/verify failed: %v", err))
		}
		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok || !tok.Valid {
			return nil, unauthorized("invalid token claims")
		}

		req.SetContext(WithJWTClaims(req.Context(), claims))
		return req.PreviousReturn(), nil
	})
}

func unauthorized(desc string) *app.HTTPError {
	err := app.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	err.Header = http.Header{}
	err.Header.Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+escapeAuthParam(desc)+`"`)
	return err
}

// escapeAuthParam makes s safe to embed in a quoted WWW-Authenticate parameter
func escapeAuthParam(s string) string {
	return strings.NewReplacer("\r", "", "\n", "", `\`, `\\`, `"`, `\"`).Replace(s)
}
