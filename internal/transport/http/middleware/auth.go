package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/hive-api/internal/domain"
	jwtinfra "github.com/hive-api/internal/infrastructure/jwt"
)

type contextKey string

const ClaimsKey contextKey = "claims"

// Authenticator resolves a raw token to the claims of a live session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*jwtinfra.Claims, error)
}

// Auth returns middleware that authenticates the request token and injects
// claims into context. A rejected token clears the token cookie.
func Auth(authn Authenticator, secureCookie bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authn.Authenticate(r.Context(), TokenFromRequest(r))
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					ClearTokenCookie(w, secureCookie)
				}
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *jwtinfra.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*jwtinfra.Claims)
	return c, ok
}
