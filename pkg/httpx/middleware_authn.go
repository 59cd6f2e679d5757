package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/clubdeck/clubdeck/pkg/slogx"
)

// TokenValidator checks an opaque bearer session token and resolves it to its
// owning user and session. Implemented by the session service.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (userID, sessionID string, err error)
}

// AuthnMiddleware extracts the opaque bearer token from the Authorization
// header and validates it. On success the user and session ids are injected
// into the request context for downstream handlers.
func AuthnMiddleware(v TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			userID, sessionID, err := v.ValidateToken(ctx, raw)
			if err != nil {
				writeBearerError(w, "session validation failed")
				log.Warn("session validation failed", "err", err)
				return
			}

			ctx = context.WithValue(ctx, CtxKeyUserID, userID)
			ctx = context.WithValue(ctx, CtxKeySessionID, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
