// ABOUTME: HTTP middleware for optional JWT authentication
// ABOUTME: Accepts a bearer header or a token query parameter for websocket upgrades

package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey struct{}

// WithSubject stores the authenticated subject on a context.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, contextKey{}, subject)
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(contextKey{}).(string)
	return subject, ok
}

// extractToken pulls a token from the Authorization header, falling back
// to the "token" query parameter. Browsers cannot set headers on
// websocket upgrade requests, so the query form exists for those.
func extractToken(r *http.Request) (string, string) {
	header := r.Header.Get("Authorization")
	if header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return "", "invalid authorization header format"
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" {
			return "", "empty token"
		}
		return token, ""
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, ""
	}

	return "", "missing credentials"
}

// Middleware validates a JWT on every request and stores its subject on
// the request context. Passing a nil verifier disables authentication
// entirely, which is the default deployment mode.
func Middleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractToken(r)
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			subject, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}
