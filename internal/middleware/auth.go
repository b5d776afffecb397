// Package middleware provides the HTTP middleware stack: bearer-token
// authentication, role gates, request IDs, and per-client rate limiting.
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mvl-at/openkeg/internal/auth"
	"github.com/mvl-at/openkeg/internal/domain"
)

type memberKey struct{}

// WithMember stores the authenticated member in the context.
func WithMember(ctx context.Context, m domain.Member) context.Context {
	return context.WithValue(ctx, memberKey{}, m)
}

// MemberFromContext extracts the authenticated member from the context.
func MemberFromContext(ctx context.Context) (domain.Member, bool) {
	m, ok := ctx.Value(memberKey{}).(domain.Member)
	return m, ok
}

// Authenticator resolves an Authorization bearer token to a cached member
// and stores it in the request context. Requests without an Authorization
// header pass through anonymously; the per-route gates decide whether that
// is acceptable. A presented but unusable token is rejected with an opaque
// 401 so callers cannot probe why their token failed.
func Authenticator(validator *auth.Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			claims, err := validator.Decode(token)
			if err != nil {
				logger.Debug("rejecting bearer token", "error", err)
				WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			member, err := validator.Resolve(claims, auth.AccessToken)
			if err != nil {
				logger.Debug("rejecting bearer token", "error", err)
				WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithMember(r.Context(), member)))
		})
	}
}

// RequireMember rejects requests that did not authenticate.
func RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := MemberFromContext(r.Context()); !ok {
			WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests whose member does not hold the given role.
// Unauthenticated requests get 401, authenticated ones without the role 403.
func RequireRole(authorizer *auth.Authorizer, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			member, ok := MemberFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !authorizer.HasRole(member, role) {
				WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes the uniform JSON error body used across the API.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    status,
		"message": message,
	})
}
