// internal/auth/middleware.go

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/kiekchat/realtime-core/internal/common/utils"
)

type contextKey int

const (
	userIDKey contextKey = iota
	usernameKey
)

// Middleware provides authentication middleware
type Middleware struct {
	service Service
}

func NewMiddleware(service Service) *Middleware {
	return &Middleware{service: service}
}

// Authenticate protects a route: it extracts the bearer access token,
// verifies it, and injects the caller's identity into the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			utils.ErrorResponse(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing or invalid authorization header")
			return
		}

		claims, err := m.service.VerifyAccessToken(token)
		if err != nil {
			utils.ErrorResponse(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		ctx = context.WithValue(ctx, usernameKey, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuthenticate injects identity into context when a valid token is
// present, but never fails the request when one isn't.
func (m *Middleware) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.service.VerifyAccessToken(token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		ctx = context.WithValue(ctx, usernameKey, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// UserIDFromContext extracts the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	return userID, ok
}

// UsernameFromContext extracts the authenticated username, if any.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey).(string)
	return username, ok
}

// VerifyWSToken verifies a token that arrived in a JSON payload rather than
// an Authorization header. The chathub's auth frame handler does not call it;
// it verifies through TokenService.VerifyAccess directly.
func (m *Middleware) VerifyWSToken(token string) (*AccessClaims, error) {
	return m.service.VerifyAccessToken(token)
}
