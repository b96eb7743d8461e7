package api

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"latchdb/logger"
)

// AuthMiddleware guards the introspection endpoints with a single admin
// bearer token. Only the bcrypt hash of the token is ever configured; an
// empty hash disables authentication, which is acceptable for development
// only.
type AuthMiddleware struct {
	tokenHash string
}

// NewAuthMiddleware creates the middleware from the configured hash
func NewAuthMiddleware(tokenHash string) *AuthMiddleware {
	if tokenHash == "" {
		logger.Warn("admin token hash not configured; introspection endpoints are unauthenticated")
	}
	return &AuthMiddleware{tokenHash: tokenHash}
}

// RequireAdmin wraps a handler with bearer-token authentication
func (m *AuthMiddleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.tokenHash == "" {
			next(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			RespondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(m.tokenHash), []byte(token)); err != nil {
			logger.Warn("rejected introspection request from %s: bad token", r.RemoteAddr)
			RespondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next(w, r)
	}
}
