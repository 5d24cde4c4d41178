package middleware

import (
	"net/http"
	"strings"

	"meditation/internal/auth"

	"github.com/rs/zerolog"
)

// TokenParser turns a bearer token into a session.
type TokenParser interface {
	Parse(token string) (*auth.Session, error)
}

// AuthMiddleware parses the bearer token and stores the session in the
// request context.
func AuthMiddleware(parser TokenParser, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn().Msg("Authorization header missing")
				http.Error(w, "Authorization header missing", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Warn().Msg("Invalid authorization header")
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}
			session, err := parser.Parse(parts[1])
			if err != nil {
				logger.Warn().Err(err).Msg("Invalid token")
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
		})
	}
}

// RequireAdmin rejects sessions without the admin capability. It must run
// after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.FromContext(r.Context()).IsAdmin() {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Admin chains AuthMiddleware and RequireAdmin.
func Admin(parser TokenParser, logger zerolog.Logger) func(http.Handler) http.Handler {
	authMw := AuthMiddleware(parser, logger)
	return func(next http.Handler) http.Handler {
		return authMw(RequireAdmin(next))
	}
}
