package middleware

import (
	"log/slog"
	"net/http"
	"strings"
)

// TokenVerifier checks a presented admin token.
type TokenVerifier interface {
	Enabled() bool
	Verify(token string) bool
}

// AdminAuth returns middleware that requires "Authorization: Bearer <token>".
// When no admin token is configured every request is rejected with 503.
func AdminAuth(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !verifier.Enabled() {
				writeError(w, http.StatusServiceUnavailable, "ADMIN_DISABLED", "Admin token is not configured")
				return
			}

			token, ok := bearerToken(r)
			if !ok || !verifier.Verify(token) {
				logger.Warn("admin auth rejected",
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="tracker"`)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid admin token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
