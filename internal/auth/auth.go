package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"pixwebhook/internal/logger"
)

const tokenQueryParam = "token"

// Auth guards the webhook server with a shared bearer token
type Auth struct {
	token string
}

// New creates a token checker. An empty token disables authentication.
func New(token string) *Auth {
	return &Auth{token: token}
}

// Enabled reports whether a token is required
func (a *Auth) Enabled() bool {
	return a.token != ""
}

// CheckToken verifies the presented token
func (a *Auth) CheckToken(ctx context.Context, presented string) bool {
	success := subtle.ConstantTimeCompare([]byte(presented), []byte(a.token)) == 1
	if !success {
		reason := "invalid_token"
		if presented == "" {
			reason = "no_token"
		}
		logger.FromContext(ctx).Warn("auth_failed", "reason", reason)
	}
	return success
}

// GetTokenFromRequest reads the bearer token, falling back to the token
// query parameter for mail relays that cannot set headers
func GetTokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get(tokenQueryParam)
}

// Middleware rejects requests without a valid token
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Allow health probes and unauthenticated setups
		if !a.Enabled() || r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if !a.CheckToken(r.Context(), GetTokenFromRequest(r)) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="pixwebhook"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
