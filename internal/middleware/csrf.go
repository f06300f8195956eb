package middleware

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/arcana/internal/auth"
	"github.com/DukeRupert/arcana/internal/csrf"
	"github.com/DukeRupert/arcana/internal/handler"
	"github.com/DukeRupert/arcana/internal/metrics"
)

// CSRFMiddleware rejects unsafe requests that authenticate with the
// session cookie but do not echo the CSRF token.
type CSRFMiddleware struct {
	logger   *slog.Logger
	isSecure bool
}

// NewCSRFMiddleware creates a new CSRF middleware.
func NewCSRFMiddleware(logger *slog.Logger, isSecure bool) *CSRFMiddleware {
	return &CSRFMiddleware{logger: logger, isSecure: isSecure}
}

// Handler issues the token cookie on safe requests and verifies it on
// unsafe ones. Bearer-authenticated and anonymous requests pass through.
func (m *CSRFMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if csrf.IsSafeMethod(r.Method) {
			if _, err := csrf.EnsureToken(w, r, m.isSecure); err != nil {
				m.logger.Error("csrf token generation failed", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		if !usesSessionCookie(r) || csrf.ValidateRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		m.logger.Warn("csrf validation failed",
			"method", r.Method,
			"path", idPattern.ReplaceAllString(r.URL.Path, "{id}"),
			"ip", getClientIP(r),
		)
		metrics.CSRFRejections.Inc()
		handler.MessageResponse(w, http.StatusForbidden, "csrf_token_invalid")
	})
}

// usesSessionCookie reports whether the request would authenticate via
// the cookie, which browsers attach to cross-site requests.
func usesSessionCookie(r *http.Request) bool {
	if r.Header.Get("Authorization") != "" {
		return false
	}
	c, err := r.Cookie(auth.SessionCookieName)
	return err == nil && c.Value != ""
}
