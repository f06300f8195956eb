package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/arcana/internal/handler"
)

// MetricsAuthMiddleware guards the Prometheus endpoint with basic auth.
type MetricsAuthMiddleware struct {
	username  string
	password  string
	enabled   bool
	allowOpen bool
	logger    *slog.Logger
}

// NewMetricsAuthMiddleware creates a new metrics auth middleware.
// With no credentials configured the endpoint is open when allowOpen is
// set (development) and hidden behind a 404 otherwise.
func NewMetricsAuthMiddleware(username, password string, allowOpen bool, logger *slog.Logger) *MetricsAuthMiddleware {
	return &MetricsAuthMiddleware{
		username:  username,
		password:  password,
		enabled:   username != "" || password != "",
		allowOpen: allowOpen,
		logger:    logger,
	}
}

// Handler returns middleware that requires basic authentication.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			if m.allowOpen {
				next.ServeHTTP(w, r)
				return
			}
			handler.NotFoundResponse(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			m.unauthorized(w, r)
			return
		}

		// Use constant-time comparison to prevent timing attacks
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(m.username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(m.password)) == 1

		if !userMatch || !passMatch {
			m.logger.Warn("metrics auth failed", "ip", getClientIP(r))
			m.unauthorized(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// unauthorized sends a 401 response with WWW-Authenticate header.
func (m *MetricsAuthMiddleware) unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
	handler.UnauthorizedResponse(w, r)
}
