package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/DukeRupert/arcana/internal/auth"
)

var idPattern = regexp.MustCompile(`[0-9a-fA-F]{8}(-[0-9a-fA-F]{4}){3}-[0-9a-fA-F]{12}`)

// quietPrefixes are polled by infrastructure and would drown the log.
var quietPrefixes = []string{"/health", "/metrics"}

// redactedParams never reach the log. "code" covers redemption codes.
var redactedParams = map[string]bool{
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"code":          true,
	"key":           true,
	"api_key":       true,
	"apikey":        true,
	"secret":        true,
	"password":      true,
}

// RequestLoggingMiddleware writes one line per request.
type RequestLoggingMiddleware struct {
	logger *slog.Logger
}

func NewRequestLoggingMiddleware(logger *slog.Logger) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{logger: logger}
}

// Handler logs after the request completes. Mount it inside WithUser so
// the caller's id is on the context.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isQuiet(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		began := time.Now()
		rec := &loggedResponse{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"method", r.Method,
			"path", loggablePath(r.URL),
			"status", rec.status,
			"duration_ms", time.Since(began).Milliseconds(),
			"ip", getClientIP(r),
			"user_agent", r.UserAgent(),
		}
		if id, ok := auth.UserID(r.Context()); ok {
			attrs = append(attrs, "user_id", id)
		}

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		m.logger.Log(r.Context(), level, "request", attrs...)
	})
}

func isQuiet(path string) bool {
	for _, p := range quietPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

type loggedResponse struct {
	http.ResponseWriter
	status int
}

func (lr *loggedResponse) WriteHeader(code int) {
	lr.status = code
	lr.ResponseWriter.WriteHeader(code)
}

func (lr *loggedResponse) Unwrap() http.ResponseWriter {
	return lr.ResponseWriter
}

// loggablePath collapses ids in the path and blanks sensitive query values.
func loggablePath(u *url.URL) string {
	path := idPattern.ReplaceAllString(u.Path, "{id}")
	if u.RawQuery == "" {
		return path
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return path
	}
	for name := range query {
		if redactedParams[strings.ToLower(name)] {
			query[name] = []string{"REDACTED"}
		}
	}
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
