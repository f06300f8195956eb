// Package middleware holds the http.Handler wrappers mounted around the
// API mux: identity, CSRF, rate limits, headers, logging.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/arcana/internal/auth"
	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/DukeRupert/arcana/internal/handler"
	"github.com/DukeRupert/arcana/internal/service"
)

// SessionCookiePath ensures the cookie is sent with all requests.
const SessionCookiePath = "/"

// TokenVerifier checks an identity token. *auth.Verifier implements it.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// AdminChecker decides who may call the operator endpoints.
type AdminChecker interface {
	IsAdmin(user *domain.User) bool
}

// AuthMiddleware resolves the caller once per request (WithUser) and
// exposes route gates (RequireUser, RequireAdmin).
type AuthMiddleware struct {
	verifier    TokenVerifier
	userService service.UserService
	admins      AdminChecker
	logger      *slog.Logger
	isSecure    bool // Whether to set Secure flag on cookies (true in production)
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(
	verifier TokenVerifier,
	userService service.UserService,
	admins AdminChecker,
	logger *slog.Logger,
	isSecure bool,
) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:    verifier,
		userService: userService,
		admins:      admins,
		logger:      logger,
		isSecure:    isSecure,
	}
}

// =============================================================================
// WithUser Middleware
// =============================================================================

// WithUser loads the caller from a bearer token or the session cookie and
// stores it in the request context. It always calls next; routes that
// need a user add RequireUser.
//
// An invalid token makes the request anonymous and clears the cookie. A
// valid token whose user cannot be loaded is a server error.
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := m.verifier.Verify(token)
		if err != nil {
			m.logger.Debug("identity token rejected", "error", err)
			if _, cerr := r.Cookie(auth.SessionCookieName); cerr == nil {
				clearSessionCookie(w, m.isSecure)
			}
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.userService.Resolve(r.Context(), identity)
		if err != nil {
			handler.ErrorResponse(w, r, m.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), user)))
	})
}

// =============================================================================
// RequireUser Middleware
// =============================================================================

// RequireUser rejects anonymous requests with 401 not_authenticated.
// Must run after WithUser.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			handler.UnauthorizedResponse(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// RequireAdmin Middleware
// =============================================================================

// RequireAdmin rejects callers that are not on the admin allowlist.
// Anonymous callers get 401, signed-in non-admins 403.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.GetUser(r.Context())
		if user == nil {
			handler.UnauthorizedResponse(w, r)
			return
		}
		if !m.admins.IsAdmin(user) {
			m.logger.Warn("admin access denied", "user_id", user.ID, "path", r.URL.Path)
			handler.ForbiddenResponse(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Cookie Helpers
// =============================================================================

// clearSessionCookie removes the session cookie from the client.
func clearSessionCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     SessionCookiePath,
		MaxAge:   -1, // Delete immediately
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(authMw.WithUser, authMw.RequireUser)
//	mux.Handle("GET /api/topics", stack(listHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Ensure middleware functions have correct signature
var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).WithUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireAdmin
)
