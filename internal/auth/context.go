// Package auth verifies identity tokens and carries the resolved user
// through request contexts. Both middleware and handler import it.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/google/uuid"
)

type userKey struct{}

// SetUser returns a context carrying user.
func SetUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// GetUser returns the signed-in user, or nil for anonymous requests.
func GetUser(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userKey{}).(*domain.User)
	return user
}

// GetUserFromRequest is GetUser on r's context.
func GetUserFromRequest(r *http.Request) *domain.User {
	return GetUser(r.Context())
}

// UserID returns the signed-in user's id and whether there is one.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	if user := GetUser(ctx); user != nil {
		return user.ID, true
	}
	return uuid.Nil, false
}
