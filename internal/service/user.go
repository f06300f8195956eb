// Package service contains the business logic layer.
//
// This file implements the user service. Users are not registered here;
// they are created the first time a verified identity is presented.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/DukeRupert/arcana/internal/domain"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UserStore is the persistence the user service needs.
type UserStore interface {
	UpsertUser(ctx context.Context, id domain.Identity) (*domain.User, error)
}

// UserService maps verified identities onto local users.
type UserService interface {
	// Resolve returns the local user for an identity, creating it on first sight.
	Resolve(ctx context.Context, id domain.Identity) (*domain.User, error)
}

// =============================================================================
// Implementation
// =============================================================================

type userService struct {
	store  UserStore
	logger *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(store UserStore, logger *slog.Logger) UserService {
	return &userService{
		store:  store,
		logger: logger,
	}
}

func (s *userService) Resolve(ctx context.Context, id domain.Identity) (*domain.User, error) {
	const op = "user.resolve"

	if strings.TrimSpace(id.Subject) == "" {
		return nil, domain.Unauthorized(op)
	}

	user, err := s.store.UpsertUser(ctx, id)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to upsert user")
	}
	if user.CreatedAt.Equal(user.UpdatedAt) {
		s.logger.Info("user created", "user_id", user.ID)
	}
	return user, nil
}
