// Package service contains the business logic layer.
//
// This file implements the cycle resolver and the quota summary calculator.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/DukeRupert/arcana/internal/metrics"
	"github.com/DukeRupert/arcana/internal/repository"
	"github.com/google/uuid"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }

// =============================================================================
// Interface Definition
// =============================================================================

// PlanStore is the persistence the plan service needs.
type PlanStore interface {
	GetActiveCycle(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.MembershipCycle, error)
	CreateCycle(ctx context.Context, c *domain.MembershipCycle) (*domain.MembershipCycle, error)
	CountTopicsInCycle(ctx context.Context, userID, cycleID uuid.UUID) (int, error)
	LatestTopicID(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
}

// PlanService resolves cycles and computes quota summaries.
type PlanService interface {
	// EnsureActiveCycle returns the active cycle, inserting a default one
	// when none covers now. Concurrent first calls may both insert.
	EnsureActiveCycle(ctx context.Context, user *domain.User) (*domain.MembershipCycle, error)

	// QuotaSummary computes the user's current allowances. It is never cached.
	QuotaSummary(ctx context.Context, user *domain.User) (*domain.QuotaSummary, error)

	// PlanFor is QuotaSummary for signed-in users and the guest summary otherwise.
	PlanFor(ctx context.Context, user *domain.User) (*domain.QuotaSummary, error)
}

// =============================================================================
// Implementation
// =============================================================================

type planService struct {
	store  PlanStore
	now    Clock
	logger *slog.Logger
}

// NewPlanService creates a new PlanService. A nil store means no database
// is configured; every call then fails with domain.ErrQuotaUnavailable.
func NewPlanService(store PlanStore, clock Clock, logger *slog.Logger) PlanService {
	if clock == nil {
		clock = SystemClock
	}
	return &planService{
		store:  store,
		now:    clock,
		logger: logger,
	}
}

func (s *planService) EnsureActiveCycle(ctx context.Context, user *domain.User) (*domain.MembershipCycle, error) {
	const op = "plan.ensure_cycle"

	if s.store == nil {
		return nil, domain.ErrQuotaUnavailable
	}

	now := s.now()
	cycle, err := s.store.GetActiveCycle(ctx, user.ID, now)
	if err == nil {
		return cycle, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, domain.Internal(err, op, "failed to load active cycle")
	}

	created, err := s.store.CreateCycle(ctx, domain.DefaultCycle(user, now))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create default cycle")
	}

	metrics.CyclesCreated.WithLabelValues(string(created.Source)).Inc()
	s.logger.Info("default cycle created",
		"user_id", user.ID,
		"cycle_id", created.ID,
		"plan", created.Plan,
		"source", created.Source,
		"topic_quota", created.TopicQuota,
	)
	return created, nil
}

func (s *planService) QuotaSummary(ctx context.Context, user *domain.User) (*domain.QuotaSummary, error) {
	const op = "plan.quota_summary"

	cycle, err := s.EnsureActiveCycle(ctx, user)
	if err != nil {
		return nil, err
	}

	count, err := s.store.CountTopicsInCycle(ctx, user.ID, cycle.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count topics")
	}

	var latest *uuid.UUID
	if cycle.Plan == domain.PlanFree {
		latest, err = s.store.LatestTopicID(ctx, user.ID)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to load latest topic")
		}
	}

	return domain.NewQuotaSummary(cycle, count, latest), nil
}

func (s *planService) PlanFor(ctx context.Context, user *domain.User) (*domain.QuotaSummary, error) {
	if user == nil {
		return domain.GuestQuotaSummary(), nil
	}
	return s.QuotaSummary(ctx, user)
}
