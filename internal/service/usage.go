package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/DukeRupert/arcana/internal/metrics"
	"github.com/google/uuid"
)

// UsageStore is the persistence the daily usage counter needs.
type UsageStore interface {
	IncrementDailyUsage(ctx context.Context, userID uuid.UUID, day time.Time, limit int) (int, bool, error)
	GetDailyUsage(ctx context.Context, userID uuid.UUID, day time.Time) (int, error)
}

// UsageService gates AI readings on a per-day counter, independent of cycles.
type UsageService interface {
	// Consume takes one reading from today's allowance or returns a
	// daily_limit_reached *domain.Rejection.
	Consume(ctx context.Context, user *domain.User) (*domain.UsageConsumed, error)

	// Today reports today's counter without consuming.
	Today(ctx context.Context, user *domain.User) (*domain.UsageSnapshot, error)
}

type usageService struct {
	store    UsageStore
	limits   domain.DailyLimits
	location *time.Location
	now      Clock
	logger   *slog.Logger
}

// NewUsageService creates a new UsageService. Days roll over at midnight in loc.
func NewUsageService(store UsageStore, limits domain.DailyLimits, loc *time.Location, clock Clock, logger *slog.Logger) UsageService {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = SystemClock
	}
	return &usageService{
		store:    store,
		limits:   limits,
		location: loc,
		now:      clock,
		logger:   logger,
	}
}

func (s *usageService) Consume(ctx context.Context, user *domain.User) (*domain.UsageConsumed, error) {
	const op = "usage.consume"

	now := s.now()
	plan := user.PlanAt(now)
	limit := s.limits.For(plan)
	day := domain.UsageDay(now, s.location)

	count, ok, err := s.store.IncrementDailyUsage(ctx, user.ID, day, limit)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to increment daily usage")
	}
	if !ok {
		used, err := s.store.GetDailyUsage(ctx, user.ID, day)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to read daily usage")
		}
		s.logger.Info("daily limit reached",
			"user_id", user.ID,
			"plan", plan,
			"used", used,
			"limit", limit,
		)
		return nil, domain.RejectUsage(op, domain.NewUsageSnapshot(plan, used, limit))
	}

	metrics.ReadingsConsumed.WithLabelValues(string(plan)).Inc()
	return &domain.UsageConsumed{
		Plan:       plan,
		Remaining:  limit - count,
		DailyLimit: limit,
	}, nil
}

func (s *usageService) Today(ctx context.Context, user *domain.User) (*domain.UsageSnapshot, error) {
	const op = "usage.today"

	now := s.now()
	plan := user.PlanAt(now)
	used, err := s.store.GetDailyUsage(ctx, user.ID, domain.UsageDay(now, s.location))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read daily usage")
	}
	return domain.NewUsageSnapshot(plan, used, s.limits.For(plan)), nil
}
