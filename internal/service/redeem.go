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

// RedeemStore is the persistence redemption needs. Calls made with the
// context passed to TxRunner.RunInTx share one transaction.
type RedeemStore interface {
	GetCodeForUpdate(ctx context.Context, code string) (*domain.RedemptionCode, error)
	MarkCodeUsed(ctx context.Context, code string, userID uuid.UUID, now time.Time) error
	GetUserForUpdate(ctx context.Context, id uuid.UUID) (*domain.User, error)
	SetMembershipExpiresAt(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	CreateCycle(ctx context.Context, c *domain.MembershipCycle) (*domain.MembershipCycle, error)
}

// TxRunner runs fn inside a transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RedeemService consumes redemption codes.
type RedeemService interface {
	// Redeem extends the membership by the code's duration and appends one
	// redeem cycle. Rejections carry reason not_found, used or expired.
	Redeem(ctx context.Context, user *domain.User, code string) (*domain.Redeemed, error)
}

type redeemService struct {
	store  RedeemStore
	tx     TxRunner
	now    Clock
	logger *slog.Logger
}

// NewRedeemService creates a new RedeemService.
func NewRedeemService(store RedeemStore, tx TxRunner, clock Clock, logger *slog.Logger) RedeemService {
	if clock == nil {
		clock = SystemClock
	}
	return &redeemService{
		store:  store,
		tx:     tx,
		now:    clock,
		logger: logger,
	}
}

func (s *redeemService) Redeem(ctx context.Context, user *domain.User, code string) (*domain.Redeemed, error) {
	const op = "redeem.code"

	code = domain.NormalizeCode(code)
	if code == "" {
		return nil, domain.Reject(op, domain.ReasonCodeNotFound, nil)
	}

	now := s.now()
	var result *domain.Redeemed

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		rc, err := s.store.GetCodeForUpdate(ctx, code)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.Reject(op, domain.ReasonCodeNotFound, nil)
			}
			return domain.Internal(err, op, "failed to load code")
		}
		if reason := rc.Check(now); reason != "" {
			return domain.Reject(op, reason, nil)
		}

		if err := s.store.MarkCodeUsed(ctx, rc.Code, user.ID, now); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return domain.Reject(op, domain.ReasonCodeUsed, nil)
			}
			return domain.Internal(err, op, "failed to mark code used")
		}

		locked, err := s.store.GetUserForUpdate(ctx, user.ID)
		if err != nil {
			return domain.Internal(err, op, "failed to lock user")
		}

		expiresAt := domain.ExtendMembership(locked.MembershipExpiresAt, now, rc.DurationDays)
		if err := s.store.SetMembershipExpiresAt(ctx, user.ID, expiresAt); err != nil {
			return domain.Internal(err, op, "failed to extend membership")
		}

		cycle, err := s.store.CreateCycle(ctx, domain.NewRedeemCycle(user.ID, rc.DurationDays, now, expiresAt))
		if err != nil {
			return domain.Internal(err, op, "failed to create redeem cycle")
		}

		result = &domain.Redeemed{
			MembershipExpiresAt: expiresAt,
			Plan:                domain.PlanMember,
			Cycle:               cycle,
		}
		return nil
	})
	if err != nil {
		var rej *domain.Rejection
		if errors.As(err, &rej) {
			s.logger.Info("redemption rejected", "user_id", user.ID, "reason", rej.Reason)
			return nil, err
		}
		var de *domain.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, domain.Internal(err, op, "redemption transaction failed")
	}

	metrics.CodesRedeemed.Inc()
	metrics.CyclesCreated.WithLabelValues(string(domain.CycleSourceRedeem)).Inc()
	s.logger.Info("code redeemed",
		"user_id", user.ID,
		"cycle_id", result.Cycle.ID,
		"topic_quota", result.Cycle.TopicQuota,
		"membership_expires_at", result.MembershipExpiresAt,
	)

	user.MembershipExpiresAt = &result.MembershipExpiresAt
	return result, nil
}
