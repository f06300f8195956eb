package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/arcana/internal/codes"
	"github.com/DukeRupert/arcana/internal/domain"
)

// Admin input bounds.
const (
	MaxMintCount        = 100
	MaxMintDurationDays = 3650
)

// AdminStore is the persistence the admin service needs.
type AdminStore interface {
	CreateCodes(ctx context.Context, codes []domain.RedemptionCode) ([]domain.RedemptionCode, error)
	GetStats(ctx context.Context, now, day time.Time) (*domain.Stats, error)
}

// AdminService backs the operator endpoints.
type AdminService interface {
	// IsAdmin reports whether the user's email is on the admin allowlist.
	IsAdmin(user *domain.User) bool

	// MintCodes generates and stores new redemption codes.
	MintCodes(ctx context.Context, params domain.MintCodesParams) ([]domain.RedemptionCode, error)

	// Stats returns headline counters.
	Stats(ctx context.Context) (*domain.Stats, error)
}

type adminService struct {
	store    AdminStore
	admins   *codes.Allowlist
	location *time.Location
	now      Clock
	logger   *slog.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(store AdminStore, adminEmails []string, loc *time.Location, clock Clock, logger *slog.Logger) AdminService {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = SystemClock
	}
	return &adminService{
		store:    store,
		admins:   codes.NewAllowlist(adminEmails, domain.NormalizeEmail),
		location: loc,
		now:      clock,
		logger:   logger,
	}
}

func (s *adminService) IsAdmin(user *domain.User) bool {
	return user != nil && s.admins.Contains(user.Email)
}

func (s *adminService) MintCodes(ctx context.Context, params domain.MintCodesParams) ([]domain.RedemptionCode, error) {
	const op = "admin.mint_codes"

	if params.Count < 1 || params.Count > MaxMintCount {
		return nil, domain.NewValidationError(op, "count", "must be between 1 and 100")
	}
	if params.DurationDays < 1 || params.DurationDays > MaxMintDurationDays {
		return nil, domain.NewValidationError(op, "duration_days", "must be between 1 and 3650")
	}
	if params.ExpiresAt != nil && !params.ExpiresAt.After(s.now()) {
		return nil, domain.NewValidationError(op, "expires_at", "must be in the future")
	}

	generated, err := codes.Generate(params.Count)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to generate codes")
	}

	createdBy := params.CreatedBy
	rows := make([]domain.RedemptionCode, 0, len(generated))
	for _, c := range generated {
		rows = append(rows, domain.RedemptionCode{
			Code:         c,
			DurationDays: params.DurationDays,
			ExpiresAt:    params.ExpiresAt,
			CreatedBy:    &createdBy,
		})
	}

	created, err := s.store.CreateCodes(ctx, rows)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to store codes")
	}

	s.logger.Info("redemption codes minted",
		"admin_id", params.CreatedBy,
		"count", len(created),
		"duration_days", params.DurationDays,
	)
	return created, nil
}

func (s *adminService) Stats(ctx context.Context) (*domain.Stats, error) {
	const op = "admin.stats"

	now := s.now()
	stats, err := s.store.GetStats(ctx, now, domain.UsageDay(now, s.location))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load stats")
	}
	return stats, nil
}
