package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/DukeRupert/arcana/internal/ai"
	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/DukeRupert/arcana/internal/metrics"
	"github.com/DukeRupert/arcana/internal/tarot"
	"github.com/google/uuid"
)

// ReadingStore records provider usage.
type ReadingStore interface {
	CreateAIUsage(ctx context.Context, u domain.AIUsage) error
}

// CardDrawer draws cards on the server.
type CardDrawer interface {
	Draw(n int) ([]domain.Card, error)
}

// ReadingArchiver schedules a reading for long-term storage.
type ReadingArchiver interface {
	ArchiveReading(ctx context.Context, r *domain.Reading) error
}

// ReadingService generates AI readings gated by the daily usage counter.
type ReadingService interface {
	// Create consumes one daily reading, then asks the provider for an
	// interpretation. A provider failure does not refund the reading.
	Create(ctx context.Context, user *domain.User, params domain.CreateReadingParams) (*domain.Reading, error)
}

type readingService struct {
	usage           UsageService
	provider        ai.ReadingProvider
	drawer          CardDrawer
	store           ReadingStore
	archiver        ReadingArchiver
	defaultLanguage string
	now             Clock
	logger          *slog.Logger
}

// ReadingDeps groups the collaborators of the reading service.
type ReadingDeps struct {
	Usage           UsageService
	Provider        ai.ReadingProvider
	Drawer          CardDrawer
	Store           ReadingStore
	Archiver        ReadingArchiver // Optional
	DefaultLanguage string
	Clock           Clock
}

// NewReadingService creates a new ReadingService.
func NewReadingService(deps ReadingDeps, logger *slog.Logger) ReadingService {
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	if deps.DefaultLanguage == "" {
		deps.DefaultLanguage = "en"
	}
	return &readingService{
		usage:           deps.Usage,
		provider:        deps.Provider,
		drawer:          deps.Drawer,
		store:           deps.Store,
		archiver:        deps.Archiver,
		defaultLanguage: deps.DefaultLanguage,
		now:             deps.Clock,
		logger:          logger,
	}
}

func (s *readingService) Create(ctx context.Context, user *domain.User, params domain.CreateReadingParams) (*domain.Reading, error) {
	const op = "reading.create"

	question := strings.TrimSpace(params.Question)
	if question == "" {
		return nil, domain.Invalid(op, domain.MsgMissingQuestion)
	}
	lang, ok := NormalizeLanguage(params.Language, s.defaultLanguage)
	if !ok {
		return nil, domain.Invalid(op, domain.MsgInvalidLanguage)
	}
	if len(params.Cards) > tarot.MaxSpread {
		return nil, domain.NewValidationError(op, "cards", "too many cards")
	}
	spread := params.Spread
	if spread == 0 {
		spread = tarot.DefaultSpread
	}
	if len(params.Cards) == 0 && (spread < 1 || spread > tarot.MaxSpread) {
		return nil, domain.NewValidationError(op, "spread", "must be between 1 and 10")
	}

	consumed, err := s.usage.Consume(ctx, user)
	if err != nil {
		return nil, err
	}

	cards := params.Cards
	if len(cards) == 0 {
		cards, err = s.drawer.Draw(spread)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to draw cards")
		}
	}

	result, err := s.provider.Interpret(ctx, ai.InterpretParams{
		Question: question,
		Language: lang,
		Cards:    cards,
		UserID:   user.ID,
	})
	if err != nil {
		metrics.ReadingGenerated("error", 0, 0, 0)
		return nil, domain.Unavailable(err, op, "reading provider failed")
	}
	metrics.ReadingGenerated("success", result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.CostCents)

	if err := s.store.CreateAIUsage(ctx, domain.AIUsage{
		UserID:       user.ID,
		Model:        result.Usage.Model,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		CostCents:    result.Usage.CostCents,
	}); err != nil {
		s.logger.Error("failed to track AI usage", "user_id", user.ID, "error", err)
	}

	reading := &domain.Reading{
		ID:        uuid.New(),
		UserID:    user.ID,
		Question:  question,
		Language:  lang,
		Cards:     cards,
		Text:      result.Text,
		Model:     result.Usage.Model,
		Usage:     consumed,
		CreatedAt: s.now(),
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveReading(ctx, reading); err != nil {
			s.logger.Warn("failed to enqueue reading archive", "reading_id", reading.ID, "error", err)
		}
	}

	s.logger.Info("reading generated",
		"user_id", user.ID,
		"reading_id", reading.ID,
		"cards", len(cards),
		"model", reading.Model,
		"duration", result.Usage.Duration,
	)
	return reading, nil
}
