package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DukeRupert/arcana/internal/ai"
	"github.com/DukeRupert/arcana/internal/ai/mock"
	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/DukeRupert/arcana/internal/tarot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingArchiver struct {
	mu       sync.Mutex
	readings []*domain.Reading
	err      error
}

func (a *recordingArchiver) ArchiveReading(_ context.Context, r *domain.Reading) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.readings = append(a.readings, r)
	return a.err
}

func newReadingTestService(env *testEnv, provider ai.ReadingProvider, archiver ReadingArchiver) ReadingService {
	return NewReadingService(ReadingDeps{
		Usage:    env.usage,
		Provider: provider,
		Drawer:   tarot.NewSeededDrawer(7),
		Store:    env.store,
		Archiver: archiver,
		Clock:    env.clock.Now,
	}, discardLogger())
}

func TestCreateReading_DrawsAndInterprets(t *testing.T) {
	env := newTestEnv()
	user := env.freeUser()
	provider := mock.New(discardLogger())
	archiver := &recordingArchiver{}
	svc := newReadingTestService(env, provider, archiver)

	reading, err := svc.Create(context.Background(), user, domain.CreateReadingParams{
		Question: "Should I take the job?",
	})
	require.NoError(t, err)

	assert.Len(t, reading.Cards, tarot.DefaultSpread)
	assert.NotEmpty(t, reading.Text)
	assert.Equal(t, "en", reading.Language)
	require.NotNil(t, reading.Usage)
	assert.Equal(t, testLimits.Free-1, reading.Usage.Remaining)

	assert.Equal(t, 1, provider.InterpretCalls)
	assert.Equal(t, "Should I take the job?", provider.LastParams.Question)
	assert.Equal(t, reading.Cards, provider.LastParams.Cards)

	assert.Len(t, env.store.ai, 1)
	require.Len(t, archiver.readings, 1)
	assert.Equal(t, reading.ID, archiver.readings[0].ID)
}

func TestCreateReading_ClientCardsUsedAsIs(t *testing.T) {
	env := newTestEnv()
	provider := mock.New(discardLogger())
	svc := newReadingTestService(env, provider, nil)

	cards := []domain.Card{{Name: "The Tower", Arcana: tarot.ArcanaMajor, Reversed: true}}
	reading, err := svc.Create(context.Background(), env.freeUser(), domain.CreateReadingParams{
		Question: "What is changing?",
		Language: "fr",
		Cards:    cards,
	})
	require.NoError(t, err)

	assert.Equal(t, cards, reading.Cards)
	assert.Equal(t, "fr", provider.LastParams.Language)
}

func TestCreateReading_DailyLimit(t *testing.T) {
	env := newTestEnv()
	user := env.freeUser()
	provider := mock.New(discardLogger())
	svc := newReadingTestService(env, provider, nil)
	ctx := context.Background()

	for i := 0; i < testLimits.Free; i++ {
		_, err := svc.Create(ctx, user, domain.CreateReadingParams{Question: "again?"})
		require.NoError(t, err)
	}

	_, err := svc.Create(ctx, user, domain.CreateReadingParams{Question: "again?"})
	requireRejection(t, err, domain.ReasonDailyLimitReached)
	assert.Equal(t, testLimits.Free, provider.InterpretCalls)
}

func TestCreateReading_ProviderFailureKeepsConsumption(t *testing.T) {
	env := newTestEnv()
	user := env.freeUser()
	provider := mock.New(discardLogger())
	provider.InterpretError = ai.ErrUnavailable
	svc := newReadingTestService(env, provider, nil)

	_, err := svc.Create(context.Background(), user, domain.CreateReadingParams{Question: "Will it rain?"})
	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.True(t, errors.Is(err, ai.ErrUnavailable))

	snap, err := env.usage.Today(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.UsedToday)
	assert.Empty(t, env.store.ai)
}

func TestCreateReading_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		params domain.CreateReadingParams
		code   string
	}{
		{"missing question", domain.CreateReadingParams{Question: " "}, domain.EINVALID},
		{"bad language", domain.CreateReadingParams{Question: "q", Language: "%%"}, domain.EINVALID},
		{"spread too large", domain.CreateReadingParams{Question: "q", Spread: tarot.MaxSpread + 1}, domain.EINVALID},
		{"too many cards", domain.CreateReadingParams{Question: "q", Cards: make([]domain.Card, tarot.MaxSpread+1)}, domain.EINVALID},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			user := env.freeUser()
			provider := mock.New(discardLogger())
			svc := newReadingTestService(env, provider, nil)

			_, err := svc.Create(context.Background(), user, tc.params)
			require.Error(t, err)
			assert.Equal(t, tc.code, domain.ErrorCode(err))
			assert.Zero(t, provider.InterpretCalls)

			snap, err := env.usage.Today(context.Background(), user)
			require.NoError(t, err)
			assert.Zero(t, snap.UsedToday, "invalid input must not consume usage")
		})
	}
}

func TestCreateReading_ArchiveFailureIsNotFatal(t *testing.T) {
	env := newTestEnv()
	archiver := &recordingArchiver{err: errors.New("queue down")}
	svc := newReadingTestService(env, mock.New(discardLogger()), archiver)

	_, err := svc.Create(context.Background(), env.freeUser(), domain.CreateReadingParams{Question: "ok?"})
	require.NoError(t, err)
	assert.Len(t, archiver.readings, 1)
}
