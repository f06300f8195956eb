package service

import (
	"context"
	"testing"
	"time"

	"github.com/DukeRupert/arcana/internal/codes"
	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminTestService(env *testEnv) AdminService {
	return NewAdminService(env.store, []string{"Owner@Example.com"}, time.UTC, env.clock.Now, discardLogger())
}

func TestIsAdmin(t *testing.T) {
	env := newTestEnv()
	svc := newAdminTestService(env)

	assert.True(t, svc.IsAdmin(&domain.User{Email: "owner@example.com"}))
	assert.False(t, svc.IsAdmin(&domain.User{Email: "guest@example.com"}))
	assert.False(t, svc.IsAdmin(nil))
}

func TestMintCodes_RedeemableOnce(t *testing.T) {
	env := newTestEnv()
	svc := newAdminTestService(env)
	ctx := context.Background()

	minted, err := svc.MintCodes(ctx, domain.MintCodesParams{Count: 3, DurationDays: 90, CreatedBy: uuid.New()})
	require.NoError(t, err)
	require.Len(t, minted, 3)
	for _, c := range minted {
		assert.True(t, codes.WellFormed(c.Code))
		assert.Equal(t, 90, c.DurationDays)
	}

	user := env.freeUser()
	got, err := env.redeem.Redeem(ctx, user, minted[0].Code)
	require.NoError(t, err)
	assert.Equal(t, 90, got.Cycle.TopicQuota)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.CodesIssued)
	assert.Equal(t, int64(1), stats.CodesRedeemed)
	assert.Equal(t, int64(1), stats.Members)
}

func TestMintCodes_Validation(t *testing.T) {
	env := newTestEnv()
	svc := newAdminTestService(env)
	past := env.clock.Now().Add(-time.Minute)

	testCases := []struct {
		name   string
		params domain.MintCodesParams
		field  string
	}{
		{"zero count", domain.MintCodesParams{Count: 0, DurationDays: 30}, "count"},
		{"too many", domain.MintCodesParams{Count: MaxMintCount + 1, DurationDays: 30}, "count"},
		{"zero duration", domain.MintCodesParams{Count: 1, DurationDays: 0}, "duration_days"},
		{"expired already", domain.MintCodesParams{Count: 1, DurationDays: 30, ExpiresAt: &past}, "expires_at"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.MintCodes(context.Background(), tc.params)
			require.Error(t, err)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tc.field)
		})
	}
}

func TestStats_ReadingsToday(t *testing.T) {
	env := newTestEnv()
	svc := newAdminTestService(env)
	ctx := context.Background()
	user := env.freeUser()

	_, err := env.usage.Consume(ctx, user)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ReadingsToday)
	assert.Equal(t, int64(1), stats.Users)
}

// =============================================================================
// User Service Tests
// =============================================================================

func TestResolveUser(t *testing.T) {
	env := newTestEnv()
	svc := NewUserService(env.store, discardLogger())
	ctx := context.Background()

	first, err := svc.Resolve(ctx, domain.Identity{Subject: "google|123", Email: "Seer@Example.com", Name: "Seer"})
	require.NoError(t, err)
	assert.Equal(t, "seer@example.com", first.Email)

	env.clock.Advance(time.Hour)
	again, err := svc.Resolve(ctx, domain.Identity{Subject: "google|123", Email: "seer@example.com", Name: "The Seer"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "The Seer", again.Name)

	_, err = svc.Resolve(ctx, domain.Identity{Subject: " "})
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
	assert.Equal(t, domain.MsgNotAuthenticated, domain.ErrorMessage(err))
}
