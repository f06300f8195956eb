package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Cycle Resolver Tests
// =============================================================================

func TestEnsureActiveCycle_CreatesFreeDefault(t *testing.T) {
	env := newTestEnv()
	user := env.freeUser()

	cycle, err := env.plans.EnsureActiveCycle(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, domain.PlanFree, cycle.Plan)
	assert.Equal(t, domain.CycleSourceFreeDefault, cycle.Source)
	assert.Equal(t, 1, cycle.TopicQuota)
	assert.Equal(t, 3, cycle.EventQuotaPerTopic)
	assert.Equal(t, env.clock.Now(), cycle.StartsAt)
	assert.Equal(t, env.clock.Now().AddDate(0, 0, 365), cycle.EndsAt)
}

func TestEnsureActiveCycle_ReusesActiveCycle(t *testing.T) {
	env := newTestEnv()
	user := env.freeUser()
	ctx := context.Background()

	first, err := env.plans.EnsureActiveCycle(ctx, user)
	require.NoError(t, err)

	env.clock.Advance(48 * time.Hour)
	second, err := env.plans.EnsureActiveCycle(ctx, user)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, env.store.cycleCount(user.ID))
}

func TestEnsureActiveCycle_MemberDefault(t *testing.T) {
	testCases := []struct {
		name      string
		remaining time.Duration
		wantQuota int
	}{
		{"ten days left rounds up to one month", 10 * 24 * time.Hour, 30},
		{"exactly thirty days", 30 * 24 * time.Hour, 30},
		{"thirty one days spills into a second month", 31 * 24 * time.Hour, 60},
		{"ninety days", 90 * 24 * time.Hour, 90},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			user := env.memberUser(tc.remaining)

			cycle, err := env.plans.EnsureActiveCycle(context.Background(), user)
			require.NoError(t, err)

			assert.Equal(t, domain.PlanMember, cycle.Plan)
			assert.Equal(t, domain.CycleSourceMembership, cycle.Source)
			assert.Equal(t, tc.wantQuota, cycle.TopicQuota)
			assert.Equal(t, 500, cycle.EventQuotaPerTopic)
			assert.Equal(t, *user.MembershipExpiresAt, cycle.EndsAt)
		})
	}
}

func TestEnsureActiveCycle_ExpiredCycleReplaced(t *testing.T) {
	env := newTestEnv()
	user := env.memberUser(10 * 24 * time.Hour)
	ctx := context.Background()

	member, err := env.plans.EnsureActiveCycle(ctx, user)
	require.NoError(t, err)
	require.Equal(t, domain.PlanMember, member.Plan)

	// Membership lapses together with its cycle
	env.clock.Advance(11 * 24 * time.Hour)
	free, err := env.plans.EnsureActiveCycle(ctx, user)
	require.NoError(t, err)

	assert.NotEqual(t, member.ID, free.ID)
	assert.Equal(t, domain.PlanFree, free.Plan)
	assert.Equal(t, 2, env.store.cycleCount(user.ID))
}

func TestEnsureActiveCycle_NoStore(t *testing.T) {
	plans := NewPlanService(nil, nil, discardLogger())

	_, err := plans.EnsureActiveCycle(context.Background(), &domain.User{})
	assert.ErrorIs(t, err, domain.ErrQuotaUnavailable)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}

// Two first-time calls that both miss the lookup each insert a default
// cycle. The newest one wins subsequent lookups, so quotas stay correct.
func TestEnsureActiveCycle_ConcurrentFirstCallsMayDuplicate(t *testing.T) {
	env := newTestEnv()
	user := env.freeUser()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.store.CreateCycle(ctx, domain.DefaultCycle(user, env.clock.Now()))
		require.NoError(t, err)
	}

	summary, err := env.plans.QuotaSummary(ctx, user)
	require.NoError(t, err)

	assert.Equal(t, 2, env.store.cycleCount(user.ID))
	assert.Equal(t, 1, summary.TopicQuotaTotal)
	assert.Equal(t, 1, summary.TopicQuotaRemaining)
}

// =============================================================================
// Quota Summary Tests
// =============================================================================

func TestQuotaSummary_PlanFollowsMembership(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	free, err := env.plans.QuotaSummary(ctx, env.freeUser())
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, free.Plan)

	member, err := env.plans.QuotaSummary(ctx, env.memberUser(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.PlanMember, member.Plan)
}

func TestQuotaSummary_FreshFreeUser(t *testing.T) {
	env := newTestEnv()

	summary, err := env.plans.QuotaSummary(context.Background(), env.freeUser())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TopicQuotaTotal)
	assert.Equal(t, 1, summary.TopicQuotaRemaining)
	assert.Equal(t, 3, summary.EventQuotaPerTopic)
	assert.Nil(t, summary.DowngradeLimitedTopicID)
	require.NotNil(t, summary.ExpiresAt)
	assert.Equal(t, summary.Cycle.EndsAt, *summary.ExpiresAt)
}

func TestQuotaSummary_MemberHasNoDowngradeLock(t *testing.T) {
	env := newTestEnv()
	user := env.memberUser(30 * 24 * time.Hour)
	ctx := context.Background()

	_, err := env.topics.Create(ctx, user, domain.CreateTopicParams{Title: "Career"})
	require.NoError(t, err)

	summary, err := env.plans.QuotaSummary(ctx, user)
	require.NoError(t, err)

	assert.Equal(t, 500, summary.EventQuotaPerTopic)
	assert.Equal(t, 29, summary.TopicQuotaRemaining)
	assert.Nil(t, summary.DowngradeLimitedTopicID)
}

func TestPlanFor_Guest(t *testing.T) {
	env := newTestEnv()

	summary, err := env.plans.PlanFor(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.PlanGuest, summary.Plan)
	assert.Zero(t, summary.TopicQuotaTotal)
	assert.Zero(t, env.store.cycleCount(uuid.Nil))
}

func TestQuotaSummary_StoreFailure(t *testing.T) {
	env := newTestEnv()
	env.store.failCountTopicsAfter = 0

	_, err := env.plans.QuotaSummary(context.Background(), env.freeUser())
	require.Error(t, err)

	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.EINTERNAL, de.Code)
}
