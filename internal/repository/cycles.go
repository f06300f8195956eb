package repository

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DukeRupert/arcana/internal/domain"
)

var cycleColumns = []string{
	"id", "user_id", "plan", "starts_at", "ends_at",
	"topic_quota", "event_quota_per_topic", "source", "created_at",
}

func scanCycle(row pgx.Row) (*domain.MembershipCycle, error) {
	var (
		c      domain.MembershipCycle
		plan   string
		source string
	)
	if err := row.Scan(
		&c.ID, &c.UserID, &plan, &c.StartsAt, &c.EndsAt,
		&c.TopicQuota, &c.EventQuotaPerTopic, &source, &c.CreatedAt,
	); err != nil {
		return nil, err
	}
	c.Plan = domain.Plan(plan)
	c.Source = domain.CycleSource(source)
	return &c, nil
}

// GetActiveCycle returns the most recently started cycle whose window
// contains now, or ErrNotFound.
func (q *Queries) GetActiveCycle(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.MembershipCycle, error) {
	b := psql.Select(cycleColumns...).
		From("membership_cycles").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.LtOrEq{"starts_at": now}).
		Where(sq.Gt{"ends_at": now}).
		OrderBy("starts_at DESC", "created_at DESC").
		Limit(1)

	row, err := q.queryRow(ctx, b)
	if err != nil {
		return nil, err
	}
	c, err := scanCycle(row)
	if err != nil {
		return nil, mapError(err, "get active cycle")
	}
	return c, nil
}

// CreateCycle appends a cycle row and returns it with its generated id.
func (q *Queries) CreateCycle(ctx context.Context, c *domain.MembershipCycle) (*domain.MembershipCycle, error) {
	b := psql.Insert("membership_cycles").
		Columns("user_id", "plan", "starts_at", "ends_at", "topic_quota", "event_quota_per_topic", "source").
		Values(c.UserID, string(c.Plan), c.StartsAt, c.EndsAt, c.TopicQuota, c.EventQuotaPerTopic, string(c.Source)).
		Suffix("RETURNING " + strings.Join(cycleColumns, ", "))

	row, err := q.queryRow(ctx, b)
	if err != nil {
		return nil, err
	}
	created, err := scanCycle(row)
	if err != nil {
		return nil, mapError(err, "create cycle")
	}
	return created, nil
}

// CountCycles returns how many cycles a user has, used by tests and stats.
func (q *Queries) CountCycles(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := q.count(ctx, psql.Select("COUNT(*)").From("membership_cycles").Where(sq.Eq{"user_id": userID}))
	if err != nil {
		return 0, mapError(err, "count cycles")
	}
	return n, nil
}
