package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/DukeRupert/arcana/internal/domain"
)

// CreateAIUsage records one provider call.
func (q *Queries) CreateAIUsage(ctx context.Context, u domain.AIUsage) error {
	_, err := q.exec(ctx, psql.Insert("ai_usage").
		Columns("user_id", "model", "input_tokens", "output_tokens", "cost_cents").
		Values(u.UserID, u.Model, u.InputTokens, u.OutputTokens, u.CostCents))
	return mapError(err, "create ai usage")
}

// GetStats gathers the admin counters. day is today's usage date.
func (q *Queries) GetStats(ctx context.Context, now, day time.Time) (*domain.Stats, error) {
	var (
		s   domain.Stats
		err error
	)
	counts := []struct {
		dst *int64
		b   sq.SelectBuilder
	}{
		{&s.Users, psql.Select("COUNT(*)").From("users")},
		{&s.Members, psql.Select("COUNT(*)").From("users").Where(sq.Gt{"membership_expires_at": now})},
		{&s.Topics, psql.Select("COUNT(*)").From("topics")},
		{&s.Events, psql.Select("COUNT(*)").From("topic_events")},
		{&s.CodesIssued, psql.Select("COUNT(*)").From("redemption_codes")},
		{&s.CodesRedeemed, psql.Select("COUNT(*)").From("redemption_codes").Where(sq.NotEq{"used_at": nil})},
		{&s.ReadingsToday, psql.Select("COALESCE(SUM(count), 0)").From("daily_usage").Where(sq.Eq{"usage_date": day})},
	}
	for _, c := range counts {
		if *c.dst, err = q.count(ctx, c.b); err != nil {
			return nil, mapError(err, "get stats")
		}
	}
	return &s, nil
}
