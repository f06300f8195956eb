package repository

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// IncrementDailyUsage atomically adds one reading to the (user, day) counter
// as long as the counter is below limit. It returns the new count and
// whether the increment happened. Concurrent callers never lose updates and
// never push the counter past limit.
func (q *Queries) IncrementDailyUsage(ctx context.Context, userID uuid.UUID, day time.Time, limit int) (int, bool, error) {
	if limit <= 0 {
		return 0, false, nil
	}

	b := psql.Insert("daily_usage").
		Columns("user_id", "usage_date", "count").
		Values(userID, day, 1).
		Suffix("ON CONFLICT (user_id, usage_date) DO UPDATE "+
			"SET count = daily_usage.count + 1, updated_at = now() "+
			"WHERE daily_usage.count < ? RETURNING count", limit)

	row, err := q.queryRow(ctx, b)
	if err != nil {
		return 0, false, err
	}
	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, mapError(err, "increment daily usage")
	}
	return count, true, nil
}

// GetDailyUsage returns the (user, day) counter, zero when no row exists.
func (q *Queries) GetDailyUsage(ctx context.Context, userID uuid.UUID, day time.Time) (int, error) {
	row, err := q.queryRow(ctx, psql.Select("count").From("daily_usage").
		Where(sq.Eq{"user_id": userID, "usage_date": day}))
	if err != nil {
		return 0, err
	}
	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, mapError(err, "get daily usage")
	}
	return count, nil
}
