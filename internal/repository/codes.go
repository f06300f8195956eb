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

var codeColumns = []string{
	"code", "duration_days", "expires_at", "used_at", "used_by", "created_by", "created_at",
}

func scanCode(row pgx.Row) (*domain.RedemptionCode, error) {
	var c domain.RedemptionCode
	if err := row.Scan(&c.Code, &c.DurationDays, &c.ExpiresAt, &c.UsedAt, &c.UsedBy, &c.CreatedBy, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCodeForUpdate locks a code row for the rest of the transaction.
func (q *Queries) GetCodeForUpdate(ctx context.Context, code string) (*domain.RedemptionCode, error) {
	row, err := q.queryRow(ctx, psql.Select(codeColumns...).From("redemption_codes").
		Where(sq.Eq{"code": code}).
		Suffix("FOR UPDATE"))
	if err != nil {
		return nil, err
	}
	c, err := scanCode(row)
	if err != nil {
		return nil, mapError(err, "get code")
	}
	return c, nil
}

// MarkCodeUsed consumes a code. It only succeeds on unused codes and
// returns ErrConflict when the code was consumed concurrently.
func (q *Queries) MarkCodeUsed(ctx context.Context, code string, userID uuid.UUID, now time.Time) error {
	tag, err := q.exec(ctx, psql.Update("redemption_codes").
		Set("used_at", now).
		Set("used_by", userID).
		Where(sq.Eq{"code": code, "used_at": nil}))
	if err != nil {
		return mapError(err, "mark code used")
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// CreateCodes inserts freshly minted codes in one statement.
func (q *Queries) CreateCodes(ctx context.Context, codes []domain.RedemptionCode) ([]domain.RedemptionCode, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	b := psql.Insert("redemption_codes").
		Columns("code", "duration_days", "expires_at", "created_by").
		Suffix("RETURNING " + strings.Join(codeColumns, ", "))
	for _, c := range codes {
		b = b.Values(c.Code, c.DurationDays, c.ExpiresAt, c.CreatedBy)
	}

	rows, err := q.query(ctx, b)
	if err != nil {
		return nil, mapError(err, "create codes")
	}
	defer rows.Close()

	out := make([]domain.RedemptionCode, 0, len(codes))
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, mapError(err, "scan code")
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "create codes")
	}
	return out, nil
}
