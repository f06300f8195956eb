package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DukeRupert/arcana/internal/domain"
)

var userColumns = []string{
	"id", "external_id", "email", "name", "avatar_url",
	"membership_expires_at", "created_at", "updated_at",
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID, &u.ExternalID, &u.Email, &u.Name, &u.AvatarURL,
		&u.MembershipExpiresAt, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertUser creates the user on first sight of an identity and refreshes
// the profile fields when they changed. An unchanged profile is read back
// without writing the row.
func (q *Queries) UpsertUser(ctx context.Context, id domain.Identity) (*domain.User, error) {
	b := psql.Insert("users").
		Columns("external_id", "email", "name", "avatar_url").
		Values(id.Subject, domain.NormalizeEmail(id.Email), id.Name, id.AvatarURL).
		Suffix("ON CONFLICT (external_id) DO UPDATE SET " +
			"email = EXCLUDED.email, name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url, updated_at = now() " +
			"WHERE users.email IS DISTINCT FROM EXCLUDED.email " +
			"OR users.name IS DISTINCT FROM EXCLUDED.name " +
			"OR users.avatar_url IS DISTINCT FROM EXCLUDED.avatar_url " +
			"RETURNING " + strings.Join(userColumns, ", "))

	row, err := q.queryRow(ctx, b)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return q.GetUserByExternalID(ctx, id.Subject)
	}
	if err != nil {
		return nil, mapError(err, "upsert user")
	}
	return u, nil
}

// GetUserByExternalID loads a user by the identity provider's subject.
func (q *Queries) GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	row, err := q.queryRow(ctx, psql.Select(userColumns...).From("users").Where(sq.Eq{"external_id": externalID}))
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if err != nil {
		return nil, mapError(err, "get user by external id")
	}
	return u, nil
}

// GetUser loads a user by id.
func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row, err := q.queryRow(ctx, psql.Select(userColumns...).From("users").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if err != nil {
		return nil, mapError(err, "get user")
	}
	return u, nil
}

// GetUserForUpdate locks the user row for the rest of the transaction.
func (q *Queries) GetUserForUpdate(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	b := psql.Select(userColumns...).From("users").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE")
	row, err := q.queryRow(ctx, b)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if err != nil {
		return nil, mapError(err, "lock user")
	}
	return u, nil
}

// SetMembershipExpiresAt stores a new membership expiry.
func (q *Queries) SetMembershipExpiresAt(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	tag, err := q.exec(ctx, psql.Update("users").
		Set("membership_expires_at", expiresAt).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return mapError(err, "set membership expiry")
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgx.ErrNoRows, "set membership expiry")
	}
	return nil
}
