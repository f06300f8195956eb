package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sqlc-dev/pqtype"

	"github.com/DukeRupert/arcana/internal/domain"
)

var topicColumns = []string{
	"id", "user_id", "cycle_id", "title", "language", "baseline_cards",
	"baseline_reading", "status", "created_at", "updated_at",
}

func toNullRaw(m json.RawMessage) pqtype.NullRawMessage {
	return pqtype.NullRawMessage{RawMessage: m, Valid: len(m) > 0}
}

func fromNullRaw(n pqtype.NullRawMessage) json.RawMessage {
	if !n.Valid {
		return nil
	}
	return n.RawMessage
}

func scanTopic(row pgx.Row, extra ...any) (*domain.Topic, error) {
	var (
		t      domain.Topic
		cards  pqtype.NullRawMessage
		status string
	)
	dest := []any{
		&t.ID, &t.UserID, &t.CycleID, &t.Title, &t.Language, &cards,
		&t.BaselineReading, &status, &t.CreatedAt, &t.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	t.BaselineCards = fromNullRaw(cards)
	t.Status = domain.TopicStatus(status)
	return &t, nil
}

// CountTopicsInCycle counts the topics a user created in one cycle.
func (q *Queries) CountTopicsInCycle(ctx context.Context, userID, cycleID uuid.UUID) (int, error) {
	n, err := q.count(ctx, psql.Select("COUNT(*)").From("topics").
		Where(sq.Eq{"user_id": userID, "cycle_id": cycleID}))
	if err != nil {
		return 0, mapError(err, "count topics")
	}
	return int(n), nil
}

// LatestTopicID returns the user's most recently created topic across all
// cycles, or nil when the user has none.
func (q *Queries) LatestTopicID(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	row, err := q.queryRow(ctx, psql.Select("id").From("topics").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1))
	if err != nil {
		return nil, err
	}
	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err, "latest topic")
	}
	return &id, nil
}

// CreateTopicParams is the row written by CreateTopic.
type CreateTopicParams struct {
	UserID          uuid.UUID
	CycleID         *uuid.UUID
	Title           string
	Language        string
	BaselineCards   json.RawMessage
	BaselineReading string
}

// CreateTopic inserts an active topic.
func (q *Queries) CreateTopic(ctx context.Context, arg CreateTopicParams) (*domain.Topic, error) {
	b := psql.Insert("topics").
		Columns("user_id", "cycle_id", "title", "language", "baseline_cards", "baseline_reading", "status").
		Values(arg.UserID, arg.CycleID, arg.Title, arg.Language, toNullRaw(arg.BaselineCards),
			arg.BaselineReading, string(domain.TopicStatusActive)).
		Suffix("RETURNING " + strings.Join(topicColumns, ", "))

	row, err := q.queryRow(ctx, b)
	if err != nil {
		return nil, err
	}
	t, err := scanTopic(row)
	if err != nil {
		return nil, mapError(err, "create topic")
	}
	return t, nil
}

// GetTopic loads a topic owned by userID, or ErrNotFound.
func (q *Queries) GetTopic(ctx context.Context, id, userID uuid.UUID) (*domain.Topic, error) {
	row, err := q.queryRow(ctx, psql.Select(topicColumns...).From("topics").
		Where(sq.Eq{"id": id, "user_id": userID}))
	if err != nil {
		return nil, err
	}
	t, err := scanTopic(row)
	if err != nil {
		return nil, mapError(err, "get topic")
	}
	return t, nil
}

// ListTopicsWithEventCounts lists a user's topics, newest first, with the
// number of events on each.
func (q *Queries) ListTopicsWithEventCounts(ctx context.Context, userID uuid.UUID) ([]domain.TopicWithUsage, error) {
	cols := make([]string, 0, len(topicColumns)+1)
	for _, c := range topicColumns {
		cols = append(cols, "t."+c)
	}
	cols = append(cols, "COUNT(e.id)")

	b := psql.Select(cols...).
		From("topics t").
		LeftJoin("topic_events e ON e.topic_id = t.id").
		Where(sq.Eq{"t.user_id": userID}).
		GroupBy("t.id").
		OrderBy("t.created_at DESC")

	rows, err := q.query(ctx, b)
	if err != nil {
		return nil, mapError(err, "list topics")
	}
	defer rows.Close()

	var out []domain.TopicWithUsage
	for rows.Next() {
		var n int64
		t, err := scanTopic(rows, &n)
		if err != nil {
			return nil, mapError(err, "scan topic")
		}
		out = append(out, domain.TopicWithUsage{Topic: *t, EventCount: int(n)})
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list topics")
	}
	return out, nil
}

// TouchTopic bumps updated_at after an event is appended.
func (q *Queries) TouchTopic(ctx context.Context, id uuid.UUID) error {
	_, err := q.exec(ctx, psql.Update("topics").
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}))
	return mapError(err, "touch topic")
}

// DeleteTopic removes a topic owned by userID; events cascade.
func (q *Queries) DeleteTopic(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := q.exec(ctx, psql.Delete("topics").Where(sq.Eq{"id": id, "user_id": userID}))
	if err != nil {
		return mapError(err, "delete topic")
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgx.ErrNoRows, "delete topic")
	}
	return nil
}
