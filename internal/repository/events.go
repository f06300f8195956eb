package repository

import (
	"context"
	"encoding/json"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sqlc-dev/pqtype"

	"github.com/DukeRupert/arcana/internal/domain"
)

var eventColumns = []string{
	"id", "topic_id", "cycle_id", "user_id", "name", "cards", "reading", "created_at",
}

func scanEvent(row pgx.Row) (*domain.TopicEvent, error) {
	var (
		e     domain.TopicEvent
		cards pqtype.NullRawMessage
	)
	if err := row.Scan(&e.ID, &e.TopicID, &e.CycleID, &e.UserID, &e.Name, &cards, &e.Reading, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Cards = fromNullRaw(cards)
	return &e, nil
}

// CountEvents counts the events on a topic.
func (q *Queries) CountEvents(ctx context.Context, topicID uuid.UUID) (int, error) {
	n, err := q.count(ctx, psql.Select("COUNT(*)").From("topic_events").Where(sq.Eq{"topic_id": topicID}))
	if err != nil {
		return 0, mapError(err, "count events")
	}
	return int(n), nil
}

// CreateEventParams is the row written by CreateEvent.
type CreateEventParams struct {
	TopicID uuid.UUID
	CycleID *uuid.UUID
	UserID  uuid.UUID
	Name    string
	Cards   json.RawMessage
	Reading string
}

// CreateEvent inserts an event.
func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (*domain.TopicEvent, error) {
	b := psql.Insert("topic_events").
		Columns("topic_id", "cycle_id", "user_id", "name", "cards", "reading").
		Values(arg.TopicID, arg.CycleID, arg.UserID, arg.Name, toNullRaw(arg.Cards), arg.Reading).
		Suffix("RETURNING " + strings.Join(eventColumns, ", "))

	row, err := q.queryRow(ctx, b)
	if err != nil {
		return nil, err
	}
	e, err := scanEvent(row)
	if err != nil {
		return nil, mapError(err, "create event")
	}
	return e, nil
}

// ListEvents returns a topic's events in creation order.
func (q *Queries) ListEvents(ctx context.Context, topicID uuid.UUID) ([]domain.TopicEvent, error) {
	rows, err := q.query(ctx, psql.Select(eventColumns...).From("topic_events").
		Where(sq.Eq{"topic_id": topicID}).
		OrderBy("created_at ASC"))
	if err != nil {
		return nil, mapError(err, "list events")
	}
	defer rows.Close()

	events := []domain.TopicEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, mapError(err, "scan event")
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list events")
	}
	return events, nil
}
