package repository

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Job statuses
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job is a row of the background job queue.
type Job struct {
	ID          uuid.UUID
	JobType     string
	Payload     []byte
	Status      string
	Priority    int32
	Attempts    int32
	MaxAttempts int32
	ScheduledAt time.Time
	CreatedAt   time.Time
}

var jobColumns = []string{
	"id", "job_type", "payload", "status", "priority",
	"attempts", "max_attempts", "scheduled_at", "created_at",
}

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.JobType, &j.Payload, &j.Status, &j.Priority,
		&j.Attempts, &j.MaxAttempts, &j.ScheduledAt, &j.CreatedAt)
	return j, err
}

// EnqueueJobParams describes a job to insert.
type EnqueueJobParams struct {
	JobType     string
	Payload     []byte
	Priority    int32
	MaxAttempts int32
	ScheduledAt time.Time
}

// EnqueueJob inserts a pending job.
func (q *Queries) EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error) {
	b := psql.Insert("jobs").
		Columns("job_type", "payload", "status", "priority", "max_attempts", "scheduled_at").
		Values(arg.JobType, arg.Payload, JobStatusPending, arg.Priority, arg.MaxAttempts, arg.ScheduledAt).
		Suffix("RETURNING " + strings.Join(jobColumns, ", "))

	row, err := q.queryRow(ctx, b)
	if err != nil {
		return Job{}, err
	}
	j, err := scanJob(row)
	if err != nil {
		return Job{}, mapError(err, "enqueue job")
	}
	return j, nil
}

// DequeueJob locks the next runnable job, skipping rows locked by other
// workers. It must run inside a transaction. Returns pgx.ErrNoRows when
// the queue is empty.
func (q *Queries) DequeueJob(ctx context.Context) (Job, error) {
	b := psql.Select(jobColumns...).
		From("jobs").
		Where(sq.Eq{"status": JobStatusPending}).
		Where(sq.Expr("scheduled_at <= now()")).
		OrderBy("priority DESC", "scheduled_at ASC").
		Limit(1).
		Suffix("FOR UPDATE SKIP LOCKED")

	row, err := q.queryRow(ctx, b)
	if err != nil {
		return Job{}, err
	}
	return scanJob(row)
}

// UpdateJobStarted marks a job running and counts the attempt.
func (q *Queries) UpdateJobStarted(ctx context.Context, id uuid.UUID) error {
	_, err := q.exec(ctx, psql.Update("jobs").
		Set("status", JobStatusRunning).
		Set("started_at", sq.Expr("now()")).
		Set("attempts", sq.Expr("attempts + 1")).
		Where(sq.Eq{"id": id}))
	return mapError(err, "start job")
}

// UpdateJobCompleted marks a job completed.
func (q *Queries) UpdateJobCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := q.exec(ctx, psql.Update("jobs").
		Set("status", JobStatusCompleted).
		Set("completed_at", sq.Expr("now()")).
		Set("error_message", nil).
		Where(sq.Eq{"id": id}))
	return mapError(err, "complete job")
}

// UpdateJobFailedParams describes a failed attempt.
type UpdateJobFailedParams struct {
	ID           uuid.UUID
	ErrorMessage string
	Permanent    bool
}

// UpdateJobFailed records a failure. Jobs with attempts left are put back
// to pending with exponential backoff (30s * 2^attempts); the rest fail.
func (q *Queries) UpdateJobFailed(ctx context.Context, arg UpdateJobFailedParams) error {
	b := psql.Update("jobs").
		Set("error_message", arg.ErrorMessage).
		Set("status", sq.Expr("CASE WHEN ? OR attempts >= max_attempts THEN ? ELSE ? END",
			arg.Permanent, JobStatusFailed, JobStatusPending)).
		Set("scheduled_at", sq.Expr("now() + make_interval(secs => 30 * power(2, attempts))")).
		Set("completed_at", sq.Expr("CASE WHEN ? OR attempts >= max_attempts THEN now() ELSE NULL END",
			arg.Permanent)).
		Where(sq.Eq{"id": arg.ID})
	_, err := q.exec(ctx, b)
	return mapError(err, "fail job")
}

// RecoverStaleJobs resets jobs stuck in running longer than the threshold.
func (q *Queries) RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error) {
	tag, err := q.exec(ctx, psql.Update("jobs").
		Set("status", JobStatusPending).
		Set("started_at", nil).
		Where(sq.Eq{"status": JobStatusRunning}).
		Where(sq.Expr("started_at < now() - make_interval(secs => ?)", thresholdSeconds)))
	if err != nil {
		return 0, mapError(err, "recover stale jobs")
	}
	return tag.RowsAffected(), nil
}
