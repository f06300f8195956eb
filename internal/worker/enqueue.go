package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/DukeRupert/arcana/internal/repository"
)

// JobTypeArchiveReading must match the archive handler's Type().
const JobTypeArchiveReading = "archive_reading"

// Higher priorities are dequeued first.
const (
	PriorityLow     = 0
	PriorityDefault = 10
)

const defaultMaxAttempts = 3

// ArchiveReadingPayload carries the whole reading. Readings are not
// stored in the database, so the job is the only copy until it lands.
type ArchiveReadingPayload struct {
	Reading *domain.Reading `json:"reading"`
}

type Enqueuer interface {
	EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error)
}

// EnqueueOption adjusts the insert parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) { p.Priority = priority }
}

// EnqueueJob stores payload as JSON and schedules the job for now.
func EnqueueJob(ctx context.Context, q Enqueuer, jobType string, payload any, opts ...EnqueueOption) (repository.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal %s payload: %w", jobType, err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     raw,
		Priority:    PriorityDefault,
		MaxAttempts: defaultMaxAttempts,
		ScheduledAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&params)
	}

	job, err := q.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return job, nil
}

// ReadingArchiver is the reading service's hook into the queue.
type ReadingArchiver struct {
	Queue Enqueuer
}

// ArchiveReading queues r at low priority so it never delays other work.
func (a ReadingArchiver) ArchiveReading(ctx context.Context, r *domain.Reading) error {
	_, err := EnqueueJob(ctx, a.Queue, JobTypeArchiveReading, ArchiveReadingPayload{Reading: r}, WithPriority(PriorityLow))
	return err
}
