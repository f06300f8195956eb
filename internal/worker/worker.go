package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DukeRupert/arcana/internal/metrics"
	"github.com/DukeRupert/arcana/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

// Store is the job queue persistence. *repository.Queries implements it;
// calls made with a context from TxRunner.RunInTx share its transaction.
type Store interface {
	DequeueJob(ctx context.Context) (repository.Job, error)
	UpdateJobStarted(ctx context.Context, id uuid.UUID) error
	UpdateJobCompleted(ctx context.Context, id uuid.UUID) error
	UpdateJobFailed(ctx context.Context, arg repository.UpdateJobFailedParams) error
	RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Worker polls the jobs table with a fixed number of goroutines.
type Worker struct {
	store    Store
	tx       TxRunner
	handlers map[string]JobHandler
	config   Config
	logger   *slog.Logger
}

func New(store Store, tx TxRunner, config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Worker{
		store:    store,
		tx:       tx,
		handlers: make(map[string]JobHandler),
		config:   config,
		logger:   logger.With("component", "worker"),
	}, nil
}

// Register must be called before Run. A second handler for the same type
// replaces the first.
func (w *Worker) Register(handler JobHandler) {
	jobType := handler.Type()
	if _, exists := w.handlers[jobType]; exists {
		w.logger.Warn("Overwriting existing handler", "job_type", jobType)
	}
	w.handlers[jobType] = handler
}

// Run requeues jobs orphaned by a previous crash, then polls until ctx is
// canceled. Jobs already running are allowed to finish for up to
// ShutdownTimeout. The error return lets Run sit in an errgroup next to
// the HTTP server; it is always nil.
func (w *Worker) Run(ctx context.Context) error {
	if n, err := w.store.RecoverStaleJobs(ctx, w.config.StaleJobThreshold.Seconds()); err != nil {
		w.logger.Error("Failed to recover stale jobs", "error", err)
	} else if n > 0 {
		w.logger.Warn("Recovered stale jobs", "count", n, "threshold", w.config.StaleJobThreshold)
	}

	var g errgroup.Group
	for i := 1; i <= w.config.Concurrency; i++ {
		logger := w.logger.With("worker_id", i)
		g.Go(func() error {
			w.poll(ctx, logger)
			return nil
		})
	}
	w.logger.Info("Worker started", "concurrency", w.config.Concurrency)

	<-ctx.Done()

	drained := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		w.logger.Info("Worker stopped")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timeout exceeded, some jobs may still be running")
	}
	return nil
}

// poll drains the queue on every tick, then sleeps until the next one.
// Any error ends the drain, so a database outage costs one attempt per
// tick rather than a tight loop.
func (w *Worker) poll(ctx context.Context, logger *slog.Logger) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		w.drain(ctx, logger)
	}
}

func (w *Worker) drain(ctx context.Context, logger *slog.Logger) {
	for ctx.Err() == nil {
		err := w.processNextJob(ctx, logger)
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			logger.Error("Failed to process job", "error", err)
		}
		return
	}
}

// processNextJob claims and runs one job. It returns pgx.ErrNoRows when
// the queue is empty.
func (w *Worker) processNextJob(ctx context.Context, logger *slog.Logger) error {
	var job repository.Job

	// Claim in one transaction so FOR UPDATE SKIP LOCKED holds until the
	// row is marked running.
	err := w.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if job, err = w.store.DequeueJob(ctx); err != nil {
			return err
		}
		if err := w.store.UpdateJobStarted(ctx, job.ID); err != nil {
			return fmt.Errorf("mark job started: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// A claimed job runs to completion or timeout even if shutdown begins.
	runCtx := context.WithoutCancel(ctx)

	logger = logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts+1)
	logger.Info("Processing job")
	if job.Attempts > 0 {
		metrics.JobRetried(job.JobType)
	}

	metrics.JobStarted(job.JobType)
	began := time.Now()
	jobErr := w.execute(runCtx, job)
	took := time.Since(began)
	metrics.JobFinished(job.JobType)

	if jobErr != nil {
		metrics.JobFailed(job.JobType)
		w.recordFailure(runCtx, logger, job.ID, jobErr)
		return fmt.Errorf("execute job: %w", jobErr)
	}

	metrics.JobCompleted(job.JobType, took)
	logger.Info("Job completed", "duration", took)
	if err := w.store.UpdateJobCompleted(runCtx, job.ID); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, job repository.Job) error {
	handler, ok := w.handlers[job.JobType]
	if !ok {
		return NewPermanentError(fmt.Errorf("no handler registered for job type %q", job.JobType))
	}

	ctx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()
	return handler.Handle(ctx, job.Payload)
}

// recordFailure ends the job as failed when the error is permanent or
// attempts are exhausted; otherwise the store reschedules it with backoff.
func (w *Worker) recordFailure(ctx context.Context, logger *slog.Logger, id uuid.UUID, jobErr error) {
	permanent := IsPermanent(jobErr)
	if permanent {
		logger.Warn("Job failed permanently", "error", jobErr)
	} else {
		logger.Error("Job failed", "error", jobErr)
	}

	err := w.store.UpdateJobFailed(ctx, repository.UpdateJobFailedParams{
		ID:           id,
		ErrorMessage: jobErr.Error(),
		Permanent:    permanent,
	})
	if err != nil {
		logger.Error("Failed to mark job as failed", "error", err)
	}
}
