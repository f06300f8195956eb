package worker

import (
	"errors"
	"fmt"
	"time"
)

// Config tunes the archive worker.
type Config struct {
	Concurrency int // polling goroutines

	// PollInterval is how long an idle goroutine sleeps before polling again.
	PollInterval time.Duration

	// JobTimeout cancels a single job's context.
	JobTimeout time.Duration

	// ShutdownTimeout bounds how long Run waits for running jobs after
	// its context is canceled.
	ShutdownTimeout time.Duration

	// StaleJobThreshold is the age after which a running job is assumed
	// orphaned by a crashed process and requeued on start.
	StaleJobThreshold time.Duration
}

// DefaultConfig suits archiving: jobs are small uploads, so a short
// timeout and two goroutines are plenty.
func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      5 * time.Second,
		JobTimeout:        time.Minute,
		ShutdownTimeout:   30 * time.Second,
		StaleJobThreshold: 10 * time.Minute,
	}
}

// Validate reports every out-of-range field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 || c.Concurrency > 100 {
		errs = append(errs, fmt.Errorf("concurrency must be between 1 and 100, got %d", c.Concurrency))
	}
	if c.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("poll interval must be at least 1s, got %v", c.PollInterval))
	}
	if c.JobTimeout < time.Second {
		errs = append(errs, fmt.Errorf("job timeout must be at least 1s, got %v", c.JobTimeout))
	}
	if c.ShutdownTimeout < time.Second {
		errs = append(errs, fmt.Errorf("shutdown timeout must be at least 1s, got %v", c.ShutdownTimeout))
	}
	// Stale recovery must not steal jobs that are merely slow.
	if c.StaleJobThreshold <= c.JobTimeout {
		errs = append(errs, fmt.Errorf("stale job threshold %v must exceed job timeout %v", c.StaleJobThreshold, c.JobTimeout))
	}
	return errors.Join(errs...)
}
