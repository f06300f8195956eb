package worker

import (
	"context"
	"errors"
)

// JobHandler executes one job type. Type must match jobs.job_type and
// Handle receives the raw JSON payload.
type JobHandler interface {
	Type() string
	Handle(ctx context.Context, payload []byte) error
}

// HandlerFunc adapts a function to JobHandler.
type HandlerFunc struct {
	JobType string
	Fn      func(ctx context.Context, payload []byte) error
}

// Type returns the job type.
func (h HandlerFunc) Type() string { return h.JobType }

// Handle calls Fn.
func (h HandlerFunc) Handle(ctx context.Context, payload []byte) error { return h.Fn(ctx, payload) }

// PermanentError marks a job failure that retrying cannot fix, such as a
// malformed payload or a rejected storage key. The job goes straight to
// failed.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// NewPermanentError wraps err so the worker does not retry it.
// A nil err stays nil.
func NewPermanentError(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err, or anything it wraps, is permanent.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
