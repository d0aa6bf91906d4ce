package worker

import (
	"context"
	"errors"

	"gemchat/internal/queue"
)

// Handler turns one dequeued job into a persisted result. Implementations
// must be safe for concurrent use: several worker goroutines share one
// Handler.
type Handler interface {
	// Handle processes the job to completion. A plain error means the job
	// hit infrastructure trouble and the worker should back off before the
	// next dequeue. Wrap with NewPermanentError for jobs that can never
	// succeed (bad payloads, vanished rooms) so the worker drops them
	// without backoff.
	Handle(ctx context.Context, job queue.Job) error
}

// Dequeuer is the queue surface the worker consumes.
type Dequeuer interface {
	Dequeue(ctx context.Context) (queue.Job, error)
}

// PermanentError wraps an error to indicate the job should be dropped, not
// treated as a transient infrastructure failure.
type PermanentError struct {
	Err error
}

// Error implements the error interface.
func (e *PermanentError) Error() string {
	return e.Err.Error()
}

// Unwrap allows errors.Is and errors.As to work with PermanentError.
func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError creates a new PermanentError that wraps the given error.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent checks if an error is a PermanentError.
// Returns true if the error (or any error it wraps) is a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
