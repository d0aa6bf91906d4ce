// Package worker runs the consumer side of the generation pipeline: a set of
// long-lived goroutines that drain the job queue with at-least-once
// semantics. A dequeued job always runs to completion before its goroutine
// honors a stop request; there is no mid-job cancellation.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gemchat/internal/metrics"
	"gemchat/internal/queue"
)

// Worker manages the generation worker goroutines.
type Worker struct {
	queue   Dequeuer
	handler Handler
	config  Config
	logger  *slog.Logger

	// Synchronization
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(q Dequeuer, handler Handler, config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		queue:   q,
		handler: handler,
		config:  config,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins draining the queue with the configured number of goroutines.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i+1)
	}

	w.logger.Info("Worker started", "concurrency", w.config.Concurrency)
}

// Stop signals all workers to stop and waits for them to finish their
// in-flight jobs. It respects the configured ShutdownTimeout.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopCh)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timeout exceeded, some jobs may still be running")
	}
}

// runWorker is the main loop for one worker goroutine. The stop flag is
// checked between jobs only; a job picked up before the stop request still
// completes.
func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", workerID)
	logger.Debug("Worker started")

	for {
		select {
		case <-w.stopCh:
			logger.Debug("Worker stopping")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.handleDequeueError(err, logger)
			continue
		}

		w.processJob(ctx, job, logger)
	}
}

// handleDequeueError sorts dequeue failures: an empty blocking window is
// normal, a malformed payload is dropped, anything else is infrastructure
// trouble worth a backoff. None of them ever crash the loop.
func (w *Worker) handleDequeueError(err error, logger *slog.Logger) {
	var malformed *queue.MalformedJobError

	switch {
	case errors.Is(err, queue.ErrNoJob):
		// Blocking window elapsed, go around and check the stop flag.
	case errors.As(err, &malformed):
		logger.Error("Dropping malformed job payload",
			"error", malformed.Err,
			"payload", malformed.Payload,
		)
		metrics.JobDropped()
	default:
		logger.Error("Queue unavailable, backing off", "error", err, "backoff", w.config.RetryBackoff)
		w.backoff()
	}
}

// processJob runs one job to completion and records the outcome.
func (w *Worker) processJob(ctx context.Context, job queue.Job, logger *slog.Logger) {
	logger = logger.With("chatroom_id", job.ChatroomID, "user_id", job.UserID)
	logger.Info("Processing job")

	start := time.Now()
	if err := w.handler.Handle(ctx, job); err != nil {
		if IsPermanent(err) {
			logger.Error("Dropping job that can never succeed", "error", err)
			metrics.JobDropped()
			return
		}
		// The job is lost; at-least-once delivery without acknowledgment
		// accepts this. Back off before hitting the store again.
		logger.Error("Job failed", "error", err, "backoff", w.config.RetryBackoff)
		metrics.JobFailed()
		w.backoff()
		return
	}

	logger.Info("Job completed", "duration_ms", time.Since(start).Milliseconds())
	metrics.JobCompleted(time.Since(start))
}

// backoff sleeps for the configured retry delay, returning early on stop.
func (w *Worker) backoff() {
	select {
	case <-w.stopCh:
	case <-time.After(w.config.RetryBackoff):
	}
}
