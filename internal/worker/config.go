package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the generation worker.
type Config struct {
	// Concurrency is the number of worker goroutines draining the queue in
	// parallel. The pipeline stays correct with several instances because
	// the quota update serializes on a per-user row lock.
	// Default: 1
	Concurrency int

	// RetryBackoff is how long a worker waits after an infrastructure
	// failure (queue or store unreachable) before the next dequeue.
	// Default: 1 second
	RetryBackoff time.Duration

	// ShutdownTimeout is how long Stop waits for in-flight jobs to complete.
	// After this timeout, the worker stops waiting even if jobs are still
	// running.
	// Default: 30 seconds
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Concurrency:     1,
		RetryBackoff:    1 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
// Returns an error if any values are invalid.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Concurrency > 100 {
		return fmt.Errorf("concurrency too high (max 100), got %d", c.Concurrency)
	}
	if c.RetryBackoff < 100*time.Millisecond {
		return fmt.Errorf("retry backoff must be at least 100ms, got %v", c.RetryBackoff)
	}
	if c.ShutdownTimeout < 1*time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	return nil
}
