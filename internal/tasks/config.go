package tasks

import "time"

// Config tunes the task queue. Zero values are not usable; start from
// DefaultConfig and override per deployment.
type Config struct {
	// Workers is how many tasks may execute concurrently.
	Workers int

	// MaxRetries caps attempts for tasks whose queue config does not set
	// its own limit.
	MaxRetries int

	// RetryDelay is the default backoff between attempts.
	RetryDelay time.Duration

	// TaskTimeout bounds a single task execution.
	TaskTimeout time.Duration

	// ReleaseAfter returns tasks claimed by a dead worker to the queue.
	ReleaseAfter time.Duration

	// CleanupInterval is how often finished tasks are swept.
	CleanupInterval time.Duration

	// RetentionDuration is how long swept task records are kept.
	RetentionDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:           2,
		MaxRetries:        3,
		RetryDelay:        time.Minute,
		TaskTimeout:       5 * time.Minute,
		ReleaseAfter:      15 * time.Minute,
		CleanupInterval:   time.Hour,
		RetentionDuration: 24 * time.Hour,
	}
}
