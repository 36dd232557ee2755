package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/AutumnsGrove/FableParser/internal/pipeline"
)

// RefreshAllTask re-enriches every document in the output directory.
// Runs sequentially so the catalog rate limit is respected and progress
// shows up in the logs.
type RefreshAllTask struct{}

// Config returns the queue configuration for bulk refresh tasks.
func (t RefreshAllTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "refresh_all",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     60 * time.Minute, // Allow time to process a large library
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// RefreshAllProcessor creates a processor function for RefreshAllTask.
func RefreshAllProcessor(processor *pipeline.Processor) backlite.QueueProcessor[RefreshAllTask] {
	return func(ctx context.Context, task RefreshAllTask) error {
		if processor == nil {
			return fmt.Errorf("processor not configured")
		}

		paths, err := processor.ListDocuments()
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}

		var updated, unchanged, failed int
		for i, path := range paths {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			log.Printf("[TASK] Refreshing %d/%d: %s", i+1, len(paths), path)
			ok, err := processor.RefreshFile(ctx, path)
			switch {
			case err != nil:
				failed++
				log.Printf("[TASK] Refresh failed for %s: %v", path, err)
			case ok:
				updated++
			default:
				unchanged++
			}
		}

		log.Printf("[TASK] Refresh complete: %d documents, %d updated, %d unchanged, %d failed",
			len(paths), updated, unchanged, failed)
		return nil
	}
}

// NewRefreshAllQueue creates a backlite queue for bulk refresh tasks.
func NewRefreshAllQueue(processor *pipeline.Processor) backlite.Queue {
	return backlite.NewQueue(RefreshAllProcessor(processor))
}
