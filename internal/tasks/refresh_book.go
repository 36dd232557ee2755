package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/AutumnsGrove/FableParser/internal/pipeline"
)

// RefreshBookTask re-enriches one previously written document in place.
type RefreshBookTask struct {
	Path string `json:"path"`
}

// Config returns the queue configuration for single-document refreshes.
func (t RefreshBookTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "refresh_book",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// RefreshBookProcessor creates a processor function for RefreshBookTask.
func RefreshBookProcessor(processor *pipeline.Processor) backlite.QueueProcessor[RefreshBookTask] {
	return func(ctx context.Context, task RefreshBookTask) error {
		if processor == nil {
			return fmt.Errorf("processor not configured")
		}

		updated, err := processor.RefreshFile(ctx, task.Path)
		if err != nil {
			return fmt.Errorf("refresh %s: %w", task.Path, err)
		}

		if updated {
			log.Printf("[TASK] Refreshed metadata for %s", task.Path)
		} else {
			log.Printf("[TASK] No catalog match for %s, left unchanged", task.Path)
		}
		return nil
	}
}

// NewRefreshBookQueue creates a backlite queue for document refresh tasks.
func NewRefreshBookQueue(processor *pipeline.Processor) backlite.Queue {
	return backlite.NewQueue(RefreshBookProcessor(processor))
}
