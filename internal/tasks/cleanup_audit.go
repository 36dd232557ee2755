package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// defaultAuditRetentionDays bounds how long raw vision replies are kept
// when a cleanup task does not name its own window.
const defaultAuditRetentionDays = 30

// AuditCleaner deletes stored vision exchanges past a retention window.
type AuditCleaner interface {
	DeleteOldEvents(retention time.Duration) (int64, error)
}

// CleanupAuditTask prunes saved vision audit files. A RetentionDays of
// zero means the default window.
type CleanupAuditTask struct {
	RetentionDays int `json:"retention_days"`
}

func (t CleanupAuditTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_audit",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// retention resolves the window the task asks for.
func (t CleanupAuditTask) retention() (time.Duration, int) {
	days := t.RetentionDays
	if days <= 0 {
		days = defaultAuditRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour, days
}

// CleanupAuditProcessor builds the queue processor that applies the task's
// retention window through the given cleaner.
func CleanupAuditProcessor(cleaner AuditCleaner) backlite.QueueProcessor[CleanupAuditTask] {
	return func(ctx context.Context, task CleanupAuditTask) error {
		if cleaner == nil {
			return fmt.Errorf("audit cleaner not configured")
		}

		window, days := task.retention()
		deleted, err := cleaner.DeleteOldEvents(window)
		if err != nil {
			return fmt.Errorf("cleanup audit files: %w", err)
		}

		log.Printf("[TASK] Cleaned up %d audit files older than %d days", deleted, days)
		return nil
	}
}

func NewCleanupAuditQueue(cleaner AuditCleaner) backlite.Queue {
	return backlite.NewQueue(CleanupAuditProcessor(cleaner))
}
