package tasks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueueClient(t *testing.T) (*Client, string) {
	t.Helper()

	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(filepath.Join(dir, "fableparser.db"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, dir
}

func TestQueueDBPath(t *testing.T) {
	assert.Equal(t, "./fableparser-tasks.db", queueDBPath("./fableparser.db"))
	assert.Equal(t, "/data/app-tasks.sqlite", queueDBPath("/data/app.sqlite"))
}

func TestNewClientCreatesQueueDatabase(t *testing.T) {
	_, dir := newQueueClient(t)

	assert.FileExists(t, filepath.Join(dir, "fableparser-tasks.db"))
}

func TestClientStopWithoutStart(t *testing.T) {
	client, _ := newQueueClient(t)

	assert.True(t, client.Stop(context.Background()))
}

func TestClientStartStop(t *testing.T) {
	client, _ := newQueueClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)
	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.True(t, client.Stop(stopCtx), "workers should drain before the deadline")
}

// probeTask is a throwaway task type used to drive the queue in tests.
type probeTask struct {
	Slug string `json:"slug"`
}

func (probeTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "probe",
		MaxAttempts: 1,
		Backoff:     time.Second,
		Timeout:     5 * time.Second,
	}
}

func TestClientRunsEnqueuedTasks(t *testing.T) {
	client, _ := newQueueClient(t)

	processed := make(chan string, 1)
	client.Register(backlite.NewQueue(func(ctx context.Context, task probeTask) error {
		processed <- task.Slug
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	ids, err := client.Add(probeTask{Slug: "sanderson_mistborn"}).Save()
	require.NoError(t, err)
	require.Len(t, ids, 1)

	select {
	case slug := <-processed:
		assert.Equal(t, "sanderson_mistborn", slug)
	case <-time.After(5 * time.Second):
		t.Fatal("queued task never ran")
	}
}

func TestRefreshBookTaskConfig(t *testing.T) {
	task := RefreshBookTask{Path: "./books/sanderson_mistborn.md"}
	cfg := task.Config()

	assert.Equal(t, "refresh_book", cfg.Name)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Backoff)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.NotNil(t, cfg.Retention)
}

func TestRefreshAllTaskConfig(t *testing.T) {
	task := RefreshAllTask{}
	cfg := task.Config()

	assert.Equal(t, "refresh_all", cfg.Name)
	assert.Equal(t, 1, cfg.MaxAttempts)
	assert.Equal(t, 60*time.Minute, cfg.Timeout)
}

func TestCleanupAuditTaskConfig(t *testing.T) {
	task := CleanupAuditTask{RetentionDays: 30}
	cfg := task.Config()

	assert.Equal(t, "cleanup_audit", cfg.Name)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Backoff)
}

// stubCleaner records the retention it was asked to apply.
type stubCleaner struct {
	retention time.Duration
	deleted   int64
}

func (s *stubCleaner) DeleteOldEvents(retention time.Duration) (int64, error) {
	s.retention = retention
	return s.deleted, nil
}

func TestCleanupAuditProcessorDefaultsRetention(t *testing.T) {
	cleaner := &stubCleaner{deleted: 2}
	process := CleanupAuditProcessor(cleaner)

	err := process(context.Background(), CleanupAuditTask{})
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, cleaner.retention)
}

func TestCleanupAuditProcessorCustomRetention(t *testing.T) {
	cleaner := &stubCleaner{}
	process := CleanupAuditProcessor(cleaner)

	err := process(context.Background(), CleanupAuditTask{RetentionDays: 7})
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, cleaner.retention)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Minute, cfg.RetryDelay)
	assert.Equal(t, 5*time.Minute, cfg.TaskTimeout)
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 24*time.Hour, cfg.RetentionDuration)
}
