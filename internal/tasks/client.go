package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
)

// Client runs the background task queue. Tasks live in their own SQLite
// file beside the main database so queue churn never contends with catalog
// cache or run history writes.
type Client struct {
	client *backlite.Client
	db     *sql.DB
	cfg    Config

	mu      sync.RWMutex
	started bool
}

// queueDBPath derives the task database path from the main database path:
// ./fableparser.db becomes ./fableparser-tasks.db.
func queueDBPath(mainDBPath string) string {
	ext := filepath.Ext(mainDBPath)
	return strings.TrimSuffix(mainDBPath, ext) + "-tasks" + ext
}

func NewClient(mainDBPath string, cfg Config) (*Client, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_timeout=5000&_busy_timeout=5000", queueDBPath(mainDBPath))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open tasks database: %w", err)
	}

	// Workers hold connections while processing, plus a little headroom
	// for enqueues coming from handlers.
	db.SetMaxOpenConns(cfg.Workers + 4)
	db.SetMaxIdleConns(cfg.Workers)
	db.SetConnMaxLifetime(time.Hour)

	bl, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          taskLogger{},
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create task queue: %w", err)
	}

	if err := bl.Install(); err != nil {
		db.Close()
		return nil, fmt.Errorf("install task queue schema: %w", err)
	}

	return &Client{client: bl, db: db, cfg: cfg}, nil
}

// Register adds queues to the client. Every queue must be registered
// before Start.
func (c *Client) Register(queues ...backlite.Queue) {
	for _, q := range queues {
		c.client.Register(q)
	}
}

// Start runs the workers until ctx is cancelled. A second call is a no-op;
// callers run it in a goroutine and drain with Stop.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	log.Printf("[TASK] Queue started with %d workers", c.cfg.Workers)
	c.client.Start(ctx)
}

// Stop drains in-flight tasks, giving up when ctx expires. Reports whether
// every worker finished in time.
func (c *Client) Stop(ctx context.Context) bool {
	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()
	if !started {
		return true
	}

	done := c.client.Stop(ctx)
	if done {
		log.Println("[TASK] Queue drained")
	} else {
		log.Println("[TASK] Queue stop timed out, abandoning remaining work")
	}
	return done
}

// Close releases the queue database. Call after Stop.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Add stages one or more tasks for insertion; call Save on the result to
// commit them to the queue.
func (c *Client) Add(tasks ...backlite.Task) *backlite.TaskAddOp {
	return c.client.Add(tasks...)
}

// Status looks up a previously enqueued task by ID.
func (c *Client) Status(ctx context.Context, taskID string) (backlite.TaskStatus, error) {
	return c.client.Status(ctx, taskID)
}

// taskLogger routes backlite's logging through the stdlib logger.
type taskLogger struct{}

func (taskLogger) Info(message string, params ...any) {
	log.Printf("[TASK] "+message, params...)
}

func (taskLogger) Error(message string, params ...any) {
	log.Printf("[TASK ERROR] "+message, params...)
}
