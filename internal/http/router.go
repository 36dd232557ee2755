package http

import (
	"html/template"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AutumnsGrove/FableParser/internal/database"
	"github.com/AutumnsGrove/FableParser/internal/tasks"
)

// RouterConfig carries every dependency the HTTP layer needs, so the
// endpoint wiring stays in one place.
type RouterConfig struct {
	Version         string
	Database        *database.Database
	OutputDir       string
	BuildProcessor  ProcessorBuilder
	RunStore        RunStore
	TaskClient      *tasks.Client
	RaindropEnabled bool
	VaultEnabled    bool
	ProcessTimeout  time.Duration
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.SetHTMLTemplate(template.Must(template.New(uploadPageName).Parse(uploadPageHTML)))

	health := NewHealthController(cfg.Database, cfg.OutputDir, cfg.Version)
	ui := NewUIController(cfg.RaindropEnabled, cfg.VaultEnabled)
	process := NewProcessController(cfg.BuildProcessor, cfg.RaindropEnabled, cfg.VaultEnabled, cfg.ProcessTimeout)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// UI routes
	router.GET("/", ui.UploadPage)

	// Processing endpoint
	router.POST("/api/process", process.Process)

	// Run history endpoints
	if cfg.RunStore != nil {
		runs := NewRunsController(cfg.RunStore)
		router.GET("/api/runs", runs.ListRuns)
		router.GET("/api/runs/:uuid", runs.GetRun)
	}

	// Task management endpoints
	if cfg.TaskClient != nil {
		tasksController := NewTasksController(cfg.TaskClient)
		router.GET("/api/tasks/types", tasksController.ListTaskTypes)
		router.GET("/api/tasks/:id", tasksController.GetTaskStatus)
		router.POST("/api/tasks/:type/run", tasksController.RunTask)
	}

	return router
}
