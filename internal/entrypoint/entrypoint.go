package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AutumnsGrove/FableParser/internal/audit"
	"github.com/AutumnsGrove/FableParser/internal/catalog"
	"github.com/AutumnsGrove/FableParser/internal/config"
	"github.com/AutumnsGrove/FableParser/internal/database"
	"github.com/AutumnsGrove/FableParser/internal/enrich"
	http_controllers "github.com/AutumnsGrove/FableParser/internal/http"
	"github.com/AutumnsGrove/FableParser/internal/markdown"
	"github.com/AutumnsGrove/FableParser/internal/pipeline"
	"github.com/AutumnsGrove/FableParser/internal/scheduler"
	"github.com/AutumnsGrove/FableParser/internal/sinks"
	"github.com/AutumnsGrove/FableParser/internal/tasks"
	"github.com/AutumnsGrove/FableParser/internal/vision"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	log.Printf("Checking output directory: %s", cfg.Pipeline.OutputDir)

	if err := os.MkdirAll(cfg.Pipeline.OutputDir, 0755); err != nil {
		log.Fatalf("Could not create output directory %s: %v", cfg.Pipeline.OutputDir, err)
		return
	}

	// Check the output dir is writable by touching and removing an empty file
	touchPath := filepath.Join(cfg.Pipeline.OutputDir, ".fableparser")
	if _, err := os.Create(touchPath); err != nil {
		log.Fatalf("Output directory %s is not writable", cfg.Pipeline.OutputDir)
		return
	}
	if err := os.Remove(touchPath); err != nil {
		log.Printf("Could not remove the test file from the output directory %s", cfg.Pipeline.OutputDir)
	}

	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then give in-flight
	// requests the configured timeout to finish.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting FableParser v%s", version)

	if cfg.Vision.APIKey == "" {
		log.Printf("WARNING: Anthropic API key is not set. Screenshot processing will fail. Set 'ANTHROPIC_API_KEY' environment variable to enable.")
	}

	if cfg.Vault.Enabled {
		if cfg.Vault.Dir == "" {
			log.Fatalf("Vault sink enabled but vault directory is not set")
		}
		if _, err := os.Stat(cfg.Vault.Dir); os.IsNotExist(err) {
			log.Fatalf("Vault directory %s does not exist", cfg.Vault.Dir)
		}
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	// Create auditor for saving raw vision exchanges
	var auditor *audit.Auditor
	if cfg.Audit.Enabled {
		auditDir := cfg.Audit.Dir
		if auditDir == "" {
			auditDir = filepath.Join(filepath.Dir(cfg.Database.Path), "audit")
		}
		auditor = audit.NewAuditor(auditDir)
		log.Printf("Vision audit enabled at %s", auditDir)
	}

	// Catalog client, optionally wrapped with the lookup cache
	openLibrary := catalog.NewOpenLibraryClient(cfg.Catalog)
	var searcher enrich.CatalogClient = openLibrary
	if cfg.Catalog.CacheEnabled {
		searcher = catalog.NewCachedClient(openLibrary, db, cfg.Catalog.CacheTTL)
		log.Printf("Catalog lookup cache enabled (TTL %v)", cfg.Catalog.CacheTTL)
	}

	enricher := enrich.NewEnricher(searcher, cfg.Catalog)
	extractor := vision.NewAnthropicClient(cfg.Vision, auditor)
	renderer := markdown.NewRenderer(cfg.Pipeline.FrontmatterFields)
	local := sinks.NewLocalSink()

	var raindropSink *sinks.RaindropSink
	if cfg.Raindrop.Enabled {
		if cfg.Raindrop.Token == "" {
			log.Fatalf("Raindrop sink enabled but RAINDROP_TOKEN is not set")
		}
		raindropSink = sinks.NewRaindropSink(cfg.Raindrop)
		log.Printf("Raindrop mirror enabled")
	}

	var vaultSink *sinks.VaultSink
	if cfg.Vault.Enabled {
		vaultSink = sinks.NewVaultSink(cfg.Vault)
		log.Printf("Vault mirror enabled at %s", cfg.Vault.Dir)
	}

	// The web form can toggle mirrors per upload, so the router gets a
	// builder instead of a single processor.
	buildProcessor := func(useRaindrop, useVault bool) *pipeline.Processor {
		var mirrors []pipeline.NamedMirror
		if useRaindrop && raindropSink != nil {
			mirrors = append(mirrors, pipeline.NamedMirror{Name: "raindrop", Mirror: raindropSink})
		}
		if useVault && vaultSink != nil {
			mirrors = append(mirrors, pipeline.NamedMirror{Name: "vault", Mirror: vaultSink})
		}
		return pipeline.NewProcessor(extractor, enricher, renderer, local, mirrors, db, cfg.Pipeline)
	}

	// Background refresh tasks mirror everywhere that is configured.
	taskProcessor := buildProcessor(true, true)

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:           cfg.Tasks.Workers,
			MaxRetries:        cfg.Tasks.MaxRetries,
			RetryDelay:        cfg.Tasks.RetryDelay,
			TaskTimeout:       cfg.Tasks.TaskTimeout,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		var cleaner tasks.AuditCleaner
		if auditor != nil {
			cleaner = auditor
		}

		// Register task queues
		taskClient.Register(
			tasks.NewRefreshBookQueue(taskProcessor),
			tasks.NewRefreshAllQueue(taskProcessor),
			tasks.NewCleanupAuditQueue(cleaner),
		)

		// Start task workers in background
		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		// Sweep stale audit files once per boot
		if auditor != nil {
			if _, err := taskClient.Add(tasks.CleanupAuditTask{}).Save(); err != nil {
				log.Printf("WARNING: Failed to enqueue audit cleanup: %v", err)
			}
		}
	}

	// Periodic vault sync
	var vaultScheduler *scheduler.VaultSyncScheduler
	if cfg.VaultSync.Enabled && vaultSink != nil {
		vaultScheduler = scheduler.NewVaultSyncScheduler(vaultSink, cfg.Pipeline.OutputDir, cfg.VaultSync)
		if err := vaultScheduler.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start vault sync scheduler: %v", err)
		}
	}

	// Build router configuration with all dependencies
	routerCfg := http_controllers.RouterConfig{
		Version:         version,
		Database:        db,
		OutputDir:       cfg.Pipeline.OutputDir,
		BuildProcessor:  buildProcessor,
		RunStore:        db,
		TaskClient:      taskClient,
		RaindropEnabled: raindropSink != nil,
		VaultEnabled:    vaultSink != nil,
		ProcessTimeout:  5 * time.Minute,
	}

	router := http_controllers.NewRouter(routerCfg)

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		if vaultScheduler != nil {
			vaultScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
