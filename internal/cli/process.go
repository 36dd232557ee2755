package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AutumnsGrove/FableParser/internal/catalog"
	"github.com/AutumnsGrove/FableParser/internal/config"
	"github.com/AutumnsGrove/FableParser/internal/database"
	"github.com/AutumnsGrove/FableParser/internal/enrich"
	"github.com/AutumnsGrove/FableParser/internal/entities"
	"github.com/AutumnsGrove/FableParser/internal/markdown"
	"github.com/AutumnsGrove/FableParser/internal/pipeline"
	"github.com/AutumnsGrove/FableParser/internal/sinks"
	"github.com/AutumnsGrove/FableParser/internal/vision"
)

// ProcessCommand runs the full pipeline on one screenshot from the terminal.
type ProcessCommand struct {
	ImagePath string
	OutputDir string
	Raindrop  bool
	Vault     bool
	Verbose   bool

	cfg *config.Config
}

func NewProcessCommand() *ProcessCommand {
	return &ProcessCommand{}
}

func (cmd *ProcessCommand) ParseFlags(args []string) error {
	cmd.cfg = config.NewConfig()

	fs := flag.NewFlagSet("process", flag.ExitOnError)

	fs.StringVar(&cmd.ImagePath, "image", "", "Path to the bookshelf screenshot (required)")
	fs.StringVar(&cmd.OutputDir, "output", cmd.cfg.Pipeline.OutputDir, "Output directory for markdown documents")
	fs.BoolVar(&cmd.Raindrop, "raindrop", false, "Mirror documents to Raindrop (requires RAINDROP_TOKEN)")
	fs.BoolVar(&cmd.Vault, "vault", false, "Mirror documents into the Obsidian vault (requires VAULT_DIR)")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose output")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s process -image <path> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Extract books from a Fable bookshelf screenshot, enrich them from\n")
		fmt.Fprintf(os.Stderr, "Open Library and write one markdown document per book.\n\n")
		fmt.Fprintf(os.Stderr, "Requires the 'ANTHROPIC_API_KEY' environment variable.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Process a screenshot into ./books:\n")
		fmt.Fprintf(os.Stderr, "  %s process -image shelf.png\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Also mirror the documents into an Obsidian vault:\n")
		fmt.Fprintf(os.Stderr, "  VAULT_DIR=~/Vault/Books %s process -image shelf.png -vault\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.ImagePath == "" {
		return fmt.Errorf("required flag -image not provided")
	}

	cmd.cfg.Pipeline.OutputDir = cmd.OutputDir
	if cmd.Raindrop {
		cmd.cfg.Raindrop.Enabled = true
	}
	if cmd.Vault {
		cmd.cfg.Vault.Enabled = true
	}

	return nil
}

func (cmd *ProcessCommand) Run() error {
	fmt.Println("📚 FableParser")
	fmt.Println("==============")

	cfg := cmd.cfg
	if err := cfg.ValidateProcessing(); err != nil {
		return err
	}

	if _, err := os.Stat(cmd.ImagePath); os.IsNotExist(err) {
		return fmt.Errorf("screenshot not found: %s", cmd.ImagePath)
	}

	mediaType, err := vision.DetectMediaType(cmd.ImagePath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(cmd.ImagePath)
	if err != nil {
		return fmt.Errorf("failed to read screenshot: %w", err)
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	processor := buildProcessor(cfg, db)

	fmt.Printf("\n📖 Reading books from %s...\n", filepath.Base(cmd.ImagePath))

	summary, err := processor.ProcessImage(context.Background(), vision.Image{
		Data:      data,
		MediaType: mediaType,
		Name:      filepath.Base(cmd.ImagePath),
	}, entities.TriggerCLI)
	if err != nil {
		return err
	}

	fmt.Printf("📚 Found %d books\n\n", len(summary.Outcomes))

	for _, outcome := range summary.Outcomes {
		switch outcome.Status {
		case entities.OutcomeEnriched:
			fmt.Printf("  ✅ %s by %s -> %s\n", outcome.Record.Title, outcome.Record.Author, outcome.Identity.Filepath)
		case entities.OutcomeDegraded:
			fmt.Printf("  ⚠️  %s by %s -> %s (no catalog match)\n", outcome.Record.Title, outcome.Record.Author, outcome.Identity.Filepath)
		case entities.OutcomeFailed:
			fmt.Printf("  ❌ %s by %s: %s\n", outcome.Record.Title, outcome.Record.Author, outcome.Detail)
		}

		if cmd.Verbose {
			for _, sinkErr := range outcome.SinkErrors {
				fmt.Printf("     ⚠️  mirror: %s\n", sinkErr)
			}
			if outcome.Record.ISBN13 != "" {
				fmt.Printf("     ISBN %s\n", outcome.Record.ISBN13)
			}
		}
	}

	fmt.Println("\n=== Summary ===")
	fmt.Printf("Enriched: %d  Degraded: %d  Failed: %d  (%v)\n",
		summary.Enriched, summary.Degraded, summary.Failed, summary.Duration.Round(time.Millisecond))

	if summary.Failed > 0 {
		return fmt.Errorf("%d documents could not be written", summary.Failed)
	}

	fmt.Println("\n✅ Processing complete!")
	return nil
}

// buildProcessor assembles the pipeline the way the server does, minus the
// per-request mirror toggles: CLI flags already decided the mirrors.
func buildProcessor(cfg *config.Config, db *database.Database) *pipeline.Processor {
	openLibrary := catalog.NewOpenLibraryClient(cfg.Catalog)
	var searcher enrich.CatalogClient = openLibrary
	if cfg.Catalog.CacheEnabled {
		searcher = catalog.NewCachedClient(openLibrary, db, cfg.Catalog.CacheTTL)
	}

	enricher := enrich.NewEnricher(searcher, cfg.Catalog)
	extractor := vision.NewAnthropicClient(cfg.Vision, nil)
	renderer := markdown.NewRenderer(cfg.Pipeline.FrontmatterFields)

	var mirrors []pipeline.NamedMirror
	if cfg.Raindrop.Enabled {
		mirrors = append(mirrors, pipeline.NamedMirror{Name: "raindrop", Mirror: sinks.NewRaindropSink(cfg.Raindrop)})
	}
	if cfg.Vault.Enabled {
		mirrors = append(mirrors, pipeline.NamedMirror{Name: "vault", Mirror: sinks.NewVaultSink(cfg.Vault)})
	}

	return pipeline.NewProcessor(extractor, enricher, renderer, sinks.NewLocalSink(), mirrors, db, cfg.Pipeline)
}
