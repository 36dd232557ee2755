package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/AutumnsGrove/FableParser/internal/config"
	"github.com/AutumnsGrove/FableParser/internal/database"
)

// RefreshCommand re-enriches written documents from the catalog, keeping
// their filenames and mention fields intact.
type RefreshCommand struct {
	FilePath  string
	OutputDir string
	Verbose   bool

	cfg *config.Config
}

func NewRefreshCommand() *RefreshCommand {
	return &RefreshCommand{}
}

func (cmd *RefreshCommand) ParseFlags(args []string) error {
	cmd.cfg = config.NewConfig()

	fs := flag.NewFlagSet("refresh", flag.ExitOnError)

	fs.StringVar(&cmd.FilePath, "file", "", "Refresh a single document (default: every document in the output directory)")
	fs.StringVar(&cmd.OutputDir, "output", cmd.cfg.Pipeline.OutputDir, "Output directory holding the documents")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose output")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s refresh [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Re-run catalog enrichment for documents that were written without a\n")
		fmt.Fprintf(os.Stderr, "match, or whose metadata should be brought up to date. Titles, authors\n")
		fmt.Fprintf(os.Stderr, "and reading statuses in the documents are preserved.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Refresh every document:\n")
		fmt.Fprintf(os.Stderr, "  %s refresh\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Refresh one document:\n")
		fmt.Fprintf(os.Stderr, "  %s refresh -file books/sanderson_mistborn.md\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd.cfg.Pipeline.OutputDir = cmd.OutputDir
	return nil
}

func (cmd *RefreshCommand) Run() error {
	fmt.Println("🔄 Metadata Refresh")
	fmt.Println("===================")

	cfg := cmd.cfg
	if err := cfg.ValidateRefresh(); err != nil {
		return err
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Refresh rewrites documents in place; mirrors are left alone so the
	// sinks are not spammed with duplicates.
	cfg.Raindrop.Enabled = false
	cfg.Vault.Enabled = false
	processor := buildProcessor(cfg, db)

	var paths []string
	if cmd.FilePath != "" {
		if _, err := os.Stat(cmd.FilePath); os.IsNotExist(err) {
			return fmt.Errorf("document not found: %s", cmd.FilePath)
		}
		paths = []string{cmd.FilePath}
	} else {
		paths, err = processor.ListDocuments()
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Println("⚠️  No documents found in the output directory")
			return nil
		}
	}

	fmt.Printf("📚 Refreshing %d documents\n\n", len(paths))

	var updated, unchanged, failed int
	for i, path := range paths {
		if cmd.Verbose {
			fmt.Printf("  [%d/%d] %s\n", i+1, len(paths), path)
		}

		ok, err := processor.RefreshFile(context.Background(), path)
		switch {
		case err != nil:
			failed++
			fmt.Printf("  ❌ %s: %v\n", path, err)
		case ok:
			updated++
			if cmd.Verbose {
				fmt.Printf("    ✅ Updated\n")
			}
		default:
			unchanged++
			if cmd.Verbose {
				fmt.Printf("    ⚠️  No catalog match, left unchanged\n")
			}
		}
	}

	fmt.Println("\n=== Summary ===")
	fmt.Printf("Updated: %d  Unchanged: %d  Failed: %d\n", updated, unchanged, failed)

	if failed > 0 {
		return fmt.Errorf("%d documents could not be refreshed", failed)
	}

	fmt.Println("\n✅ Refresh complete!")
	return nil
}
