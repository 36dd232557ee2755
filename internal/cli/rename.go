package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/AutumnsGrove/FableParser/internal/config"
	"github.com/AutumnsGrove/FableParser/internal/identity"
	"github.com/AutumnsGrove/FableParser/internal/markdown"
)

// RenameCommand moves documents whose filenames no longer match their
// frontmatter, e.g. after a title was fixed by hand or by a refresh.
type RenameCommand struct {
	OutputDir string
	DryRun    bool

	cfg *config.Config
}

func NewRenameCommand() *RenameCommand {
	return &RenameCommand{}
}

func (cmd *RenameCommand) ParseFlags(args []string) error {
	cmd.cfg = config.NewConfig()

	fs := flag.NewFlagSet("rename", flag.ExitOnError)

	fs.StringVar(&cmd.OutputDir, "output", cmd.cfg.Pipeline.OutputDir, "Output directory holding the documents")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "Show planned renames without moving any files")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s rename [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Recompute document filenames from their title and author frontmatter\n")
		fmt.Fprintf(os.Stderr, "and move any documents that drifted. Duplicate titles keep their\n")
		fmt.Fprintf(os.Stderr, "numeric suffixes.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

type plannedRename struct {
	from string
	to   string
}

func (cmd *RenameCommand) Run() error {
	fmt.Println("📚 Document Rename")
	fmt.Println("==================")

	if cmd.DryRun {
		fmt.Println("DRY RUN MODE - No changes will be made")
		fmt.Println()
	}

	entries, err := os.ReadDir(cmd.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		paths = append(paths, filepath.Join(cmd.OutputDir, entry.Name()))
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		fmt.Println("⚠️  No documents found in the output directory")
		return nil
	}

	// A fresh resolver reassigns identities in sorted order, so documents
	// whose titles normalize to the same slug keep distinct suffixes.
	resolver := identity.NewResolver(cmd.OutputDir)
	var renames []plannedRename
	var skipped int
	claimed := make(map[string]string)

	for _, path := range paths {
		record, _, err := markdown.ParseFile(path)
		if err != nil {
			fmt.Printf("  ⚠️  Skipping %s: %v\n", filepath.Base(path), err)
			skipped++
			continue
		}

		target := resolver.Resolve(record)
		if holder, taken := claimed[target.Filepath]; taken {
			// Two documents with identical frontmatter resolve to one
			// identity; moving both would clobber one of them.
			fmt.Printf("  ⚠️  Skipping %s: duplicate of %s\n", filepath.Base(path), filepath.Base(holder))
			skipped++
			continue
		}
		claimed[target.Filepath] = path

		if target.Filepath != path {
			renames = append(renames, plannedRename{from: path, to: target.Filepath})
		}
	}

	// Targets occupied by skipped documents would be clobbered, since the
	// occupant is not moving out of the way.
	vacating := make(map[string]bool, len(renames))
	for _, r := range renames {
		vacating[r.from] = true
	}
	kept := renames[:0]
	for _, r := range renames {
		if _, err := os.Stat(r.to); err == nil && !vacating[r.to] {
			fmt.Printf("  ⚠️  Skipping %s: target %s already exists\n", filepath.Base(r.from), filepath.Base(r.to))
			skipped++
			continue
		}
		kept = append(kept, r)
	}
	renames = kept

	if len(renames) == 0 {
		fmt.Printf("✅ All %d documents already match their frontmatter\n", len(paths)-skipped)
		return nil
	}

	fmt.Printf("Found %d documents to rename:\n", len(renames))
	for _, r := range renames {
		fmt.Printf("  %s -> %s\n", filepath.Base(r.from), filepath.Base(r.to))
	}

	if cmd.DryRun {
		fmt.Println("\nDry run complete. Use without -dry-run to rename.")
		return nil
	}

	// Two phases so chains and swaps cannot clobber documents that are
	// themselves about to move.
	for i, r := range renames {
		tmp := fmt.Sprintf("%s.rename-%d", r.from, i)
		if err := os.Rename(r.from, tmp); err != nil {
			return fmt.Errorf("failed to stage %s: %w", r.from, err)
		}
	}
	for i, r := range renames {
		tmp := fmt.Sprintf("%s.rename-%d", r.from, i)
		if err := os.Rename(tmp, r.to); err != nil {
			return fmt.Errorf("failed to move %s to %s: %w", r.from, r.to, err)
		}
	}

	fmt.Printf("\n✅ Renamed %d documents!\n", len(renames))
	return nil
}
