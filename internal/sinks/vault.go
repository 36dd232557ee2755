package sinks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AutumnsGrove/FableParser/internal/config"
	"github.com/AutumnsGrove/FableParser/internal/entities"
	"github.com/AutumnsGrove/FableParser/internal/markdown"
)

// VaultSink mirrors finished documents into an Obsidian vault folder and
// keeps an index note listing every synced book.
type VaultSink struct {
	vaultDir      string
	indexEnabled  bool
	indexFilename string
}

func NewVaultSink(cfg config.Vault) *VaultSink {
	indexFilename := cfg.IndexFilename
	if indexFilename == "" {
		indexFilename = "Book Index.md"
	}
	return &VaultSink{
		vaultDir:      cfg.Dir,
		indexEnabled:  cfg.IndexEnabled,
		indexFilename: indexFilename,
	}
}

// Mirror copies the document into the vault and refreshes the index.
func (s *VaultSink) Mirror(ctx context.Context, doc entities.RenderedDocument, record entities.BookRecord) error {
	if err := os.MkdirAll(s.vaultDir, 0755); err != nil {
		return fmt.Errorf("create vault directory: %w", err)
	}

	target := filepath.Join(s.vaultDir, doc.Identity.Slug+".md")
	if err := os.WriteFile(target, []byte(doc.Content), 0644); err != nil {
		return fmt.Errorf("write vault copy: %w", err)
	}

	if s.indexEnabled {
		if err := s.RegenerateIndex(); err != nil {
			return fmt.Errorf("update vault index: %w", err)
		}
	}
	return nil
}

// SyncDir mirrors every markdown document under outputDir into the vault,
// returning how many files were copied. Used by the scheduled sync.
func (s *VaultSink) SyncDir(outputDir string) (int, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return 0, fmt.Errorf("read output directory: %w", err)
	}
	if err := os.MkdirAll(s.vaultDir, 0755); err != nil {
		return 0, fmt.Errorf("create vault directory: %w", err)
	}

	copied := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outputDir, entry.Name()))
		if err != nil {
			return copied, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		target := filepath.Join(s.vaultDir, entry.Name())
		if err := os.WriteFile(target, content, 0644); err != nil {
			return copied, fmt.Errorf("write %s: %w", entry.Name(), err)
		}
		copied++
	}

	if s.indexEnabled {
		if err := s.RegenerateIndex(); err != nil {
			return copied, fmt.Errorf("update vault index: %w", err)
		}
	}
	return copied, nil
}

type indexEntry struct {
	slug   string
	record entities.BookRecord
}

// RegenerateIndex rebuilds the index note from the vault's current
// contents. Files without parseable frontmatter are listed by filename.
func (s *VaultSink) RegenerateIndex() error {
	entries, err := os.ReadDir(s.vaultDir)
	if err != nil {
		return fmt.Errorf("read vault directory: %w", err)
	}

	var books []indexEntry
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") || name == s.indexFilename {
			continue
		}
		slug := strings.TrimSuffix(name, ".md")
		record, _, err := markdown.ParseFile(filepath.Join(s.vaultDir, name))
		if err != nil {
			record = entities.BookRecord{Title: slug}
		}
		books = append(books, indexEntry{slug: slug, record: record})
	}

	sort.Slice(books, func(i, j int) bool {
		return strings.ToLower(books[i].record.Title) < strings.ToLower(books[j].record.Title)
	})

	var sb strings.Builder
	sb.WriteString("# Book Index\n\n")
	sb.WriteString(fmt.Sprintf("%d books synced from Fable.\n\n", len(books)))
	for _, b := range books {
		line := fmt.Sprintf("- [[%s|%s]]", b.slug, b.record.Title)
		if b.record.Author != "" {
			line += fmt.Sprintf(" by %s", b.record.Author)
		}
		line += fmt.Sprintf(" %s\n", b.record.ReadingStatus.Icon())
		sb.WriteString(line)
	}

	indexPath := filepath.Join(s.vaultDir, s.indexFilename)
	if err := os.WriteFile(indexPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("write index note: %w", err)
	}
	return nil
}
